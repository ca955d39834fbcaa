package orders

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/crmapi"
)

// CardInfoEnricher fills missing payment metadata (issuer, type, brand)
// from the card number prefix. Lookups are best effort: a failed lookup
// never fails the purchase.
type CardInfoEnricher struct {
	banks  *crmapi.BanksResource
	logger *zap.Logger
}

// NewCardInfoEnricher creates a card info enricher.
func NewCardInfoEnricher(banks *crmapi.BanksResource, logger *zap.Logger) *CardInfoEnricher {
	return &CardInfoEnricher{banks: banks, logger: logger}
}

// Enrich completes every payment that carries a card prefix.
func (e *CardInfoEnricher) Enrich(ctx context.Context, order *crm.Order) error {
	for i := range order.Payment {
		payment := &order.Payment[i]
		if payment.FirstDigits == "" {
			continue
		}

		data, err := e.banks.FromFirstSixDigits(ctx, payment.FirstDigits)
		if err != nil {
			var apiErr *crmapi.APIError
			if errors.As(err, &apiErr) {
				e.logger.Info("card info not found",
					zap.Int("status", apiErr.StatusCode),
					zap.String("message", apiErr.Message))
			} else {
				e.logger.Info("card info lookup failed", zap.Error(err))
			}
			continue
		}

		if payment.Type == "" && data.Type != "" {
			payment.Type = data.Type
		}
		if payment.Brand == "" && data.Scheme != "" {
			payment.Brand = data.Scheme
		}
		if payment.Bank == "" && data.Bank.Name != "" {
			payment.Bank = data.Bank.Name
		}
	}
	return nil
}
