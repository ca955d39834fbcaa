// Package subscriptions syncs recurring-purchase subscriptions into the CRM
// as customer records carrying subscription custom attributes.
package subscriptions

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

// statusLabels translates subscription states to the Spanish labels the CRM
// segments on.
var statusLabels = map[string]string{
	"ACTIVE":   "Activo",
	"CANCELED": "Cancelado",
	"PAUSED":   "Pausado",
}

// Mapper turns a subscription into a customer update. The subscriber's
// master-data profile supplies identity fields beyond the email on the
// subscription itself.
type Mapper struct {
	vtex   *vtex.Connector
	logger *zap.Logger
}

var _ pipeline.Mapper[vtex.Subscription, crm.Customer] = (*Mapper)(nil)

// NewMapper creates a subscription mapper.
func NewMapper(connector *vtex.Connector, logger *zap.Logger) *Mapper {
	return &Mapper{vtex: connector, logger: logger}
}

// Map builds the customer update, or nothing when no identity can be
// established.
func (m *Mapper) Map(ctx context.Context, sub *vtex.Subscription) ([]*crm.Customer, error) {
	customer := &crm.Customer{Email: sub.CustomerEmail}
	m.fillProfile(ctx, customer, sub.CustomerID)

	customer.CustomAttributes = m.subscriptionAttributes(sub)

	customer.Clean()
	if !customer.HasIdentity() {
		m.logger.Info("skipping subscription without subscriber identity",
			zap.String("subscription_id", sub.ID))
		return nil, nil
	}
	return []*crm.Customer{customer}, nil
}

// fillProfile enriches the customer from the subscriber's master-data
// profile, best effort.
func (m *Mapper) fillProfile(ctx context.Context, customer *crm.Customer, customerID string) {
	if customerID == "" {
		return
	}
	profile, err := m.vtex.DownloadCustomer(ctx, customerID)
	if err != nil {
		m.logger.Info("could not fetch subscriber profile",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return
	}
	if profile.Email != "" {
		customer.Email = profile.Email
	}
	if profile.Document != "" {
		customer.Document = profile.Document
	}
	if profile.DocumentType != "" {
		customer.DocumentType = profile.DocumentType
	}
	if profile.HomePhone != "" {
		customer.Phone = profile.HomePhone
	}
	customer.FirstName = crm.NormalizeName(profile.FirstName)
	customer.LastName = crm.NormalizeName(profile.LastName)
}

func (m *Mapper) subscriptionAttributes(sub *vtex.Subscription) map[string]any {
	attrs := map[string]any{
		"status_suscripcion":        m.statusLabel(sub.Status),
		"proxima_compra":            formatDate(sub.NextPurchaseDate),
		"ultima_compra":             formatDate(sub.LastPurchaseDate),
		"fecha_ultima_modificacion": formatDate(sub.LastUpdate),
	}

	if sub.IsSkipped {
		attrs["compra_omitida"] = "is Skipped"
	} else {
		attrs["compra_omitida"] = "is not skipped"
	}

	if len(sub.Items) > 0 {
		skus := make([]string, len(sub.Items))
		for i, item := range sub.Items {
			skus[i] = item.SKUID
		}
		attrs["sku"] = strings.Join(skus, ";")
	}

	if sub.Plan != nil {
		attrs["fecha_validez_inicial"] = formatDate(sub.Plan.Validity.Begin)
		attrs["fecha_validez_final"] = formatDate(sub.Plan.Validity.End)
		attrs["frecuencia_compra_periodicidad"] = sub.Plan.Frequency.Periodicity
		attrs["frecuencia_compra_intervalo"] = sub.Plan.Frequency.Interval
	}
	return attrs
}

// statusLabel translates a subscription state, keeping unknown states as-is.
func (m *Mapper) statusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// formatDate re-expresses a platform timestamp as RFC 3339. Unparseable
// values yield "" so the clean pass drops the attribute.
func formatDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return ""
}
