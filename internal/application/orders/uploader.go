package orders

import (
	"context"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/customers"
	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/crmapi"
)

// Uploader delivers purchases to the CRM. The embedded buyer is uploaded
// first so the purchase can reference an existing user.
type Uploader struct {
	crm              *crmapi.Client
	customerUploader *customers.Uploader
	updateDuplicated bool
	logger           *zap.Logger
}

var _ pipeline.Uploader[crm.Order] = (*Uploader)(nil)

// NewUploader creates an order uploader. updateDuplicated controls whether
// already-imported purchases are refreshed with the new payload.
func NewUploader(client *crmapi.Client, updateDuplicated bool, logger *zap.Logger) *Uploader {
	return &Uploader{
		crm:              client,
		customerUploader: customers.NewUploader(client, logger),
		updateDuplicated: updateDuplicated,
		logger:           logger,
	}
}

// Upload registers one purchase.
func (u *Uploader) Upload(ctx context.Context, order *crm.Order) (pipeline.Result, error) {
	if order.Customer != nil {
		if _, err := u.customerUploader.Upload(ctx, order.Customer); err != nil {
			u.logger.Info("buyer upload failed",
				zap.String("invoice_number", order.InvoiceNumber),
				zap.String("error", crmapi.ErrorText(err)))
		}
	}

	err := u.crm.Purchases.Create(ctx, order)
	if err == nil {
		u.logger.Info("purchase created", zap.String("invoice_number", order.InvoiceNumber))
		return pipeline.Created, nil
	}

	switch {
	case crmapi.IsDuplicatedPurchase(err):
		u.logger.Info("purchase duplicated", zap.String("invoice_number", order.InvoiceNumber))
		return u.update(ctx, order)
	case crmapi.IsUserNotFound(err):
		u.logger.Info("purchase rejected, buyer unknown",
			zap.String("invoice_number", order.InvoiceNumber))
		return pipeline.Failed, err
	default:
		u.logger.Info("purchase rejected",
			zap.String("invoice_number", order.InvoiceNumber),
			zap.String("error", crmapi.ErrorText(err)))
		return pipeline.Failed, err
	}
}

// update refreshes a duplicated purchase. The purchase stays a duplicate
// for stats purposes whether or not the refresh happens; a purchase owned
// by another customer is left alone.
func (u *Uploader) update(ctx context.Context, order *crm.Order) (pipeline.Result, error) {
	if !u.updateDuplicated {
		return pipeline.Duplicated, nil
	}

	err := u.crm.Purchases.Update(ctx, order)
	if err == nil {
		u.logger.Info("purchase updated", zap.String("invoice_number", order.InvoiceNumber))
		return pipeline.Duplicated, nil
	}
	if crmapi.IsUserNotFound(err) {
		u.logger.Info("purchase belongs to another customer, skipping",
			zap.String("invoice_number", order.InvoiceNumber))
		return pipeline.Duplicated, nil
	}
	u.logger.Info("purchase update rejected",
		zap.String("invoice_number", order.InvoiceNumber),
		zap.String("error", crmapi.ErrorText(err)))
	return pipeline.Failed, err
}
