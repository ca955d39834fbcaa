package customers

import (
	"context"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/crmapi"
)

// Uploader delivers customers to the CRM, creating unknown identities and
// updating known ones.
type Uploader struct {
	crm    *crmapi.Client
	logger *zap.Logger
}

var _ pipeline.Uploader[crm.Customer] = (*Uploader)(nil)

// NewUploader creates a customer uploader.
func NewUploader(client *crmapi.Client, logger *zap.Logger) *Uploader {
	return &Uploader{crm: client, logger: logger}
}

// Upload registers or updates one customer.
func (u *Uploader) Upload(ctx context.Context, customer *crm.Customer) (pipeline.Result, error) {
	if !customer.HasIdentity() {
		return pipeline.Skipped, nil
	}
	identity := customer.Identity()

	exists, err := u.crm.Multiusers.Exist(ctx, identity)
	if err != nil {
		u.logger.Info("customer lookup failed",
			zap.String("email", identity.Email),
			zap.String("document", identity.Document),
			zap.String("error", crmapi.ErrorText(err)))
		return pipeline.Failed, err
	}

	if exists {
		if err := u.crm.Multiusers.Update(ctx, customer); err != nil {
			u.logger.Info("customer update failed",
				zap.String("email", identity.Email),
				zap.String("error", crmapi.ErrorText(err)))
			return pipeline.Failed, err
		}
		u.logger.Info("customer updated",
			zap.String("email", identity.Email),
			zap.String("document", identity.Document))
		return pipeline.Updated, nil
	}

	if err := u.crm.Users.Create(ctx, customer); err != nil {
		u.logger.Info("customer creation failed",
			zap.String("email", identity.Email),
			zap.String("error", crmapi.ErrorText(err)))
		return pipeline.Failed, err
	}
	u.logger.Info("customer created",
		zap.String("email", identity.Email),
		zap.String("document", identity.Document))
	return pipeline.Created, nil
}
