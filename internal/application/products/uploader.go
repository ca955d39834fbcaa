package products

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/crmapi"
)

// Uploader delivers products to the CRM catalog. It remembers every SKU it
// touched so a later pass can disable the products that vanished upstream.
type Uploader struct {
	products *crmapi.ProductsResource
	logger   *zap.Logger

	mu   sync.Mutex
	seen []string
}

var _ pipeline.Uploader[crm.Product] = (*Uploader)(nil)

// NewUploader creates a product uploader.
func NewUploader(client *crmapi.Client, logger *zap.Logger) *Uploader {
	return &Uploader{products: client.Products, logger: logger}
}

// Upload updates the product addressed by its SKU; unknown SKUs are created
// instead.
func (u *Uploader) Upload(ctx context.Context, product *crm.Product) (pipeline.Result, error) {
	if product.SKU == "" {
		u.logger.Info("skipping product without sku", zap.String("name", product.Name))
		return pipeline.Skipped, nil
	}

	err := u.products.Update(ctx, product.SKU, product)
	if err == nil {
		u.logger.Info("product updated", zap.String("sku", product.SKU))
		u.remember(product.SKU)
		return pipeline.Updated, nil
	}

	if crmapi.IsNotFound(err) {
		if err := u.products.Create(ctx, product); err != nil {
			u.logger.Error("product creation failed",
				zap.String("sku", product.SKU),
				zap.String("reason", crmapi.ErrorText(err)))
			return pipeline.Failed, err
		}
		u.logger.Info("product created", zap.String("sku", product.SKU))
		u.remember(product.SKU)
		return pipeline.Created, nil
	}

	u.logger.Error("product update failed",
		zap.String("sku", product.SKU),
		zap.String("reason", crmapi.ErrorText(err)))
	return pipeline.Failed, err
}

// SeenSKUs returns every SKU uploaded so far.
func (u *Uploader) SeenSKUs() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return slices.Clone(u.seen)
}

func (u *Uploader) remember(sku string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.seen = append(u.seen, sku)
}

// disableMissingPageSize is the CRM catalog page size of the cleanup pass.
const disableMissingPageSize = 100

// DisableMissing walks the CRM products flagged available and zeroes out
// every one whose SKU was not part of this run.
func (u *Uploader) DisableMissing(ctx context.Context, updatedSKUs []string) error {
	current := make(map[string]struct{}, len(updatedSKUs))
	for _, sku := range updatedSKUs {
		current[sku] = struct{}{}
	}

	for page := 0; ; page++ {
		available, err := u.products.ListAvailable(ctx, page, disableMissingPageSize)
		if err != nil {
			return err
		}
		if len(available) == 0 {
			return nil
		}

		for _, existing := range available {
			if _, ok := current[existing.SKU]; ok {
				continue
			}
			u.logger.Info("product no longer available", zap.String("sku", existing.SKU))
			zero := 0
			gone := &crm.Product{
				SKU:       existing.SKU,
				Name:      existing.Name,
				Available: false,
				Stock:     &zero,
			}
			if _, err := u.Upload(ctx, gone); err != nil {
				u.logger.Error("could not disable product",
					zap.String("sku", existing.SKU),
					zap.Error(err))
			}
		}
	}
}
