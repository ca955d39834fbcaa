package products

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/notify"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

// StockFallback decides what the historical mapper reports when a SKU's
// stock cannot be fetched.
type StockFallback string

const (
	// StockFallbackZero keeps the zero placeholder in the payload.
	StockFallbackZero StockFallback = "zero"
	// StockFallbackOmit drops the stock field entirely.
	StockFallbackOmit StockFallback = "omit"
)

// WorkerMapperConfig tunes the historical catalog walk.
type WorkerMapperConfig struct {
	// StockEqualsZero reports every SKU with zero stock instead of
	// querying the logistics API.
	StockEqualsZero bool
	StockFallback   StockFallback
}

// WorkerMapper maps catalog SKUs from the full historical walk. Prices and
// stock come from the pricing and logistics APIs; SKUs where neither can be
// resolved are skipped.
type WorkerMapper struct {
	vtex     *vtex.Connector
	notifier notify.Notifier
	cfg      WorkerMapperConfig
	logger   *zap.Logger
}

var _ pipeline.Mapper[vtex.CatalogSKU, crm.Product] = (*WorkerMapper)(nil)

// NewWorkerMapper creates a historical product mapper. notifier may be nil.
func NewWorkerMapper(
	connector *vtex.Connector,
	notifier notify.Notifier,
	cfg WorkerMapperConfig,
	logger *zap.Logger,
) *WorkerMapper {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.StockFallback == "" {
		cfg.StockFallback = StockFallbackZero
	}
	return &WorkerMapper{
		vtex:     connector,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Map builds one product from a catalog SKU.
func (m *WorkerMapper) Map(ctx context.Context, sku *vtex.CatalogSKU) ([]*crm.Product, error) {
	if sku.RefID == "" {
		m.logger.Info("skipping sku without reference id", zap.Int64("sku_id", sku.ID))
		return nil, nil
	}

	product := &crm.Product{
		SKU:       sku.RefID,
		Name:      sku.Name,
		BaseName:  sku.ProductName,
		Brand:     sku.BrandName,
		URL:       m.vtex.RewriteStoreLink(sku.DetailURL),
		Available: sku.ProductIsVisible,
	}
	if sku.ImageURL != "" {
		imageURL := m.vtex.NormalizeResizedImageURL(sku.ImageURL)
		product.ImageURL = imageURL
		product.ThumbnailURL = imageURL
	}

	stockOK := m.fillStock(ctx, product, sku)
	pricesOK := m.fillPrices(ctx, product, sku)

	switch {
	case !stockOK && !pricesOK:
		m.logger.Info("skipping sku: neither stock nor prices reachable", zap.Int64("sku_id", sku.ID))
		m.notify(ctx, "historical-no-stock-no-price",
			fmt.Sprintf("cannot fetch stock or prices, example sku %d", sku.ID))
		return nil, nil
	case !stockOK || !pricesOK:
		m.notify(ctx, "historical-partial-stock-price",
			fmt.Sprintf("cannot fetch stock or prices for some SKUs, example sku %d", sku.ID))
	}

	product.Clean()
	return []*crm.Product{product}, nil
}

// fillStock sets the stock figure. With StockEqualsZero the logistics API is
// never queried and zero is reported. A failed fetch applies the configured
// fallback and reports false.
func (m *WorkerMapper) fillStock(ctx context.Context, product *crm.Product, sku *vtex.CatalogSKU) bool {
	zero := 0
	product.Stock = &zero
	if m.cfg.StockEqualsZero {
		return true
	}

	stock, err := m.vtex.SearchItemStock(ctx, strconv.FormatInt(sku.ID, 10))
	if err != nil {
		m.logger.Error("could not fetch stock", zap.Int64("sku_id", sku.ID), zap.Error(err))
		if m.cfg.StockFallback == StockFallbackOmit {
			product.Stock = nil
		}
		return false
	}
	product.Stock = &stock
	return true
}

// fillPrices sets list and offer price from the pricing API; absent figures
// stay off the payload.
func (m *WorkerMapper) fillPrices(ctx context.Context, product *crm.Product, sku *vtex.CatalogSKU) bool {
	prices, err := m.vtex.SearchItemPrices(ctx, strconv.FormatInt(sku.ID, 10))
	if err != nil {
		m.logger.Error("could not fetch prices", zap.Int64("sku_id", sku.ID), zap.Error(err))
		return false
	}
	product.Price = prices.ListPrice
	product.OfferPrice = prices.BasePrice
	return true
}

func (m *WorkerMapper) notify(ctx context.Context, key, message string) {
	text := fmt.Sprintf("[%s] %s", m.vtex.AppName(), message)
	if err := m.notifier.Notify(ctx, key, text); err != nil {
		m.logger.Error("notification failed", zap.String("key", key), zap.Error(err))
	}
}
