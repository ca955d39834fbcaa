package orders

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

// Downloader fetches full order details, dropping orders from sellers
// outside the allow-list.
type Downloader struct {
	vtex   *vtex.Connector
	logger *zap.Logger
}

// NewDownloader creates an order downloader.
func NewDownloader(connector *vtex.Connector, logger *zap.Logger) *Downloader {
	return &Downloader{vtex: connector, logger: logger}
}

// Download fetches one order. Orders deleted between listing and download,
// and orders from disallowed sellers, are skipped.
func (d *Downloader) Download(ctx context.Context, orderID string) (*vtex.Order, error) {
	order, err := d.vtex.DownloadOrder(ctx, orderID)
	if errors.Is(err, vtex.ErrNotFound) {
		d.logger.Info("order vanished, skipping", zap.String("order_id", orderID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !d.vtex.IsAllowedSeller(order) {
		d.logger.Info("order skipped by seller filter", zap.String("order_id", orderID))
		return nil, nil
	}
	return order, nil
}
