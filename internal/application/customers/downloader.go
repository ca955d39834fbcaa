// Package customers imports customer profiles into the CRM.
package customers

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

// Downloader fetches full customer profiles from master data.
type Downloader struct {
	vtex   *vtex.Connector
	logger *zap.Logger
}

// NewDownloader creates a customer downloader.
func NewDownloader(connector *vtex.Connector, logger *zap.Logger) *Downloader {
	return &Downloader{vtex: connector, logger: logger}
}

// Download fetches one profile. Profiles deleted between listing and
// download are skipped.
func (d *Downloader) Download(ctx context.Context, id string) (*vtex.Profile, error) {
	profile, err := d.vtex.DownloadCustomer(ctx, id)
	if errors.Is(err, vtex.ErrNotFound) {
		d.logger.Info("profile vanished, skipping", zap.String("customer_id", id))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}
