package subscriptions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/customers"
	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/crmapi"
	"github.com/woowup/vtex-connector/internal/infrastructure/history"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

const entityName = "subscriptions"

// ImporterConfig tunes a subscription import run.
type ImporterConfig struct {
	PageSize int
}

// Importer pushes every subscription to the CRM as a customer update.
type Importer struct {
	vtex     *vtex.Connector
	uploader pipeline.Uploader[crm.Customer]
	runs     *history.Store
	cfg      ImporterConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewImporter assembles a subscription importer. uploader may be nil, which
// installs the regular customer uploader; runs may be nil to skip run
// tracking.
func NewImporter(
	connector *vtex.Connector,
	client *crmapi.Client,
	uploader pipeline.Uploader[crm.Customer],
	runs *history.Store,
	cfg ImporterConfig,
	logger *zap.Logger,
) *Importer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if uploader == nil {
		uploader = customers.NewUploader(client, logger)
	}
	return &Importer{
		vtex:     connector,
		uploader: uploader,
		runs:     runs,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run imports every subscription.
func (i *Importer) Run(ctx context.Context) (*pipeline.RunStats[crm.Customer], error) {
	startedAt := i.now()
	i.logger.Info("starting subscription import")

	mapper := NewMapper(i.vtex, i.logger)
	pipe := pipeline.New[*vtex.Subscription](pipeline.Passthrough[vtex.Subscription]{}, mapper, i.uploader, i.logger)

	stats, runErr := pipe.Run(ctx, i.vtex.Subscriptions(ctx, i.cfg.PageSize))

	i.record(ctx, stats, startedAt, runErr)
	i.logger.Info("subscription import finished",
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", len(stats.Failed)+stats.FailedSources))
	return stats, runErr
}

func (i *Importer) record(ctx context.Context, stats *pipeline.RunStats[crm.Customer], startedAt time.Time, runErr error) {
	if i.runs == nil {
		return
	}
	run := &history.ImportRun{
		Entity:     entityName,
		Created:    stats.Created,
		Updated:    stats.Updated,
		Duplicated: stats.Duplicated,
		Failed:     len(stats.Failed) + stats.FailedSources,
		StartedAt:  startedAt,
		FinishedAt: i.now(),
	}
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Error = runErr.Error()
	}
	if err := i.runs.Record(ctx, run); err != nil {
		i.logger.Error("could not record run", zap.Error(err))
	}
}
