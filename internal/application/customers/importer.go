package customers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/history"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

const entityName = "customers"

// ImporterConfig tunes a customer import run.
type ImporterConfig struct {
	PageSize int
	DaysBack int // fallback when there is no recorded run
}

// Importer drives a full customer import run.
type Importer struct {
	vtex   *vtex.Connector
	pipe   *pipeline.Pipeline[string, vtex.Profile, crm.Customer]
	runs   *history.Store
	cfg    ImporterConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewImporter assembles a customer importer. runs may be nil to skip run
// tracking.
func NewImporter(
	connector *vtex.Connector,
	pipe *pipeline.Pipeline[string, vtex.Profile, crm.Customer],
	runs *history.Store,
	cfg ImporterConfig,
	logger *zap.Logger,
) *Importer {
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = 3
	}
	return &Importer{
		vtex:   connector,
		pipe:   pipe,
		runs:   runs,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run imports every profile updated since the last successful run (or the
// configured days back when there is none).
func (i *Importer) Run(ctx context.Context) (*pipeline.RunStats[crm.Customer], error) {
	startedAt := i.now()
	since := i.windowStart(ctx)

	i.logger.Info("starting customer import", zap.Time("updated_since", since))

	ids := i.vtex.CustomerIDs(ctx, since, i.cfg.PageSize)
	stats, runErr := i.pipe.Run(ctx, ids)

	i.record(ctx, stats, since, startedAt, runErr)

	i.logger.Info("customer import finished",
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", len(stats.Failed)+stats.FailedSources))
	return stats, runErr
}

// windowStart derives the incremental window from the last successful run.
func (i *Importer) windowStart(ctx context.Context) time.Time {
	fallback := i.now().AddDate(0, 0, -i.cfg.DaysBack)
	if i.runs == nil {
		return fallback
	}
	last, err := i.runs.LastSuccessful(ctx, entityName)
	if err != nil {
		if !errors.Is(err, history.ErrNoRuns) {
			i.logger.Error("could not read run history", zap.Error(err))
		}
		return fallback
	}
	if last.WindowTo != nil {
		return *last.WindowTo
	}
	return fallback
}

func (i *Importer) record(ctx context.Context, stats *pipeline.RunStats[crm.Customer], since, startedAt time.Time, runErr error) {
	if i.runs == nil {
		return
	}
	finishedAt := i.now()
	run := &history.ImportRun{
		Entity:     entityName,
		WindowFrom: &since,
		WindowTo:   &finishedAt,
		Created:    stats.Created,
		Updated:    stats.Updated,
		Duplicated: stats.Duplicated,
		Failed:     len(stats.Failed) + stats.FailedSources,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Error = runErr.Error()
	}
	if err := i.runs.Record(ctx, run); err != nil {
		i.logger.Error("could not record run", zap.Error(err))
	}
}
