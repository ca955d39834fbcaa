package orders

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/crmapi"
	"github.com/woowup/vtex-connector/internal/infrastructure/history"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

const entityName = "orders"

// ImporterConfig tunes an order import run.
type ImporterConfig struct {
	Branch            string
	Importing         bool
	EmptyPaymentType  string
	UpdateDuplicated  bool
	Window            time.Duration
	PerPage           int
	MaxPagesPerWindow int
	DaysBack          int // fallback when there is no recorded run
}

// Importer drives a full order import run.
type Importer struct {
	vtex     *vtex.Connector
	crm      *crmapi.Client
	tracker  *Tracker
	uploader pipeline.Uploader[crm.Order]
	runs     *history.Store
	cfg      ImporterConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewImporter assembles an order importer. uploader may be nil, which
// installs the regular CRM uploader; runs may be nil to skip run tracking.
func NewImporter(
	connector *vtex.Connector,
	client *crmapi.Client,
	tracker *Tracker,
	uploader pipeline.Uploader[crm.Order],
	runs *history.Store,
	cfg ImporterConfig,
	logger *zap.Logger,
) *Importer {
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = 3
	}
	if uploader == nil {
		uploader = NewUploader(client, cfg.UpdateDuplicated, logger)
	}
	return &Importer{
		vtex:     connector,
		crm:      client,
		tracker:  tracker,
		uploader: uploader,
		runs:     runs,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run imports every order created in [from, to]. Zero times derive the
// window from the last successful run and the current time.
func (i *Importer) Run(ctx context.Context, from, to time.Time) (*pipeline.RunStats[crm.Order], error) {
	startedAt := i.now()
	if to.IsZero() {
		to = startedAt
	}
	if from.IsZero() {
		from = i.windowStart(ctx)
	}

	i.logger.Info("starting order import",
		zap.Time("from", from),
		zap.Time("to", to))

	categories := i.loadCategories(ctx)
	mapper := NewMapper(i.vtex, i.tracker, categories, MapperConfig{
		Branch:           i.cfg.Branch,
		Importing:        i.cfg.Importing,
		EmptyPaymentType: i.cfg.EmptyPaymentType,
	}, i.logger)

	pipe := pipeline.New[string](NewDownloader(i.vtex, i.logger), mapper, i.uploader, i.logger).
		WithPostMap(NewCardInfoEnricher(i.crm.Banks, i.logger))

	ids := i.vtex.OrderIDs(ctx, vtex.OrderListOptions{
		From:              from,
		To:                to,
		Window:            i.cfg.Window,
		PerPage:           i.cfg.PerPage,
		MaxPagesPerWindow: i.cfg.MaxPagesPerWindow,
	})

	stats, runErr := pipe.Run(ctx, ids)

	i.record(ctx, stats, from, to, startedAt, runErr)

	i.logger.Info("order import finished",
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("duplicated", stats.Duplicated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", len(stats.Failed)+stats.FailedSources))
	return stats, runErr
}

// loadCategories flattens the category tree, best effort.
func (i *Importer) loadCategories(ctx context.Context) map[string][]crm.Category {
	tree, err := i.vtex.CategoryTree(ctx)
	if err != nil {
		i.logger.Error("could not load category tree", zap.Error(err))
		return nil
	}
	return vtex.FlattenCategoryTree(tree)
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

func (i *Importer) record(ctx context.Context, stats *pipeline.RunStats[crm.Order], from, to, startedAt time.Time, runErr error) {
	if i.runs == nil {
		return
	}
	run := &history.ImportRun{
		Entity:     entityName,
		WindowFrom: &from,
		WindowTo:   &to,
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
