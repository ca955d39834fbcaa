package products

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/account"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/crmapi"
	"github.com/woowup/vtex-connector/internal/infrastructure/history"
	"github.com/woowup/vtex-connector/internal/infrastructure/notify"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

const (
	entityName           = "products"
	historicalEntityName = "historical-products"

	defaultPageSize = 25
)

// ImporterConfig tunes a catalog import run.
type ImporterConfig struct {
	PageSize int
	// DisableMissing runs the cleanup pass that flags CRM products absent
	// from this run as unavailable.
	DisableMissing bool
}

// Importer walks the public catalog search and pushes every product to the
// CRM. The account settings decide whether each base product fans out per
// SKU or collapses into a single parent record.
type Importer struct {
	vtex     *vtex.Connector
	crm      *crmapi.Client
	settings account.Settings
	uploader pipeline.Uploader[crm.Product]
	runs     *history.Store
	cfg      ImporterConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewImporter assembles a product importer. uploader may be nil, which
// installs the regular CRM uploader; runs may be nil to skip run tracking.
func NewImporter(
	connector *vtex.Connector,
	client *crmapi.Client,
	settings account.Settings,
	uploader pipeline.Uploader[crm.Product],
	runs *history.Store,
	cfg ImporterConfig,
	logger *zap.Logger,
) *Importer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if uploader == nil {
		uploader = NewUploader(client, logger)
	}
	return &Importer{
		vtex:     connector,
		crm:      client,
		settings: settings,
		uploader: uploader,
		runs:     runs,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run imports the whole visible catalog.
func (i *Importer) Run(ctx context.Context) (*pipeline.RunStats[crm.Product], error) {
	startedAt := i.now()
	i.logger.Info("starting product import",
		zap.Bool("child_products", i.settings.MapsChildProducts))

	categories := i.loadCategories(ctx)
	var mapper pipeline.Mapper[vtex.BaseProduct, crm.Product]
	if i.settings.MapsChildProducts {
		mapper = NewChildrenMapper(i.vtex, categories, i.logger)
	} else {
		mapper = NewParentMapper(i.vtex, categories, i.logger)
	}

	pipe := pipeline.New[*vtex.BaseProduct](pipeline.Passthrough[vtex.BaseProduct]{}, mapper, i.uploader, i.logger)
	stats, runErr := pipe.Run(ctx, i.vtex.Products(ctx, i.cfg.PageSize))

	if runErr == nil && i.cfg.DisableMissing {
		if uploader, ok := i.uploader.(*Uploader); ok {
			if err := uploader.DisableMissing(ctx, uploader.SeenSKUs()); err != nil {
				i.logger.Error("cleanup pass failed", zap.Error(err))
			}
		}
	}

	i.record(ctx, entityName, stats, startedAt, runErr)
	logSummary(i.logger, "product import finished", stats)
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

func (i *Importer) record(ctx context.Context, entity string, stats *pipeline.RunStats[crm.Product], startedAt time.Time, runErr error) {
	recordRun(ctx, i.runs, entity, stats, startedAt, i.now(), runErr, i.logger)
}

// HistoricalImporterConfig tunes the full catalog walk.
type HistoricalImporterConfig struct {
	PageSize        int
	IncludeInactive bool
	StockEqualsZero bool
	StockFallback   StockFallback
}

// HistoricalImporter walks every SKU id in the private catalog, one
// stockkeepingunit lookup at a time. Slower than the search walk but it
// reaches products the public search no longer returns.
type HistoricalImporter struct {
	vtex     *vtex.Connector
	crm      *crmapi.Client
	notifier notify.Notifier
	uploader pipeline.Uploader[crm.Product]
	runs     *history.Store
	cfg      HistoricalImporterConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewHistoricalImporter assembles the catalog-walk importer. notifier,
// uploader and runs may be nil.
func NewHistoricalImporter(
	connector *vtex.Connector,
	client *crmapi.Client,
	notifier notify.Notifier,
	uploader pipeline.Uploader[crm.Product],
	runs *history.Store,
	cfg HistoricalImporterConfig,
	logger *zap.Logger,
) *HistoricalImporter {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if uploader == nil {
		uploader = NewUploader(client, logger)
	}
	return &HistoricalImporter{
		vtex:     connector,
		crm:      client,
		notifier: notifier,
		uploader: uploader,
		runs:     runs,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run imports the full historical catalog.
func (i *HistoricalImporter) Run(ctx context.Context) (*pipeline.RunStats[crm.Product], error) {
	startedAt := i.now()
	i.logger.Info("starting historical product import",
		zap.Bool("include_inactive", i.cfg.IncludeInactive))

	mapper := NewWorkerMapper(i.vtex, i.notifier, WorkerMapperConfig{
		StockEqualsZero: i.cfg.StockEqualsZero,
		StockFallback:   i.cfg.StockFallback,
	}, i.logger)

	pipe := pipeline.New[*vtex.CatalogSKU](pipeline.Passthrough[vtex.CatalogSKU]{}, mapper, i.uploader, i.logger)
	skus := i.vtex.HistoricalSKUs(ctx, i.cfg.PageSize, i.cfg.IncludeInactive)
	stats, runErr := pipe.Run(ctx, skus)

	recordRun(ctx, i.runs, historicalEntityName, stats, startedAt, i.now(), runErr, i.logger)
	logSummary(i.logger, "historical product import finished", stats)
	return stats, runErr
}

// recordRun persists one run row, best effort.
func recordRun(
	ctx context.Context,
	runs *history.Store,
	entity string,
	stats *pipeline.RunStats[crm.Product],
	startedAt, finishedAt time.Time,
	runErr error,
	logger *zap.Logger,
) {
	if runs == nil {
		return
	}
	run := &history.ImportRun{
		Entity:     entity,
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
	if err := runs.Record(ctx, run); err != nil {
		logger.Error("could not record run", zap.Error(err))
	}
}

func logSummary(logger *zap.Logger, message string, stats *pipeline.RunStats[crm.Product]) {
	logger.Info(message,
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", len(stats.Failed)+stats.FailedSources))
}
