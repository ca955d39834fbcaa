package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/customers"
	"github.com/woowup/vtex-connector/internal/application/orders"
	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/application/products"
	"github.com/woowup/vtex-connector/internal/application/subscriptions"
	"github.com/woowup/vtex-connector/internal/domain/account"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/config"
	"github.com/woowup/vtex-connector/internal/infrastructure/crmapi"
	"github.com/woowup/vtex-connector/internal/infrastructure/history"
	"github.com/woowup/vtex-connector/internal/infrastructure/logger"
	"github.com/woowup/vtex-connector/internal/infrastructure/notify"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

const dateLayout = "2006-01-02"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer app.close()

	if err := app.run(ctx, command, args[1:]); err != nil {
		log.Error("run failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
}

// app holds the long-lived pieces every subcommand shares.
type app struct {
	cfg      *config.Config
	vtex     *vtex.Connector
	crm      *crmapi.Client
	settings account.Settings
	notifier notify.Notifier
	runs     *history.Store
	log      *zap.Logger
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	client := vtex.NewClient(vtex.ClientConfig{
		BaseURL:         cfg.VTEX.APIBaseURL(cfg.App.Name),
		AppKey:          cfg.VTEX.AppKey,
		AppToken:        cfg.VTEX.AppToken,
		MaxAttempts:     cfg.Client.MaxAttempts,
		BackoffBase:     cfg.Client.BackoffBase,
		CooldownOn429:   cfg.Client.CooldownOn429,
		RateLimitPerSec: cfg.Client.RateLimitPerSec,
		Timeout:         cfg.Client.RequestTimeout,
	}, log)

	connector, err := vtex.NewConnector(client, vtex.ConnectorConfig{
		AppName:      cfg.App.Name,
		StoreURL:     cfg.VTEX.StoreURL,
		SalesChannel: cfg.VTEX.SalesChannel,
		Sellers:      cfg.VTEX.Sellers,
		Statuses:     cfg.Import.OrderStatuses,
		DataEntity:   cfg.VTEX.DataEntity,
	}, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:  cfg,
		vtex: connector,
		crm: crmapi.NewClient(crmapi.Config{
			Host:    cfg.CRM.Host,
			APIKey:  cfg.CRM.APIKey,
			Timeout: cfg.Client.RequestTimeout,
		}, log),
		settings: account.Settings{
			ID:                       cfg.App.ID,
			Features:                 cfg.App.Features,
			MapsChildProducts:        !cfg.Import.UseParentProducts,
			DownloadInactiveProducts: cfg.Import.DownloadInactiveProducts,
		},
		notifier: notify.Nop{},
		log:      log,
	}

	if cfg.Notify.WebhookURL != "" {
		a.notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Channel, log)
	}
	if cfg.History.Enabled {
		runs, err := history.Open(cfg.History.Path, log)
		if err != nil {
			return nil, fmt.Errorf("opening run history: %w", err)
		}
		a.runs = runs
	}
	return a, nil
}

func (a *app) close() {
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			a.log.Error("could not close run history", zap.Error(err))
		}
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "orders":
		return a.runOrders(ctx, args)
	case "customers":
		return a.runCustomers(ctx, args)
	case "products":
		return a.runProducts(ctx, args)
	case "historical-products":
		return a.runHistoricalProducts(ctx, args)
	case "subscriptions":
		return a.runSubscriptions(ctx, args)
	case "check":
		return a.runCheck(ctx)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) runOrders(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ExitOnError)
	fromFlag := fs.String("from", "", "start date (YYYY-MM-DD), default: last successful run")
	toFlag := fs.String("to", "", "end date (YYYY-MM-DD), default: now")
	updateDuplicated := fs.Bool("update-duplicates", a.cfg.Import.UpdateDuplicatedOrders, "refresh purchases already imported")
	importing := fs.Bool("importing", !a.cfg.Import.ApproveImmediately, "historical load: approve purchases at their creation time")
	debug := fs.Bool("debug", false, "print payloads instead of uploading")
	if err := fs.Parse(args); err != nil {
		return err
	}

	from, err := parseDate(*fromFlag)
	if err != nil {
		return err
	}
	to, err := parseDate(*toFlag)
	if err != nil {
		return err
	}

	var uploader pipeline.Uploader[crm.Order]
	if *debug {
		uploader = pipeline.NewDebugSink[crm.Order](os.Stdout)
	}

	tracker := orders.NewTracker(a.settings, a.notifier, a.log)
	importer := orders.NewImporter(a.vtex, a.crm, tracker, uploader, a.runs, orders.ImporterConfig{
		Branch:            a.cfg.CRM.Branch,
		Importing:         *importing,
		EmptyPaymentType:  a.cfg.Payments.EmptyTypeDefault,
		UpdateDuplicated:  *updateDuplicated,
		Window:            time.Duration(a.cfg.Import.WindowHours) * time.Hour,
		PerPage:           a.cfg.Import.OrdersPerPage,
		MaxPagesPerWindow: a.cfg.Import.MaxPagesPerWindow,
		DaysBack:          a.cfg.Import.DaysBack,
	}, a.log)

	_, err = importer.Run(ctx, from, to)
	return err
}

func (a *app) runCustomers(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("customers", flag.ExitOnError)
	daysBack := fs.Int("days-back", a.cfg.Import.DaysBack, "lookback when there is no recorded run")
	debug := fs.Bool("debug", false, "print payloads instead of uploading")
	if err := fs.Parse(args); err != nil {
		return err
	}

	policy := crm.EmailPolicy{
		Blacklist:         a.cfg.Email.BlacklistDomains,
		Trusted:           a.cfg.Email.TrustedDomains,
		PlaceholderDomain: a.cfg.Email.PlaceholderDomain,
	}

	var uploader pipeline.Uploader[crm.Customer] = customers.NewUploader(a.crm, a.log)
	if *debug {
		uploader = pipeline.NewDebugSink[crm.Customer](os.Stdout)
	}

	pipe := pipeline.New[string](
		customers.NewDownloader(a.vtex, a.log),
		customers.NewMapper(a.vtex, a.crm.Users, policy, a.log),
		uploader,
		a.log,
	)
	importer := customers.NewImporter(a.vtex, pipe, a.runs, customers.ImporterConfig{
		PageSize: a.cfg.Import.CustomersPageSize,
		DaysBack: *daysBack,
	}, a.log)

	_, err := importer.Run(ctx)
	return err
}

func (a *app) runProducts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	disableMissing := fs.Bool("disable-missing", false, "flag CRM products absent from this run as unavailable")
	debug := fs.Bool("debug", false, "print payloads instead of uploading")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var uploader pipeline.Uploader[crm.Product]
	if *debug {
		uploader = pipeline.NewDebugSink[crm.Product](os.Stdout)
	}

	importer := products.NewImporter(a.vtex, a.crm, a.settings, uploader, a.runs, products.ImporterConfig{
		PageSize:       a.cfg.Import.ProductsPageSize,
		DisableMissing: *disableMissing,
	}, a.log)

	_, err := importer.Run(ctx)
	return err
}

func (a *app) runHistoricalProducts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("historical-products", flag.ExitOnError)
	stockEqualsZero := fs.Bool("stock-equals-zero", false, "report zero stock without querying logistics")
	debug := fs.Bool("debug", false, "print payloads instead of uploading")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var uploader pipeline.Uploader[crm.Product]
	if *debug {
		uploader = pipeline.NewDebugSink[crm.Product](os.Stdout)
	}

	importer := products.NewHistoricalImporter(a.vtex, a.crm, a.notifier, uploader, a.runs, products.HistoricalImporterConfig{
		PageSize:        a.cfg.Import.ProductsPageSize,
		IncludeInactive: a.settings.DownloadInactiveProducts,
		StockEqualsZero: *stockEqualsZero,
		StockFallback:   products.StockFallback(a.cfg.Import.StockFallback),
	}, a.log)

	_, err := importer.Run(ctx)
	return err
}

func (a *app) runSubscriptions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("subscriptions", flag.ExitOnError)
	debug := fs.Bool("debug", false, "print payloads instead of uploading")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var uploader pipeline.Uploader[crm.Customer]
	if *debug {
		uploader = pipeline.NewDebugSink[crm.Customer](os.Stdout)
	}

	importer := subscriptions.NewImporter(a.vtex, a.crm, uploader, a.runs, subscriptions.ImporterConfig{
		PageSize: a.cfg.Import.CustomersPageSize,
	}, a.log)

	_, err := importer.Run(ctx)
	return err
}

func (a *app) runCheck(ctx context.Context) error {
	if err := a.vtex.CheckConnection(ctx); err != nil {
		return fmt.Errorf("source platform check failed: %w", err)
	}
	a.log.Info("source platform connection OK", zap.String("app", a.cfg.App.Name))
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `VTEX connector - syncs a VTEX store into the CRM

Usage:
  connector <command> [flags]

Commands:
  orders               import purchases (incremental by default)
  customers            import customer profiles updated since the last run
  products             import the visible catalog
  historical-products  walk every catalog SKU id
  subscriptions        import recurring-purchase subscriptions
  check                verify source platform credentials

Run 'connector <command> -h' for command flags.
Configuration comes from config.toml and VTEXSYNC_* environment variables.
`)
}
