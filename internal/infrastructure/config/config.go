package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all connector configuration
type Config struct {
	App      AppConfig
	VTEX     VTEXConfig
	CRM      CRMConfig
	Client   ClientConfig
	Import   ImportConfig
	Email    EmailConfig
	Payments PaymentsConfig
	History  HistoryConfig
	Notify   NotifyConfig
	Log      LogConfig
}

// AppConfig identifies the account this connector instance syncs
type AppConfig struct {
	ID       int    // CRM account id
	Name     string // VTEX account name, doubles as the marketplace self-reference
	Env      string
	Features []int // opt-in feature ids enabled for this account
}

// VTEXConfig holds source platform credentials and endpoints
type VTEXConfig struct {
	AppKey       string
	AppToken     string
	StoreURL     string   // public store host, used to build item links
	Environment  string   // e.g. vtexcommercestable
	SalesChannel string   // optional f_salesChannel filter for order listing
	Sellers      []string // optional seller allow-list; empty means all sellers
	DataEntity   string   // master data entity for customer profiles
}

// CRMConfig holds target platform credentials
type CRMConfig struct {
	Host   string
	APIKey string
	Branch string // branch name reported on purchases from the own store
}

// ClientConfig holds HTTP retry and throttling behavior shared by both clients
type ClientConfig struct {
	MaxAttempts     int
	BackoffBase     time.Duration // attempt n sleeps base^n
	RateLimitPerSec float64
	CooldownOn429   time.Duration
	RequestTimeout  time.Duration
}

// ImportConfig holds pagination windows and per-run behavior
type ImportConfig struct {
	WindowHours              int  // order listing is partitioned into windows of this size
	MaxPagesPerWindow        int  // a window paging past this is split in half
	OrdersPerPage            int
	ProductsPageSize         int
	CustomersPageSize        int
	DaysBack                 int  // default customer lookback when no explicit range is given
	OrderStatuses            []string
	UpdateDuplicatedOrders   bool
	ApproveImmediately       bool
	DownloadInactiveProducts bool
	UseParentProducts        bool   // map one product per base product instead of one per SKU
	StockFallback            string // "zero" or "omit": what to report when stock cannot be fetched
}

// EmailConfig holds the domain lists driving email classification
type EmailConfig struct {
	BlacklistDomains  []string // marketplace relay domains, never real inboxes
	TrustedDomains    []string
	PlaceholderDomain string
}

// PaymentsConfig holds payment mapping behavior
type PaymentsConfig struct {
	EmptyTypeDefault string // payment type reported when the source group is empty
}

// HistoryConfig holds the local run history store settings
type HistoryConfig struct {
	Enabled bool
	Path    string // sqlite file path
}

// NotifyConfig holds operator notification settings
type NotifyConfig struct {
	WebhookURL string
	Channel    string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with VTEXSYNC_ prefix (e.g. VTEXSYNC_VTEX_APPTOKEN)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/vtex-connector")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("VTEXSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// booleans whose zero value is not the right default
	v.SetDefault("import.approve_immediately", true)

	cfg := &Config{
		App: AppConfig{
			ID:       v.GetInt("app.id"),
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			Features: v.GetIntSlice("app.features"),
		},
		VTEX: VTEXConfig{
			AppKey:       v.GetString("vtex.app_key"),
			AppToken:     v.GetString("vtex.app_token"),
			StoreURL:     v.GetString("vtex.store_url"),
			Environment:  v.GetString("vtex.environment"),
			SalesChannel: v.GetString("vtex.sales_channel"),
			Sellers:      v.GetStringSlice("vtex.sellers"),
			DataEntity:   v.GetString("vtex.data_entity"),
		},
		CRM: CRMConfig{
			Host:   v.GetString("crm.host"),
			APIKey: v.GetString("crm.api_key"),
			Branch: v.GetString("crm.branch"),
		},
		Client: ClientConfig{
			MaxAttempts:     v.GetInt("client.max_attempts"),
			BackoffBase:     v.GetDuration("client.backoff_base"),
			RateLimitPerSec: v.GetFloat64("client.rate_limit_per_sec"),
			CooldownOn429:   v.GetDuration("client.cooldown_on_429"),
			RequestTimeout:  v.GetDuration("client.request_timeout"),
		},
		Import: ImportConfig{
			WindowHours:              v.GetInt("import.window_hours"),
			MaxPagesPerWindow:        v.GetInt("import.max_pages_per_window"),
			OrdersPerPage:            v.GetInt("import.orders_per_page"),
			ProductsPageSize:         v.GetInt("import.products_page_size"),
			CustomersPageSize:        v.GetInt("import.customers_page_size"),
			DaysBack:                 v.GetInt("import.days_back"),
			OrderStatuses:            v.GetStringSlice("import.order_statuses"),
			UpdateDuplicatedOrders:   v.GetBool("import.update_duplicated_orders"),
			ApproveImmediately:       v.GetBool("import.approve_immediately"),
			DownloadInactiveProducts: v.GetBool("import.download_inactive_products"),
			UseParentProducts:        v.GetBool("import.use_parent_products"),
			StockFallback:            v.GetString("import.stock_fallback"),
		},
		Email: EmailConfig{
			BlacklistDomains:  v.GetStringSlice("email.blacklist_domains"),
			TrustedDomains:    v.GetStringSlice("email.trusted_domains"),
			PlaceholderDomain: v.GetString("email.placeholder_domain"),
		},
		Payments: PaymentsConfig{
			EmptyTypeDefault: v.GetString("payments.empty_type_default"),
		},
		History: HistoryConfig{
			Enabled: v.GetBool("history.enabled"),
			Path:    v.GetString("history.path"),
		},
		Notify: NotifyConfig{
			WebhookURL: v.GetString("notify.webhook_url"),
			Channel:    v.GetString("notify.channel"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.VTEX.Environment == "" {
		cfg.VTEX.Environment = "vtexcommercestable"
	}
	if cfg.VTEX.DataEntity == "" {
		cfg.VTEX.DataEntity = "CL"
	}
	if cfg.Client.MaxAttempts == 0 {
		cfg.Client.MaxAttempts = 3
	}
	if cfg.Client.BackoffBase == 0 {
		cfg.Client.BackoffBase = 2 * time.Second
	}
	if cfg.Client.RateLimitPerSec == 0 {
		cfg.Client.RateLimitPerSec = 10
	}
	if cfg.Client.CooldownOn429 == 0 {
		cfg.Client.CooldownOn429 = 20 * time.Second
	}
	if cfg.Client.RequestTimeout == 0 {
		cfg.Client.RequestTimeout = 30 * time.Second
	}
	if cfg.Import.WindowHours == 0 {
		cfg.Import.WindowHours = 3
	}
	if cfg.Import.MaxPagesPerWindow == 0 {
		cfg.Import.MaxPagesPerWindow = 30
	}
	if cfg.Import.OrdersPerPage == 0 {
		cfg.Import.OrdersPerPage = 100
	}
	if cfg.Import.ProductsPageSize == 0 {
		cfg.Import.ProductsPageSize = 25
	}
	if cfg.Import.CustomersPageSize == 0 {
		cfg.Import.CustomersPageSize = 500
	}
	if cfg.Import.DaysBack == 0 {
		cfg.Import.DaysBack = 3
	}
	if len(cfg.Import.OrderStatuses) == 0 {
		cfg.Import.OrderStatuses = []string{"invoiced"}
	}
	if cfg.Import.StockFallback == "" {
		cfg.Import.StockFallback = "zero"
	}
	if len(cfg.Email.BlacklistDomains) == 0 {
		cfg.Email.BlacklistDomains = []string{"ct.vtex.com.br", "mercadolibre.com"}
	}
	if cfg.Email.PlaceholderDomain == "" {
		cfg.Email.PlaceholderDomain = "noemail.com"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "vtex-connector.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	var missing []string
	if c.App.Name == "" {
		missing = append(missing, "app.name")
	}
	if c.VTEX.AppKey == "" {
		missing = append(missing, "vtex.app_key")
	}
	if c.VTEX.AppToken == "" {
		missing = append(missing, "vtex.app_token")
	}
	if c.VTEX.StoreURL == "" {
		missing = append(missing, "vtex.store_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}

	if c.Client.MaxAttempts < 1 || c.Client.MaxAttempts > 5 {
		return fmt.Errorf("client.max_attempts must be between 1 and 5, got %d", c.Client.MaxAttempts)
	}
	if c.Import.WindowHours <= 0 {
		return fmt.Errorf("import.window_hours must be positive")
	}
	switch c.Import.StockFallback {
	case "zero", "omit":
	default:
		return fmt.Errorf("import.stock_fallback must be %q or %q, got %q", "zero", "omit", c.Import.StockFallback)
	}
	switch c.Payments.EmptyTypeDefault {
	case "", "other":
	default:
		return fmt.Errorf("payments.empty_type_default must be empty or %q, got %q", "other", c.Payments.EmptyTypeDefault)
	}

	if c.App.Env == "production" {
		if c.CRM.APIKey == "" {
			return fmt.Errorf("crm.api_key is required in production")
		}
		if c.CRM.Host == "" {
			return fmt.Errorf("crm.host is required in production")
		}
	}

	return nil
}

// APIBaseURL returns the VTEX API host for the configured account
func (v *VTEXConfig) APIBaseURL(accountName string) string {
	return fmt.Sprintf("https://%s.%s.com.br", accountName, v.Environment)
}
