// Package config handles loading and validating the connector configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Ebay     EbayConfig     `yaml:"ebay"`
	Core     CoreConfig     `yaml:"core"`
	SKU      SKUConfig      `yaml:"sku"`
	Publish  PublishConfig  `yaml:"publish"`
	Sync     SyncConfig     `yaml:"sync"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// AuthHeader carries the username set by the trusted front proxy.
	AuthHeader string `yaml:"auth_header"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// EbayConfig defines eBay Trading API settings.
type EbayConfig struct {
	DevID              string          `yaml:"dev_id"`
	AppID              string          `yaml:"app_id"`
	CertID             string          `yaml:"cert_id"`
	TradingURL         string          `yaml:"trading_url"`
	InventoryURL       string          `yaml:"inventory_url"`
	CompatibilityLevel int             `yaml:"compatibility_level"`
	DefaultSiteID      int             `yaml:"default_site_id"`
	Timeout            time.Duration   `yaml:"timeout"`
	RateLimit          RateLimitConfig `yaml:"rate_limit"`
	Images             ImageConfig     `yaml:"images"`
	// NotificationWindow is how old an inbound notification may be.
	NotificationWindow time.Duration `yaml:"notification_window"`
}

// RateLimitConfig defines eBay API rate limiting settings.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// ImageConfig rewrites picture URLs from the internal host to the public one.
type ImageConfig struct {
	FromHost string `yaml:"from_host"`
	ToHost   string `yaml:"to_host"`
}

// CoreConfig defines the core platform API client settings.
type CoreConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// SKUConfig defines how SKUs are minted for this environment.
type SKUConfig struct {
	Prefix string `yaml:"prefix"`
}

// PublishConfig defines listing defaults and the publish retry policy.
type PublishConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	MinimumPrice    string        `yaml:"minimum_price"`
	DispatchDays    int           `yaml:"dispatch_days"`
	ConditionID     int           `yaml:"condition_id"`
	ListingDuration string        `yaml:"listing_duration"`
	// ReturnPolicyCountries lists marketplaces that reject listings without
	// a return policy.
	ReturnPolicyCountries []string `yaml:"return_policy_countries"`
}

// SyncConfig defines delta sync cadence and batching.
type SyncConfig struct {
	ProductsInterval   time.Duration `yaml:"products_interval"`
	OrdersInterval     time.Duration `yaml:"orders_interval"`
	ReturnsInterval    time.Duration `yaml:"returns_interval"`
	CategoriesInterval time.Duration `yaml:"categories_interval"`
	ShippingInterval   time.Duration `yaml:"shipping_interval"`
	PageSize           int           `yaml:"page_size"`
	CategoryBatchSize  int           `yaml:"category_batch_size"`
	Countries          []string      `yaml:"countries"`
}

// TasksConfig selects the background task backend.
type TasksConfig struct {
	Backend string      `yaml:"backend"` // memory, kafka
	Workers int         `yaml:"workers"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// KafkaConfig defines the Kafka task transport.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// RedisConfig defines the Redis connection used for notification replay
// protection.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// TracingConfig defines OpenTelemetry export settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// AlertsConfig defines alert targets.
type AlertsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML config content, applying defaults and validation.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyEbayDefaults(&cfg.Ebay)
	applyCoreDefaults(&cfg.Core)
	applyPublishDefaults(&cfg.Publish)
	applySyncDefaults(&cfg.Sync)
	applyTasksDefaults(&cfg.Tasks)
	applyTracingDefaults(&cfg.Tracing)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
	if s.AuthHeader == "" {
		s.AuthHeader = "X-Auth-User"
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyEbayDefaults(e *EbayConfig) {
	if e.TradingURL == "" {
		e.TradingURL = "https://api.ebay.com/ws/api.dll"
	}
	if e.InventoryURL == "" {
		e.InventoryURL = "https://api.ebay.com/selling/inventory/v1"
	}
	if e.CompatibilityLevel == 0 {
		e.CompatibilityLevel = 1193
	}
	if e.Timeout == 0 {
		e.Timeout = 30 * time.Second
	}
	if e.NotificationWindow == 0 {
		e.NotificationWindow = 10 * time.Minute
	}
	applyRateLimitDefaults(&e.RateLimit)
}

func applyRateLimitDefaults(r *RateLimitConfig) {
	if r.PerSecond == 0 {
		r.PerSecond = 5.0
	}
	if r.Burst == 0 {
		r.Burst = 10
	}
	if r.DailyLimit == 0 {
		r.DailyLimit = 5000
	}
}

func applyCoreDefaults(c *CoreConfig) {
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
}

func applyPublishDefaults(p *PublishConfig) {
	if p.MaxRetries == 0 {
		p.MaxRetries = 5
	}
	if p.RetryDelay == 0 {
		p.RetryDelay = 30 * time.Second
	}
	if p.MinimumPrice == "" {
		p.MinimumPrice = "1.00"
	}
	if p.DispatchDays == 0 {
		p.DispatchDays = 3
	}
	if p.ConditionID == 0 {
		p.ConditionID = 1000
	}
	if p.ListingDuration == "" {
		p.ListingDuration = "GTC"
	}
}

func applySyncDefaults(s *SyncConfig) {
	if s.ProductsInterval == 0 {
		s.ProductsInterval = 15 * time.Minute
	}
	if s.OrdersInterval == 0 {
		s.OrdersInterval = 10 * time.Minute
	}
	if s.ReturnsInterval == 0 {
		s.ReturnsInterval = 30 * time.Minute
	}
	if s.CategoriesInterval == 0 {
		s.CategoriesInterval = 168 * time.Hour
	}
	if s.ShippingInterval == 0 {
		s.ShippingInterval = 24 * time.Hour
	}
	if s.PageSize == 0 {
		s.PageSize = 100
	}
	if s.CategoryBatchSize == 0 {
		s.CategoryBatchSize = 20
	}
}

func applyTasksDefaults(t *TasksConfig) {
	if t.Backend == "" {
		t.Backend = "memory"
	}
	if t.Workers == 0 {
		t.Workers = 4
	}
	if t.Kafka.Topic == "" {
		t.Kafka.Topic = "ebay-connector.tasks"
	}
	if t.Kafka.GroupID == "" {
		t.Kafka.GroupID = "ebay-connector"
	}
}

func applyTracingDefaults(t *TracingConfig) {
	if t.ServiceName == "" {
		t.ServiceName = "ebay-connector"
	}
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if cfg.Database.Name == "" {
		errs = append(errs, fmt.Errorf("database.name is required"))
	}
	if cfg.Database.User == "" {
		errs = append(errs, fmt.Errorf("database.user is required"))
	}

	if cfg.Ebay.DevID == "" || cfg.Ebay.AppID == "" || cfg.Ebay.CertID == "" {
		errs = append(errs, fmt.Errorf("ebay.dev_id, ebay.app_id and ebay.cert_id are required"))
	}
	if cfg.Core.BaseURL == "" {
		errs = append(errs, fmt.Errorf("core.base_url is required"))
	}
	if cfg.SKU.Prefix == "" {
		errs = append(errs, fmt.Errorf("sku.prefix is required"))
	}
	if cfg.Publish.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("publish.max_retries must not be negative"))
	}

	switch cfg.Tasks.Backend {
	case "memory":
	case "kafka":
		if len(cfg.Tasks.Kafka.Brokers) == 0 {
			errs = append(
				errs,
				fmt.Errorf("tasks.kafka.brokers is required when backend is kafka"),
			)
		}
	default:
		errs = append(
			errs,
			fmt.Errorf("tasks.backend must be one of: memory, kafka (got %q)", cfg.Tasks.Backend),
		)
	}

	if cfg.Redis.Enabled && cfg.Redis.URL == "" {
		errs = append(errs, fmt.Errorf("redis.url is required when redis is enabled"))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL == "" {
		errs = append(
			errs,
			fmt.Errorf("alerts.discord.webhook_url is required when discord is enabled"),
		)
	}

	return errors.Join(errs...)
}
