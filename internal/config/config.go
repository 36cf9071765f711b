package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/crmsync/pkg/config"
)

// Config holds all configuration for the CRM sync service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"SYNC_HTTP_PORT" envDefault:"8010"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"crmsync"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"crmsync_secret"`
	PostgresDB   string `env:"SYNC_DB_NAME" envDefault:"crmsync_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Upstream CRM API
	CRMBaseURL      string `env:"CRM_BASE_URL" envDefault:"https://services.leadconnectorhq.com"`
	CRMClientID     string `env:"CRM_CLIENT_ID"`
	CRMClientSecret string `env:"CRM_CLIENT_SECRET"`
	CRMAPIVersion   string `env:"CRM_API_VERSION" envDefault:"2021-07-28"`

	// Sync engine
	SyncPageSize      int           `env:"SYNC_PAGE_SIZE" envDefault:"100"`
	SyncBatchSize     int           `env:"SYNC_BATCH_SIZE" envDefault:"3000"`
	SyncRetryAttempts int           `env:"SYNC_RETRY_ATTEMPTS" envDefault:"3"`
	SyncRetryDelay    time.Duration `env:"SYNC_RETRY_DELAY" envDefault:"60s"`
	SyncInterval      time.Duration `env:"SYNC_INTERVAL" envDefault:"1h"`
	SyncWorkers       int           `env:"SYNC_WORKERS" envDefault:"4"`

	// Profiling endpoints are restricted to these CIDRs.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load sync config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.SyncPageSize < 1 {
		return fmt.Errorf("invalid sync page size: %d", c.SyncPageSize)
	}
	if c.SyncBatchSize < 1 {
		return fmt.Errorf("invalid sync batch size: %d", c.SyncBatchSize)
	}
	if c.SyncWorkers < 1 {
		return fmt.Errorf("invalid sync worker count: %d", c.SyncWorkers)
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
