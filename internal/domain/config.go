package domain

import "time"

// Config holds the complete storefront configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines infrastructure choices
	Tier Tier `json:"tier"`

	// Component configurations
	Source CatalogSourceConfig `json:"source"`
	Cache  CacheConfig         `json:"cache"`
	Warmer WarmerConfig        `json:"warmer"`
	Bus    EventBusConfig      `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// CatalogSourceConfig holds database settings for the catalog source.
type CatalogSourceConfig struct {
	Driver string `json:"driver"` // "sqlite" or "postgres"

	SQLitePath string `json:"sqlitePath,omitempty"`

	PostgresHost     string `json:"postgresHost,omitempty"`
	PostgresPort     int    `json:"postgresPort,omitempty"`
	PostgresUser     string `json:"postgresUser,omitempty"`
	PostgresPassword string `json:"postgresPassword,omitempty"`
	PostgresDB       string `json:"postgresDb,omitempty"`
	PostgresSSLMode  string `json:"postgresSslMode,omitempty"`

	MaxOpenConns    int           `json:"maxOpenConns,omitempty"`
	MaxIdleConns    int           `json:"maxIdleConns,omitempty"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime,omitempty"`
}

// CacheConfig holds configuration for the cache stack.
type CacheConfig struct {
	// Type is the distributed store backing: "memory" or "redis"
	Type string `json:"type"`

	// Redis settings
	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword string `json:"redisPassword,omitempty"`
	RedisDB       int    `json:"redisDb,omitempty"`

	// Memory store settings (Community tier and tests)
	LocalMaxSize int `json:"localMaxSize,omitempty"`

	// LocalTierTTL is the window for the in-process tier that fronts the
	// hottest read paths. Zero disables the local tier.
	LocalTierTTL time.Duration `json:"localTierTtl,omitempty"`

	// LookupTimeout bounds a single distributed store read. A read that
	// does not resolve within the bound is treated as a miss.
	LookupTimeout time.Duration `json:"lookupTimeout,omitempty"`

	// StaleFraction is the share of a domain's TTL under which a
	// remaining-TTL read reports the entry as stale. Defaults to 0.2.
	StaleFraction float64 `json:"staleFraction,omitempty"`
}

// WarmerConfig bounds the cache warming job.
type WarmerConfig struct {
	// PageSizes are the listing page sizes traffic is expected to use.
	PageSizes []int `json:"pageSizes"`

	// MaxPagesPerCombination caps sequential pagination for one axis
	// combination. The short-page stop rule alone does not bound a
	// pathological distribution where every page lands exactly on the
	// page-size boundary.
	MaxPagesPerCombination int `json:"maxPagesPerCombination"`

	// ProductConcurrency is the fan-out limit for the per-product pass.
	ProductConcurrency int `json:"productConcurrency"`

	// KeyPreviewLimit truncates the warmed-key list in the report.
	KeyPreviewLimit int `json:"keyPreviewLimit"`
}

// EventBusConfig holds event bus settings for catalog change events.
type EventBusConfig struct {
	Type string `json:"type"` // "channel" or "nats"

	ChannelBufferSize int `json:"channelBufferSize,omitempty"`

	NATSUrl           string `json:"natsUrl,omitempty"`
	NATSToken         string `json:"natsToken,omitempty"`
	NATSMaxReconnects int    `json:"natsMaxReconnects,omitempty"`
	NATSReconnectWait int    `json:"natsReconnectWait,omitempty"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-memory store + channel bus.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + Redis + NATS.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for the Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Source: CatalogSourceConfig{
			Driver:     "sqlite",
			SQLitePath: "./storefront.db",
		},
		Cache: CacheConfig{
			Type:          "memory",
			LocalMaxSize:  10000,
			LocalTierTTL:  30 * time.Second,
			LookupTimeout: 300 * time.Millisecond,
			StaleFraction: 0.2,
		},
		Warmer: WarmerConfig{
			PageSizes:              []int{12, 24},
			MaxPagesPerCombination: 50,
			ProductConcurrency:     8,
			KeyPreviewLimit:        100,
		},
		Bus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "storefront",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Source = CatalogSourceConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "storefront",
	}
	cfg.Cache.Type = "redis"
	cfg.Cache.RedisAddr = "localhost:6379"
	cfg.Bus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
