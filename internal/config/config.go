package config

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	HubSpot HubSpotConfig `yaml:"hubspot" mapstructure:"hubspot"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// HubSpotConfig holds CRM API credentials and call policy.
type HubSpotConfig struct {
	AccessToken     string      `yaml:"access_token" mapstructure:"access_token"`
	BaseURL         string      `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS    float64     `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	TargetPipelines []string    `yaml:"target_pipelines" mapstructure:"target_pipelines"`
	TimeoutSecs     int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry           RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig configures backoff on rate-limited calls.
type RetryConfig struct {
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// CacheConfig selects the cache backend and accessor TTLs.
type CacheConfig struct {
	Driver           string      `yaml:"driver" mapstructure:"driver"`
	Redis            RedisConfig `yaml:"redis" mapstructure:"redis"`
	DealsTTLSecs     int         `yaml:"deals_ttl_secs" mapstructure:"deals_ttl_secs"`
	StagesTTLSecs    int         `yaml:"stages_ttl_secs" mapstructure:"stages_ttl_secs"`
	PipelinesTTLSecs int         `yaml:"pipelines_ttl_secs" mapstructure:"pipelines_ttl_secs"`
	OwnersTTLSecs    int         `yaml:"owners_ttl_secs" mapstructure:"owners_ttl_secs"`
}

// RedisConfig holds Redis connection settings for the shared cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// StoreConfig configures the export ledger database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ExportConfig configures export job polling.
type ExportConfig struct {
	InitialDelayMs int `yaml:"initial_delay_ms" mapstructure:"initial_delay_ms"`
	IntervalMs     int `yaml:"interval_ms" mapstructure:"interval_ms"`
	TimeoutSecs    int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultTargetPipelines are the deal pipelines shown when none are configured.
var DefaultTargetPipelines = []string{"859017476", "859172223", "859283831"}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEALDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("hubspot.access_token", "")
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.rate_limit_rps", 9)
	v.SetDefault("hubspot.target_pipelines", DefaultTargetPipelines)
	v.SetDefault("hubspot.timeout_secs", 30)
	v.SetDefault("hubspot.retry.max_retries", 3)
	v.SetDefault("hubspot.retry.initial_backoff_ms", 1000)
	v.SetDefault("hubspot.retry.max_backoff_ms", 30000)
	v.SetDefault("hubspot.retry.multiplier", 2.0)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "dealdesk:")
	v.SetDefault("cache.deals_ttl_secs", 300)
	v.SetDefault("cache.stages_ttl_secs", 3600)
	v.SetDefault("cache.pipelines_ttl_secs", 300)
	v.SetDefault("cache.owners_ttl_secs", 3600)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dealdesk.db")
	v.SetDefault("export.initial_delay_ms", 2000)
	v.SetDefault("export.interval_ms", 3000)
	v.SetDefault("export.timeout_secs", 300)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required by a command mode: "api" for
// anything that talks to HubSpot, "serve" for the HTTP server, "store" for
// ledger-only commands.
func (c *Config) Validate(mode string) error {
	var errs []string

	needsAPI := mode == "api" || mode == "serve"
	needsStore := mode == "store" || mode == "serve" || mode == "api"
	switch mode {
	case "api", "serve", "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsAPI && c.HubSpot.AccessToken == "" {
		errs = append(errs, "hubspot.access_token is required")
	}
	if needsAPI && c.HubSpot.Retry.MaxRetries < 0 {
		errs = append(errs, "hubspot.retry.max_retries must be >= 0")
	}
	if needsStore {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	if needsAPI {
		switch c.Cache.Driver {
		case "memory", "redis", "none":
		default:
			errs = append(errs, "cache.driver must be memory, redis or none")
		}
	}
	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
