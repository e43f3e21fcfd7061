// Package config defines the top-level configuration for the tipping engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TIPENGINE_* environment variables.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	NRL        NRLConfig        `toml:"nrl"`
	Sportsbook SportsbookConfig `toml:"sportsbook"`
	Bot        BotConfig        `toml:"bot"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
	LogFormat  string           `toml:"log_format"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger exports.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NRLConfig holds the fixture/result feed parameters.
type NRLConfig struct {
	BaseURL     string `toml:"base_url"`
	Competition int    `toml:"competition"`
	Season      int    `toml:"season"`
}

// SportsbookConfig holds the bookmaker odds feed parameters. When disabled,
// prices fall back to the ones embedded in the draw feed.
type SportsbookConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Sport   string `toml:"sport"`
	Enabled bool   `toml:"enabled"`
}

// BotConfig holds the automated bettor and its model parameters.
type BotConfig struct {
	Enabled              bool    `toml:"enabled"`
	Username             string  `toml:"username"`
	Model                string  `toml:"model"`
	ProbabilityThreshold float64 `toml:"probability_threshold"`
	KellyCap             float64 `toml:"kelly_cap"`
	SafetyFraction       float64 `toml:"safety_fraction"`
	MaxBankrollFraction  float64 `toml:"max_bankroll_fraction"`
	MinStake             float64 `toml:"min_stake"`
}

// PipelineConfig holds background job cadence.
type PipelineConfig struct {
	Enabled             bool     `toml:"enabled"`
	FixtureSyncInterval duration `toml:"fixture_sync_interval"`
	OddsInterval        duration `toml:"odds_interval"`
	ResultsInterval     duration `toml:"results_interval"`
	RoundsInterval      duration `toml:"rounds_interval"`
	PredictionsInterval duration `toml:"predictions_interval"`
	BotInterval         duration `toml:"bot_interval"`
}

// ArchiveConfig holds the daily S3 export parameters.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	Hour          int    `toml:"hour"` // UTC hour of day the export runs
	RetentionDays int    `toml:"retention_days"`
	Prefix        string `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"` // required for /api/admin routes
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds outbound event sink parameters. The redis signal bus is
// always on; Discord and Kafka are additive.
type NotifyConfig struct {
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	KafkaEnabled      bool     `toml:"kafka_enabled"`
	KafkaBrokers      []string `toml:"kafka_brokers"`
	KafkaTopic        string   `toml:"kafka_topic"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tipengine",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "ap-southeast-2",
			Bucket:         "tipengine-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		NRL: NRLConfig{
			BaseURL:     "https://www.nrl.com",
			Competition: 111,
			Season:      2026,
		},
		Sportsbook: SportsbookConfig{
			BaseURL: "https://api.the-odds-api.com",
			Sport:   "rugbyleague_nrl",
			Enabled: false,
		},
		Bot: BotConfig{
			Enabled:              true,
			Username:             "LogisticsRegressionBot",
			Model:                "implied_odds_v1",
			ProbabilityThreshold: 0.52,
			KellyCap:             0.25,
			SafetyFraction:       0.5,
			MaxBankrollFraction:  0.10,
			MinStake:             0.01,
		},
		Pipeline: PipelineConfig{
			Enabled:             true,
			FixtureSyncInterval: duration{6 * time.Hour},
			OddsInterval:        duration{30 * time.Minute},
			ResultsInterval:     duration{2 * time.Minute},
			RoundsInterval:      duration{10 * time.Minute},
			PredictionsInterval: duration{time.Hour},
			BotInterval:         duration{time.Hour},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Hour:          3,
			RetentionDays: 30,
			Prefix:        "archive",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			KafkaBrokers: []string{"localhost:9092"},
			KafkaTopic:   "tipengine.bankroll",
			Events:       []string{"settlement", "bonus"},
		},
		Mode:      "full",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve": true,
	"jobs":  true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, jobs, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: json, text)", c.LogFormat))
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.NRL.BaseURL == "" {
		errs = append(errs, "nrl: base_url must not be empty")
	}
	if c.NRL.Competition <= 0 {
		errs = append(errs, "nrl: competition must be positive")
	}
	if c.NRL.Season < 2000 {
		errs = append(errs, fmt.Sprintf("nrl: season looks wrong, got %d", c.NRL.Season))
	}

	if c.Sportsbook.Enabled && c.Sportsbook.BaseURL == "" {
		errs = append(errs, "sportsbook: base_url is required when enabled")
	}
	if c.Sportsbook.Enabled && c.Sportsbook.APIKey == "" {
		errs = append(errs, "sportsbook: api_key is required when enabled")
	}

	if c.Bot.Enabled {
		if c.Bot.Username == "" {
			errs = append(errs, "bot: username must not be empty when enabled")
		}
		if c.Bot.ProbabilityThreshold < 0.5 || c.Bot.ProbabilityThreshold >= 1 {
			errs = append(errs, fmt.Sprintf("bot: probability_threshold must be in [0.5, 1), got %g", c.Bot.ProbabilityThreshold))
		}
		if c.Bot.KellyCap <= 0 || c.Bot.KellyCap > 1 {
			errs = append(errs, fmt.Sprintf("bot: kelly_cap must be in (0, 1], got %g", c.Bot.KellyCap))
		}
		if c.Bot.SafetyFraction <= 0 || c.Bot.SafetyFraction > 1 {
			errs = append(errs, fmt.Sprintf("bot: safety_fraction must be in (0, 1], got %g", c.Bot.SafetyFraction))
		}
		if c.Bot.MaxBankrollFraction <= 0 || c.Bot.MaxBankrollFraction > 1 {
			errs = append(errs, fmt.Sprintf("bot: max_bankroll_fraction must be in (0, 1], got %g", c.Bot.MaxBankrollFraction))
		}
		if c.Bot.MinStake < 0 {
			errs = append(errs, "bot: min_stake must be >= 0")
		}
	}

	if c.Archive.Enabled {
		if c.Archive.Hour < 0 || c.Archive.Hour > 23 {
			errs = append(errs, fmt.Sprintf("archive: hour must be 0-23, got %d", c.Archive.Hour))
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if c.Notify.KafkaEnabled {
		if len(c.Notify.KafkaBrokers) == 0 {
			errs = append(errs, "notify: kafka_brokers must not be empty when kafka is enabled")
		}
		if c.Notify.KafkaTopic == "" {
			errs = append(errs, "notify: kafka_topic must not be empty when kafka is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
