package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TIPENGINE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TIPENGINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "TIPENGINE_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "TIPENGINE_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "TIPENGINE_DATABASE_HOST")
	setInt(&cfg.Database.Port, "TIPENGINE_DATABASE_PORT")
	setStr(&cfg.Database.Database, "TIPENGINE_DATABASE_NAME")
	setStr(&cfg.Database.User, "TIPENGINE_DATABASE_USER")
	setStr(&cfg.Database.Password, "TIPENGINE_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "TIPENGINE_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "TIPENGINE_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "TIPENGINE_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "TIPENGINE_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TIPENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TIPENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TIPENGINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TIPENGINE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TIPENGINE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TIPENGINE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "TIPENGINE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TIPENGINE_S3_REGION")
	setStr(&cfg.S3.Bucket, "TIPENGINE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TIPENGINE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TIPENGINE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TIPENGINE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TIPENGINE_S3_FORCE_PATH_STYLE")

	// ── NRL feed ──
	setStr(&cfg.NRL.BaseURL, "TIPENGINE_NRL_BASE_URL")
	setInt(&cfg.NRL.Competition, "TIPENGINE_NRL_COMPETITION")
	setInt(&cfg.NRL.Season, "TIPENGINE_NRL_SEASON")

	// ── Sportsbook feed ──
	setStr(&cfg.Sportsbook.BaseURL, "TIPENGINE_SPORTSBOOK_BASE_URL")
	setStr(&cfg.Sportsbook.APIKey, "TIPENGINE_SPORTSBOOK_API_KEY")
	setStr(&cfg.Sportsbook.Sport, "TIPENGINE_SPORTSBOOK_SPORT")
	setBool(&cfg.Sportsbook.Enabled, "TIPENGINE_SPORTSBOOK_ENABLED")

	// ── Bot ──
	setBool(&cfg.Bot.Enabled, "TIPENGINE_BOT_ENABLED")
	setStr(&cfg.Bot.Username, "TIPENGINE_BOT_USERNAME")
	setStr(&cfg.Bot.Model, "TIPENGINE_BOT_MODEL")
	setFloat64(&cfg.Bot.ProbabilityThreshold, "TIPENGINE_BOT_PROBABILITY_THRESHOLD")
	setFloat64(&cfg.Bot.KellyCap, "TIPENGINE_BOT_KELLY_CAP")
	setFloat64(&cfg.Bot.SafetyFraction, "TIPENGINE_BOT_SAFETY_FRACTION")
	setFloat64(&cfg.Bot.MaxBankrollFraction, "TIPENGINE_BOT_MAX_BANKROLL_FRACTION")
	setFloat64(&cfg.Bot.MinStake, "TIPENGINE_BOT_MIN_STAKE")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "TIPENGINE_PIPELINE_ENABLED")
	setDuration(&cfg.Pipeline.FixtureSyncInterval, "TIPENGINE_PIPELINE_FIXTURE_SYNC_INTERVAL")
	setDuration(&cfg.Pipeline.OddsInterval, "TIPENGINE_PIPELINE_ODDS_INTERVAL")
	setDuration(&cfg.Pipeline.ResultsInterval, "TIPENGINE_PIPELINE_RESULTS_INTERVAL")
	setDuration(&cfg.Pipeline.RoundsInterval, "TIPENGINE_PIPELINE_ROUNDS_INTERVAL")
	setDuration(&cfg.Pipeline.PredictionsInterval, "TIPENGINE_PIPELINE_PREDICTIONS_INTERVAL")
	setDuration(&cfg.Pipeline.BotInterval, "TIPENGINE_PIPELINE_BOT_INTERVAL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "TIPENGINE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.Hour, "TIPENGINE_ARCHIVE_HOUR")
	setInt(&cfg.Archive.RetentionDays, "TIPENGINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Prefix, "TIPENGINE_ARCHIVE_PREFIX")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TIPENGINE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TIPENGINE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TIPENGINE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TIPENGINE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "TIPENGINE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TIPENGINE_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhookURL, "TIPENGINE_NOTIFY_DISCORD_WEBHOOK_URL")
	setBool(&cfg.Notify.KafkaEnabled, "TIPENGINE_NOTIFY_KAFKA_ENABLED")
	setStringSlice(&cfg.Notify.KafkaBrokers, "TIPENGINE_NOTIFY_KAFKA_BROKERS")
	setStr(&cfg.Notify.KafkaTopic, "TIPENGINE_NOTIFY_KAFKA_TOPIC")
	setStringSlice(&cfg.Notify.Events, "TIPENGINE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TIPENGINE_MODE")
	setStr(&cfg.LogLevel, "TIPENGINE_LOG_LEVEL")
	setStr(&cfg.LogFormat, "TIPENGINE_LOG_FORMAT")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
