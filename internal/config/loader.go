package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AUCTIONEER_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AUCTIONEER_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Auctioneer ──
	setStr(&cfg.Auctioneer.ProgramID, "AUCTIONEER_PROGRAM_ID")
	setStr(&cfg.Auctioneer.EngineProgramID, "AUCTIONEER_ENGINE_PROGRAM_ID")
	setInt(&cfg.Auctioneer.MaxNonceAttempts, "AUCTIONEER_MAX_NONCE_ATTEMPTS")
	setDuration(&cfg.Auctioneer.LockTTL, "AUCTIONEER_LOCK_TTL")
	setInt64(&cfg.Auctioneer.ChainID, "AUCTIONEER_CHAIN_ID")

	// ── Engine ──
	setStr(&cfg.Engine.Mode, "AUCTIONEER_ENGINE_MODE")
	setStr(&cfg.Engine.BaseURL, "AUCTIONEER_ENGINE_BASE_URL")
	setStr(&cfg.Engine.ApiKey, "AUCTIONEER_ENGINE_API_KEY")
	setStr(&cfg.Engine.ApiSecret, "AUCTIONEER_ENGINE_API_SECRET")
	setStr(&cfg.Engine.ApiPassphrase, "AUCTIONEER_ENGINE_API_PASSPHRASE")
	setDuration(&cfg.Engine.Timeout, "AUCTIONEER_ENGINE_TIMEOUT")
	setInt(&cfg.Engine.CacheSize, "AUCTIONEER_ENGINE_CACHE_SIZE")

	// ── Operator ──
	setStr(&cfg.Operator.PrivateKey, "AUCTIONEER_OPERATOR_PRIVATE_KEY")
	setStr(&cfg.Operator.EncryptedKeyPath, "AUCTIONEER_OPERATOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Operator.KeyPassword, "AUCTIONEER_OPERATOR_KEY_PASSWORD")

	// ── Store ──
	setStr(&cfg.Store.Backend, "AUCTIONEER_STORE_BACKEND")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.DSN, "AUCTIONEER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "AUCTIONEER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AUCTIONEER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AUCTIONEER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AUCTIONEER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AUCTIONEER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AUCTIONEER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AUCTIONEER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AUCTIONEER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AUCTIONEER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AUCTIONEER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTIONEER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTIONEER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AUCTIONEER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AUCTIONEER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AUCTIONEER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Prefix, "AUCTIONEER_REDIS_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AUCTIONEER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AUCTIONEER_S3_REGION")
	setStr(&cfg.S3.Bucket, "AUCTIONEER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AUCTIONEER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AUCTIONEER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AUCTIONEER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AUCTIONEER_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "AUCTIONEER_SERVER_PORT")
	setStr(&cfg.Server.ApiKey, "AUCTIONEER_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "AUCTIONEER_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "AUCTIONEER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "AUCTIONEER_SERVER_RATE_WINDOW")
	setDuration(&cfg.Server.SignatureMaxAge, "AUCTIONEER_SERVER_SIGNATURE_MAX_AGE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "AUCTIONEER_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "AUCTIONEER_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.Retention, "AUCTIONEER_ARCHIVE_RETENTION")
	setStr(&cfg.Archive.Cron, "AUCTIONEER_ARCHIVE_CRON")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhook, "AUCTIONEER_NOTIFY_DISCORD_WEBHOOK")
	setStr(&cfg.Notify.TelegramToken, "AUCTIONEER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AUCTIONEER_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "AUCTIONEER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AUCTIONEER_MODE")
	setStr(&cfg.LogLevel, "AUCTIONEER_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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
