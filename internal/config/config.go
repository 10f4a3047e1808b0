// Package config defines the auctioneer's configuration and validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUCTIONEER_* environment variables.
type Config struct {
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
	Auctioneer AuctioneerConfig `toml:"auctioneer"`
	Engine     EngineConfig     `toml:"engine"`
	Operator   OperatorConfig   `toml:"operator"`
	Store      StoreConfig      `toml:"store"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Archive    ArchiveConfig    `toml:"archive"`
	Notify     NotifyConfig     `toml:"notify"`
}

// AuctioneerConfig names the two programs identities are derived under.
type AuctioneerConfig struct {
	ProgramID        string   `toml:"program_id"`
	EngineProgramID  string   `toml:"engine_program_id"`
	MaxNonceAttempts int      `toml:"max_nonce_attempts"`
	LockTTL          duration `toml:"lock_ttl"`
	ChainID          int64    `toml:"chain_id"`
}

// EngineConfig selects the base engine. "memory" runs it in process.
type EngineConfig struct {
	Mode          string   `toml:"mode"`
	BaseURL       string   `toml:"base_url"`
	ApiKey        string   `toml:"api_key"`
	ApiSecret     string   `toml:"api_secret"`
	ApiPassphrase string   `toml:"api_passphrase"`
	Timeout       duration `toml:"timeout"`
	CacheSize     int      `toml:"cache_size"`
}

// OperatorConfig holds the key that signs instructions to a remote engine.
type OperatorConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// StoreConfig selects where listings, delegations and audit entries live.
// The backend also decides between Redis and in-process locks and bus.
type StoreConfig struct {
	Backend string `toml:"backend"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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
	Prefix     string `toml:"prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	ApiKey          string   `toml:"api_key"`
	CORSOrigins     []string `toml:"cors_origins"`
	RateLimit       int      `toml:"rate_limit"`
	RateWindow      duration `toml:"rate_window"`
	SignatureMaxAge duration `toml:"signature_max_age"`
}

// ArchiveConfig controls the closed-listing archiver.
type ArchiveConfig struct {
	Enabled   bool     `toml:"enabled"`
	Interval  duration `toml:"interval"`
	Retention duration `toml:"retention"`
	// Cron, when set, replaces Interval with a 5-field schedule.
	Cron      string   `toml:"cron"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	DiscordWebhook string   `toml:"discord_webhook"`
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
	Decimals       int32    `toml:"decimals"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// lockTTLMargin is the slack lock_ttl must leave over engine.timeout for the
// store write that follows a forward.
const lockTTLMargin = 5 * time.Second

// Defaults returns a Config that runs a single node against the in-process
// engine and stores. These match config.example.toml.
func Defaults() Config {
	return Config{
		Mode:     "serve",
		LogLevel: "info",
		Auctioneer: AuctioneerConfig{
			MaxNonceAttempts: 256,
			LockTTL:          duration{30 * time.Second},
			ChainID:          1,
		},
		Engine: EngineConfig{
			Mode:      "memory",
			Timeout:   duration{15 * time.Second},
			CacheSize: 1024,
		},
		Store: StoreConfig{Backend: "memory"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "auctioneer",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			Prefix:     "auctioneer",
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "auctioneer-archive",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"*"},
			RateLimit:       120,
			RateWindow:      duration{time.Minute},
			SignatureMaxAge: duration{30 * time.Second},
		},
		Archive: ArchiveConfig{
			Interval:  duration{time.Hour},
			Retention: duration{30 * 24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events:   []string{string(domain.EventSaleExecuted), string(domain.EventListingCanceled)},
			Decimals: 9,
		},
	}
}

var validModes = map[string]bool{
	"serve":   true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: serve, archive)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Auctioneer
	if _, err := domain.ParseAddress(c.Auctioneer.ProgramID); err != nil {
		add("auctioneer: program_id: %v", err)
	}
	if _, err := domain.ParseAddress(c.Auctioneer.EngineProgramID); err != nil {
		add("auctioneer: engine_program_id: %v", err)
	}
	if c.Auctioneer.ProgramID != "" && c.Auctioneer.ProgramID == c.Auctioneer.EngineProgramID {
		add("auctioneer: program_id and engine_program_id must differ")
	}
	if c.Auctioneer.MaxNonceAttempts < 1 || c.Auctioneer.MaxNonceAttempts > 256 {
		add("auctioneer: max_nonce_attempts must be 1-256, got %d", c.Auctioneer.MaxNonceAttempts)
	}
	if c.Auctioneer.LockTTL.Duration <= 0 {
		add("auctioneer: lock_ttl must be > 0")
	} else if floor := c.Engine.Timeout.Duration + lockTTLMargin; c.Auctioneer.LockTTL.Duration < floor {
		// The listing lock must outlive a forward that runs to its timeout.
		add("auctioneer: lock_ttl %s must be at least engine.timeout + %s (%s)",
			c.Auctioneer.LockTTL.Duration, lockTTLMargin, floor)
	}
	if c.Auctioneer.ChainID <= 0 {
		add("auctioneer: chain_id must be positive")
	}

	// Engine
	switch c.Engine.Mode {
	case "memory":
	case "remote":
		if c.Engine.BaseURL == "" {
			add("engine: base_url is required for mode remote")
		}
		if c.Operator.PrivateKey == "" && c.Operator.EncryptedKeyPath == "" {
			add("operator: either private_key or encrypted_key_path must be set for engine mode remote")
		}
		if c.Operator.EncryptedKeyPath != "" && c.Operator.KeyPassword == "" {
			add("operator: key_password is required when encrypted_key_path is set")
		}
		// HMAC credentials go together or not at all.
		k, s, p := c.Engine.ApiKey != "", c.Engine.ApiSecret != "", c.Engine.ApiPassphrase != ""
		if (k || s || p) && !(k && s && p) {
			add("engine: api_key, api_secret, and api_passphrase must all be set together")
		}
	default:
		add("engine: unknown mode %q (valid: memory, remote)", c.Engine.Mode)
	}
	if c.Engine.Timeout.Duration <= 0 {
		add("engine: timeout must be > 0")
	}
	if c.Engine.CacheSize < 1 {
		add("engine: cache_size must be >= 1")
	}

	// Store
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must be 0-%d", c.Postgres.PoolMaxConns)
		}
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty for store backend postgres")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	default:
		add("store: unknown backend %q (valid: memory, postgres)", c.Store.Backend)
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		add("server: rate_window must be > 0 when rate_limit is set")
	}
	if c.Server.SignatureMaxAge.Duration <= 0 {
		add("server: signature_max_age must be > 0")
	}

	// Archive
	if c.Archive.Enabled || c.Mode == "archive" {
		if c.Store.Backend != "postgres" {
			add("archive: requires store backend postgres")
		}
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
		if c.Archive.Cron == "" && c.Archive.Interval.Duration <= 0 {
			add("archive: interval must be > 0")
		}
		if c.Archive.Retention.Duration <= 0 {
			add("archive: retention must be > 0")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.Decimals < 0 || c.Notify.Decimals > 18 {
		add("notify: decimals must be 0-18, got %d", c.Notify.Decimals)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}
