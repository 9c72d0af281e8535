// Package config defines the top-level configuration for the zmart daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ZMART_* environment variables.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Market     MarketConfig     `toml:"market"`
	Governance GovernanceConfig `toml:"governance"`
	Resolver   ResolverConfig   `toml:"resolver"`
	Notify     NotifyConfig     `toml:"notify"`
	Archive    ArchiveConfig    `toml:"archive"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"` // empty disables authentication
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
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

// MarketConfig holds the AMM and betting parameters.
type MarketConfig struct {
	SeedLiquidity uint64   `toml:"seed_liquidity"` // virtual lamports per pool at market open
	MinBet        uint64   `toml:"min_bet"`        // lamports
	BetRateLimit  int      `toml:"bet_rate_limit"` // bets per user per window, 0 disables
	BetRateWindow duration `toml:"bet_rate_window"`
}

// GovernanceConfig holds the proposal approval parameters.
type GovernanceConfig struct {
	ApprovalThreshold int64    `toml:"approval_threshold"` // net votes for instant approval
	VotingWindow      duration `toml:"voting_window"`
	VoteRateLimit     int      `toml:"vote_rate_limit"` // votes per user per window, 0 disables
	VoteRateWindow    duration `toml:"vote_rate_window"`
}

// ResolverConfig holds the resolver authority set and, optionally, this
// node's own signing key for the resolve CLI.
type ResolverConfig struct {
	// Addresses is the allow-list of resolver authorities, hex encoded.
	Addresses []string `toml:"addresses"`

	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ArchiveConfig holds the cold-storage export parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"` // terminal markets older than this are exported
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "24h").
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
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       0,
			RateLimitWindow: duration{time.Minute},
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "zmart",
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
			Region:         "us-east-1",
			Bucket:         "zmart-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Market: MarketConfig{
			SeedLiquidity: 1_000_000,
			MinBet:        100_000,
			BetRateLimit:  30,
			BetRateWindow: duration{time.Minute},
		},
		Governance: GovernanceConfig{
			ApprovalThreshold: 50,
			VotingWindow:      duration{24 * time.Hour},
			VoteRateLimit:     60,
			VoteRateWindow:    duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"market_resolved", "proposal_approved", "proposal_rejected", "error"},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Interval:      duration{24 * time.Hour},
			RetentionDays: 90,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"archive": true,
	"full":    true,
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

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 only matters when archiving runs.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
	}

	// Market
	if c.Market.SeedLiquidity == 0 {
		errs = append(errs, "market: seed_liquidity must be > 0")
	}
	if c.Market.MinBet == 0 {
		errs = append(errs, "market: min_bet must be > 0")
	}

	// Governance
	if c.Governance.ApprovalThreshold <= 0 {
		errs = append(errs, "governance: approval_threshold must be > 0")
	}
	if c.Governance.VotingWindow.Duration <= 0 {
		errs = append(errs, "governance: voting_window must be positive")
	}

	// Resolver addresses must parse as hex addresses.
	for _, addr := range c.Resolver.Addresses {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("resolver: %q is not a valid hex address", addr))
		}
	}
	if c.Resolver.EncryptedKeyPath != "" && c.Resolver.KeyPassword == "" {
		errs = append(errs, "resolver: key_password is required when encrypted_key_path is set")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
