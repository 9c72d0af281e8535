package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"bad mode": {
			mutate: func(c *Config) { c.Mode = "trade" },
			want:   "unknown mode",
		},
		"bad log level": {
			mutate: func(c *Config) { c.LogLevel = "verbose" },
			want:   "unknown log_level",
		},
		"zero min bet": {
			mutate: func(c *Config) { c.Market.MinBet = 0 },
			want:   "min_bet",
		},
		"zero seed liquidity": {
			mutate: func(c *Config) { c.Market.SeedLiquidity = 0 },
			want:   "seed_liquidity",
		},
		"negative threshold": {
			mutate: func(c *Config) { c.Governance.ApprovalThreshold = -1 },
			want:   "approval_threshold",
		},
		"bad resolver address": {
			mutate: func(c *Config) { c.Resolver.Addresses = []string{"not-an-address"} },
			want:   "not a valid hex address",
		},
		"encrypted key without password": {
			mutate: func(c *Config) { c.Resolver.EncryptedKeyPath = "/etc/zmart/key.json" },
			want:   "key_password",
		},
		"bad server port": {
			mutate: func(c *Config) { c.Server.Port = 70000 },
			want:   "server: port",
		},
		"archive without bucket": {
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.S3.Bucket = ""
			},
			want: "bucket",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateAggregatesAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Market.MinBet = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "min_bet", "redis: addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ZMART_MODE", "full")
	t.Setenv("ZMART_POSTGRES_DSN", "postgres://u:p@db:5432/zmart")
	t.Setenv("ZMART_MARKET_MIN_BET", "250000")
	t.Setenv("ZMART_GOVERNANCE_VOTING_WINDOW", "48h")
	t.Setenv("ZMART_RESOLVER_ADDRESSES", "0x1111111111111111111111111111111111111111, 0x2222222222222222222222222222222222222222")
	t.Setenv("ZMART_SERVER_ENABLED", "false")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Mode != "full" {
		t.Fatalf("mode = %q, want full", cfg.Mode)
	}
	if cfg.Postgres.DSN != "postgres://u:p@db:5432/zmart" {
		t.Fatalf("dsn = %q", cfg.Postgres.DSN)
	}
	if cfg.Market.MinBet != 250_000 {
		t.Fatalf("min bet = %d", cfg.Market.MinBet)
	}
	if cfg.Governance.VotingWindow.Duration != 48*time.Hour {
		t.Fatalf("voting window = %v", cfg.Governance.VotingWindow.Duration)
	}
	if len(cfg.Resolver.Addresses) != 2 {
		t.Fatalf("resolver addresses = %v", cfg.Resolver.Addresses)
	}
	if cfg.Server.Enabled {
		t.Fatal("server should be disabled")
	}
}

func TestEnvOverrideIgnoresUnparseable(t *testing.T) {
	t.Setenv("ZMART_MARKET_MIN_BET", "lots")
	t.Setenv("ZMART_SERVER_PORT", "eighty")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Market.MinBet != Defaults().Market.MinBet {
		t.Fatalf("min bet = %d, want default", cfg.Market.MinBet)
	}
	if cfg.Server.Port != Defaults().Server.Port {
		t.Fatalf("port = %d, want default", cfg.Server.Port)
	}
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "super-secret"
	cfg.Postgres.Password = "hunter2"
	cfg.Resolver.PrivateKey = "4c0883a69102937d"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	for name, got := range map[string]string{
		"api key":           red.Server.APIKey,
		"postgres password": red.Postgres.Password,
		"resolver key":      red.Resolver.PrivateKey,
		"telegram token":    red.Notify.TelegramToken,
	} {
		if got != "***" {
			t.Fatalf("%s not redacted: %q", name, got)
		}
	}

	// Original must be untouched.
	if cfg.Server.APIKey != "super-secret" {
		t.Fatal("redaction mutated the original")
	}

	// Slice copies must be independent.
	red.Resolver.Addresses = append(red.Resolver.Addresses, "0x3333333333333333333333333333333333333333")
	if len(cfg.Resolver.Addresses) != 0 {
		t.Fatalf("original resolver addresses mutated: %v", cfg.Resolver.Addresses)
	}
}
