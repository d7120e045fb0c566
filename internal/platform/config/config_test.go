package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Store:              StoreMemory,
		Environment:        "development",
		TokenTTL:           time.Hour,
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 60,
		DefaultVacation:    21,
		DefaultWFH:         24,
		DefaultLateEarly:   40,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE", "")
	t.Setenv("DEFAULT_LATE_EARLY_HOURS", "")
	t.Setenv("CATALOG_TTL", "")

	cfg := Load()
	if cfg.Store != StorePostgres {
		t.Fatalf("expected postgres store by default, got %q", cfg.Store)
	}
	if cfg.DefaultLateEarly != 40 {
		t.Fatalf("expected 40 late/early hours, got %v", cfg.DefaultLateEarly)
	}
	if cfg.CatalogTTL != 5*time.Minute {
		t.Fatalf("unexpected catalog ttl %v", cfg.CatalogTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE", "MEMORY")
	t.Setenv("DEFAULT_LATE_EARLY_HOURS", "12.5")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	if cfg.Store != StoreMemory {
		t.Fatalf("expected memory store, got %q", cfg.Store)
	}
	if cfg.DefaultLateEarly != 12.5 {
		t.Fatalf("expected 12.5, got %v", cfg.DefaultLateEarly)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", cfg.TokenTTL)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("expected fallback redis db, got %d", cfg.RedisDB)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "memory ok", mutate: func(*Config) {}},
		{name: "postgres needs url", mutate: func(c *Config) { c.Store = StorePostgres }, wantErr: true},
		{name: "postgres with url", mutate: func(c *Config) { c.Store = StorePostgres; c.DatabaseURL = "postgres://x" }},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "sqlite" }, wantErr: true},
		{name: "production needs secret", mutate: func(c *Config) { c.Environment = "production" }, wantErr: true},
		{name: "small body limit", mutate: func(c *Config) { c.MaxBodyBytes = 10 }, wantErr: true},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimitPerMinute = 0 }, wantErr: true},
		{name: "negative totals", mutate: func(c *Config) { c.DefaultWFH = -1 }, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
