package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Addr               string
	Environment        string
	Store              string
	DatabaseURL        string
	MigrationsDir      string
	RunMigrations      bool
	RunSeed            bool
	SeedAdminEmail     string
	SeedAdminPassword  string
	JWTSecret          string
	TokenTTL           time.Duration
	MaxBodyBytes       int64
	RateLimitPerMinute int
	MetricsEnabled     bool
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	IdempotencyTTL     time.Duration
	CatalogTTL         time.Duration
	DefaultVacation    int
	DefaultWFH         int
	DefaultLateEarly   float64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		Environment:        getEnv("APP_ENV", "development"),
		Store:              strings.ToLower(getEnv("STORE", StorePostgres)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:            getEnvBool("RUN_SEED", true),
		SeedAdminEmail:     getEnv("SEED_ADMIN_EMAIL", "hr@example.com"),
		SeedAdminPassword:  getEnv("SEED_ADMIN_PASSWORD", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 12*time.Hour),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		CatalogTTL:         getEnvDuration("CATALOG_TTL", 5*time.Minute),
		DefaultVacation:    getEnvInt("DEFAULT_VACATION_DAYS", 21),
		DefaultWFH:         getEnvInt("DEFAULT_WFH_DAYS", 24),
		DefaultLateEarly:   getEnvFloat("DEFAULT_LATE_EARLY_HOURS", 40),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q", StorePostgres, StoreMemory)
	}
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if c.Environment == "production" && c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.DefaultVacation < 0 || c.DefaultWFH < 0 || c.DefaultLateEarly < 0 {
		return fmt.Errorf("default balance totals must not be negative")
	}
	return nil
}
