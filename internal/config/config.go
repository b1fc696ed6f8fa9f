package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverAPI      = "api"
)

type Config struct {
	Port               string
	Environment        string
	StoreDriver        string
	DatabaseURL        string
	RedisAddr          string
	RedisKeyPrefix     string
	APIBaseURL         string
	StoreTimeout       time.Duration
	SeedSectors        []string
	SeedSlotsPerSector int
	OTelEnabled        bool
	OTelServiceName    string
	OTelEndpoint       string
}

func Load() *Config {
	return &Config{
		Port:               envOr("APP_PORT", "8080"),
		Environment:        envOr("APP_ENV", "development"),
		StoreDriver:        strings.ToLower(envOr("STORE_DRIVER", DriverMemory)),
		DatabaseURL:        envOr("DATABASE_URL", "file:moto-yard.db?cache=shared"),
		RedisAddr:          envOr("REDIS_ADDR", "localhost:6379"),
		RedisKeyPrefix:     envOr("REDIS_KEY_PREFIX", "moto-yard"),
		APIBaseURL:         envOr("MOTIX_API_URL", "http://localhost:5167/api"),
		StoreTimeout:       envOrDuration("STORE_TIMEOUT", 15*time.Second),
		SeedSectors:        envOrList("SEED_SECTORS", []string{"A", "B", "C", "D"}),
		SeedSlotsPerSector: envOrInt("SEED_SLOTS_PER_SECTOR", 10),
		OTelEnabled:        envOrBool("OTEL_ENABLED", true),
		OTelServiceName:    envOr("OTEL_SERVICE_NAME", "moto-yard"),
		OTelEndpoint:       envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envOrList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
