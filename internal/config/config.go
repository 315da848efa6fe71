package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"spirit-market/utils"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings, loaded from the environment with
// sensible defaults for local development.
type Config struct {
	ServerPort int

	StorageDriver string // "memory" or "postgres"
	PostgresDSN   string
	MigrationsDir string

	AuctionDuration    time.Duration // how long a new auction accepts bids
	ConflictRetryLimit int           // bounded retries on optimistic-write conflicts
	NotifyQueueSize    int
}

const (
	DefaultAuctionDuration = 7 * 24 * time.Hour
	defaultRetryLimit      = 3
	defaultQueueSize       = 256
)

// LoadConfig reads configuration from the environment, loading .env first
// if one is present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.Warn("no .env file loaded, using environment and defaults", nil)
	}

	cfg := &Config{
		ServerPort:         8080,
		StorageDriver:      getEnvOrDefault("STORAGE_DRIVER", "memory"),
		MigrationsDir:      getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		AuctionDuration:    DefaultAuctionDuration,
		ConflictRetryLimit: defaultRetryLimit,
		NotifyQueueSize:    defaultQueueSize,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("config: invalid PORT %q: %w", port, err)
		}
		cfg.ServerPort = p
	}

	if d := os.Getenv("AUCTION_DURATION"); d != "" {
		dur, err := time.ParseDuration(d)
		if err != nil || dur <= 0 {
			return nil, fmt.Errorf("config: invalid AUCTION_DURATION %q", d)
		}
		cfg.AuctionDuration = dur
	}

	if r := os.Getenv("CONFLICT_RETRY_LIMIT"); r != "" {
		n, err := strconv.Atoi(r)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("config: invalid CONFLICT_RETRY_LIMIT %q", r)
		}
		cfg.ConflictRetryLimit = n
	}

	if s := os.Getenv("NOTIFY_QUEUE_SIZE"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("config: invalid NOTIFY_QUEUE_SIZE %q", s)
		}
		cfg.NotifyQueueSize = n
	}

	dbHost := getEnvOrDefault("MARKET_DB_HOST", "localhost")
	dbPort := getEnvOrDefault("MARKET_DB_PORT", "5432")
	dbName := getEnvOrDefault("MARKET_DB_DATABASE", "spiritmarket")
	dbUser := getEnvOrDefault("MARKET_DB_USERNAME", "postgres")
	dbPassword := getEnvOrDefault("MARKET_DB_PASSWORD", "postgres")
	cfg.PostgresDSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPassword, dbHost, dbPort, dbName)

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
