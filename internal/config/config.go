package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBSource string
	Port     string
	Env      string

	// Bank feed provider.
	FeedBaseURL    string
	FeedLinkID     string
	FeedSecretKey  string
	FeedAccountRef string
	FeedTimeout    time.Duration

	// Background jobs.
	CollectInterval time.Duration
	LookbackDays    int
	SweepHour       int // local hour for the daily unmatched sweep

	// Notification sink.
	KafkaBrokers []string
	KafkaTopic   string

	// Single-flight lock for collection cycles. Empty addr disables the lock.
	RedisAddr string
	RedisPass string

	// Static bearer token accepted on admin endpoints, and the actor ids
	// the Authorizer allowlists for admin actions.
	AdminToken string
	AdminIDs   []string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env vars")
	}

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	interval, err := time.ParseDuration(getEnv("COLLECT_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid COLLECT_INTERVAL: %w", err)
	}
	feedTimeout, err := time.ParseDuration(getEnv("FEED_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_TIMEOUT: %w", err)
	}
	lookback, err := strconv.Atoi(getEnv("LOOKBACK_DAYS", "7"))
	if err != nil || lookback < 1 {
		return nil, fmt.Errorf("invalid LOOKBACK_DAYS")
	}
	sweepHour, err := strconv.Atoi(getEnv("SWEEP_HOUR", "19"))
	if err != nil || sweepHour < 0 || sweepHour > 23 {
		return nil, fmt.Errorf("invalid SWEEP_HOUR")
	}

	return &Config{
		DBSource:        dbSource,
		Port:            getEnv("SERVER_PORT", "8080"),
		Env:             getEnv("ENVIRONMENT", "development"),
		FeedBaseURL:     getEnv("FEED_BASE_URL", ""),
		FeedLinkID:      getEnv("FEED_LINK_ID", ""),
		FeedSecretKey:   getEnv("FEED_SECRET_KEY", ""),
		FeedAccountRef:  getEnv("FEED_ACCOUNT_REF", ""),
		FeedTimeout:     feedTimeout,
		CollectInterval: interval,
		LookbackDays:    lookback,
		SweepHour:       sweepHour,
		KafkaBrokers:    splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "ledger.events"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPass:       getEnv("REDIS_PASS", ""),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		AdminIDs:        splitNonEmpty(getEnv("ADMIN_IDS", "")),
	}, nil
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
