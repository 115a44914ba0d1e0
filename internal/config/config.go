package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	FeedBaseURL string
	FeedAPIKey  string

	// StalenessWindow is how long a device may go without syncing
	// before it is reported inactive.
	StalenessWindow time.Duration
	// PollInterval drives the notification pull/merge cycle.
	PollInterval time.Duration
	// LookbackDays bounds each notification feed pull.
	LookbackDays int
	// LiveWindow caps how many events a per-device live subscription
	// carries. The bulk load is unbounded.
	LiveWindow int

	LogLevel  string
	LogFormat string
}

func LoadConfig() (*Config, error) {
	staleness, err := time.ParseDuration(getEnv("ACTIVITY_STALENESS_WINDOW", "10m"))
	if err != nil {
		return nil, errors.New("invalid ACTIVITY_STALENESS_WINDOW format")
	}

	poll, err := time.ParseDuration(getEnv("NOTIFICATION_POLL_INTERVAL", "10m"))
	if err != nil {
		return nil, errors.New("invalid NOTIFICATION_POLL_INTERVAL format")
	}

	lookback, err := strconv.Atoi(getEnv("NOTIFICATION_LOOKBACK_DAYS", "7"))
	if err != nil || lookback <= 0 {
		return nil, errors.New("invalid NOTIFICATION_LOOKBACK_DAYS")
	}

	liveWindow, err := strconv.Atoi(getEnv("EVENT_LIVE_WINDOW", "50"))
	if err != nil || liveWindow <= 0 {
		return nil, errors.New("invalid EVENT_LIVE_WINDOW")
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		FeedBaseURL:     os.Getenv("FEED_BASE_URL"),
		FeedAPIKey:      os.Getenv("FEED_API_KEY"),
		StalenessWindow: staleness,
		PollInterval:    poll,
		LookbackDays:    lookback,
		LiveWindow:      liveWindow,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.FeedBaseURL == "" {
		return nil, errors.New("FEED_BASE_URL is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
