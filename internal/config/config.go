package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Outbox   OutboxConfig
	NATS     NATSConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Path     string // sqlite file path
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret     string
	InitialCredit int64
	ChallengeTTL  time.Duration
}

// OutboxConfig controls the notification outbox dispatcher
type OutboxConfig struct {
	Enabled       bool
	Consumer      string
	PollInterval  time.Duration
	BatchSize     int
	LeaseTTL      time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	Concurrency   int
}

// NATSConfig holds the optional notification publisher settings
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "freelance_market"),
			Path:     getEnv("DB_PATH", "data/market.db"),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		App: AppConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			InitialCredit: getEnvInt64("INITIAL_CREDIT", 50),
			ChallengeTTL:  getEnvDuration("AUTH_CHALLENGE_TTL", 5*time.Minute),
		},
		Outbox: OutboxConfig{
			Enabled:       getEnvBool("OUTBOX_ENABLED", true),
			Consumer:      getEnv("OUTBOX_CONSUMER", ""),
			PollInterval:  getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:     int(getEnvInt64("OUTBOX_BATCH_SIZE", 50)),
			LeaseTTL:      getEnvDuration("OUTBOX_LEASE_TTL", 30*time.Second),
			MaxAttempts:   int(getEnvInt64("OUTBOX_MAX_ATTEMPTS", 8)),
			RetryBackoff:  getEnvDuration("OUTBOX_RETRY_BACKOFF", time.Second),
			RetryMaxDelay: getEnvDuration("OUTBOX_RETRY_MAX_DELAY", 5*time.Minute),
			Concurrency:   int(getEnvInt64("OUTBOX_CONCURRENCY", 4)),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "marketplace.notifications"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.App.InitialCredit < 0 {
		return nil, fmt.Errorf("INITIAL_CREDIT must not be negative")
	}

	switch config.Database.Driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.Database.Driver)
	}

	return config, nil
}

// GetDSN returns the connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.Path
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
