package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the marketplace service
type Config struct {
	Server    ServerConfig
	Templates TemplatesConfig
	Feed      FeedConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// TemplatesConfig holds fixture loading configuration
type TemplatesConfig struct {
	Dir      string
	Watch    bool
	Debounce time.Duration
}

// FeedConfig holds live feed simulator configuration
type FeedConfig struct {
	Enabled  bool
	Interval time.Duration
	Seed     uint64
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level slog.Level
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Templates: TemplatesConfig{
			Dir:      getEnv("TEMPLATES_DIR", "./templates"),
			Watch:    getEnvAsBool("TEMPLATES_WATCH", false),
			Debounce: getEnvAsDuration("TEMPLATES_DEBOUNCE", 500*time.Millisecond),
		},
		Feed: FeedConfig{
			Enabled:  getEnvAsBool("FEED_ENABLED", true),
			Interval: getEnvAsDuration("FEED_INTERVAL", 3*time.Second),
			Seed:     getEnvAsUint64("FEED_SEED", uint64(time.Now().UnixNano())),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Templates.Dir == "" {
		return fmt.Errorf("templates dir is required")
	}

	if c.Feed.Enabled && c.Feed.Interval <= 0 {
		return fmt.Errorf("invalid feed interval: %s", c.Feed.Interval)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /: %q", c.Metrics.Path)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value, exists := os.LookupEnv(key); exists {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value, exists := os.LookupEnv(key); exists {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return defaultValue
}
