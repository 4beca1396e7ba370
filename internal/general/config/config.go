package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	WebSocket struct {
		Port int
	}
	JWT struct {
		SecretKey string
	}
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string // YAML key: "database"
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Redis struct {
		Host string
		Port int
	}
	Provider struct {
		BaseURL        string
		APIKey         string
		TimeoutSeconds int
	}
	History struct {
		Enabled bool
	}
}

// LoadFromFile loads config from a YAML file into a Config struct, applies
// defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ProviderEnabled reports whether an external directions provider is
// configured. Without one, every directions request takes the local
// straight-line estimate.
func (c *Config) ProviderEnabled() bool {
	return strings.TrimSpace(c.Provider.APIKey) != ""
}

// RedisEnabled reports whether a Redis cache is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Host) != ""
}

// ProviderTimeout returns the bounded timeout for provider calls.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	if cfg.WebSocket.Port == 0 {
		cfg.WebSocket.Port = 8080
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 5
	}

	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}

	// env overrides for secrets that should not live in the file
	if v := os.Getenv("RIDELINK_JWT_SECRET"); v != "" {
		cfg.JWT.SecretKey = v
	}
	if v := os.Getenv("RIDELINK_PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	if c.WebSocket.Port <= 0 || c.WebSocket.Port > 65535 {
		problems = append(problems, "websocket.port must be in 1..65535")
	}

	// RabbitMQ backs the server-initiated notification bridge and is required
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}

	// the database is only dialed when the history archive is on
	if c.History.Enabled {
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			problems = append(problems, "database.port must be in 1..65535")
		}
		if c.Database.User == "" {
			problems = append(problems, "database.user is required when history.enabled")
		}
		if c.Database.Password == "" {
			problems = append(problems, "database.password is required when history.enabled")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.name is required when history.enabled")
		}
	}

	if c.RedisEnabled() && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		problems = append(problems, "redis.port must be in 1..65535")
	}

	if c.Provider.TimeoutSeconds < 0 {
		problems = append(problems, "provider.timeout_seconds cannot be negative")
	}
	if c.ProviderEnabled() && strings.TrimSpace(c.Provider.BaseURL) == "" {
		problems = append(problems, "provider.base_url is required when an api_key is set")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
