package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Escrow     EscrowConfig     `yaml:"escrow"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Roster     RosterConfig     `yaml:"roster"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	GRPCPort        int           `yaml:"grpc_port"`
	WebSocketPort   int           `yaml:"websocket_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	StartupTimeout  time.Duration `yaml:"startup_timeout"`
}

// RedisConfig contains Redis-related configuration. An empty URL selects
// the in-memory adapters.
type RedisConfig struct {
	URL              string        `yaml:"url"`
	KeyPrefix        string        `yaml:"key_prefix"`
	PoolSize         int           `yaml:"pool_size"`
	MinIdleConns     int           `yaml:"min_idle_conns"`
	MaxRetries       int           `yaml:"max_retries"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	NotificationTTL  time.Duration `yaml:"notification_ttl"`
	NotificationKeep int64         `yaml:"notification_keep"`
}

// EscrowConfig contains the receiving address and fee policy
type EscrowConfig struct {
	LightningAddress  string `yaml:"lightning_address"`
	DefaultFeePercent int    `yaml:"default_fee_percent"`
}

// AuthConfig contains session token settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// RateLimitConfig contains per user limits for mutating calls
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

// MonitoringConfig contains monitoring-related configuration
type MonitoringConfig struct {
	PrometheusPort int           `yaml:"prometheus_port"`
	Logging        LoggingConfig `yaml:"logging"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RosterConfig lists team rosters served to the opponent selection step
type RosterConfig struct {
	Teams map[string][]domain.TeamMemberWithProfile `yaml:"teams"`
}

// Default returns a configuration usable for local development
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort:        50051,
			WebSocketPort:   8081,
			ShutdownTimeout: 15 * time.Second,
			StartupTimeout:  10 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:         10,
			MinIdleConns:     2,
			MaxRetries:       3,
			DialTimeout:      5 * time.Second,
			ReadTimeout:      3 * time.Second,
			WriteTimeout:     3 * time.Second,
			NotificationTTL:  30 * 24 * time.Hour,
			NotificationKeep: 200,
		},
		Escrow: EscrowConfig{
			DefaultFeePercent: 10,
		},
		Auth: AuthConfig{
			Issuer: "steelmount",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
			CleanupInterval:   time.Minute,
		},
		Monitoring: MonitoringConfig{
			PrometheusPort: 9090,
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
				Output: "stdout",
			},
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// Load from YAML file if it exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if v := os.Getenv("GRPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.GRPCPort = port
		}
	}
	if v := os.Getenv("WS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.WebSocketPort = port
		}
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Redis.URL = redisURL
	}

	if keyPrefix := os.Getenv("REDIS_KEY_PREFIX"); keyPrefix != "" {
		config.Redis.KeyPrefix = keyPrefix
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Monitoring.Logging.Level = logLevel
	}

	if metricsPort := os.Getenv("METRICS_PORT"); metricsPort != "" {
		if port, err := strconv.Atoi(metricsPort); err == nil {
			config.Monitoring.PrometheusPort = port
		}
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}

	if address := os.Getenv("ESCROW_LIGHTNING_ADDRESS"); address != "" {
		config.Escrow.LightningAddress = address
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.GRPCPort <= 0 || config.Server.WebSocketPort <= 0 || config.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("ports must be positive: grpc=%d, websocket=%d, metrics=%d",
			config.Server.GRPCPort, config.Server.WebSocketPort, config.Monitoring.PrometheusPort)
	}

	if config.Escrow.LightningAddress == "" {
		return fmt.Errorf("escrow lightning address is required")
	}
	if config.Escrow.DefaultFeePercent < 5 || config.Escrow.DefaultFeePercent > 20 {
		return fmt.Errorf("default fee percent must be within [5,20]: %d", config.Escrow.DefaultFeePercent)
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive: %d", config.RateLimit.RequestsPerMinute)
	}

	return nil
}
