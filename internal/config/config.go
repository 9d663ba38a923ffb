// Package config loads the verifier service's environment-driven settings,
// including the default bounds the core packages fall back to (§6.5).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Service    ServiceConfig
	Database   DatabaseConfig
	Queue      QueueConfig
	Validation ValidationDefaults
	Simulation SimulationDefaults
}

// ServiceConfig holds HTTP surface settings.
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings for result persistence.
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// QueueConfig holds Redis-backed job queue settings.
type QueueConfig struct {
	Addr      string
	ListKey   string
	BatchSize int
}

// ValidationDefaults mirrors spec §6.5: kBound=0 and maxTimeMs=0 both mean
// "use the default" at the call site, not "explore nothing".
type ValidationDefaults struct {
	KBound    int
	MaxTimeMs int
}

// SimulationDefaults mirrors spec §4.5.
type SimulationDefaults struct {
	Seed        uint64
	MaxSteps    int
	StepDelayMs int
}

// Load reads configuration from the environment, applying the defaults the
// core packages themselves also apply when given a zero value.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "workflowverify"),
			User:        getEnv("POSTGRES_USER", "workflowverify"),
			Password:    getEnv("POSTGRES_PASSWORD", "workflowverify"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Queue: QueueConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			ListKey:   getEnv("QUEUE_LIST_KEY", "workflowverify:jobs"),
			BatchSize: getEnvInt("QUEUE_BATCH_SIZE", 10),
		},
		Validation: ValidationDefaults{
			KBound:    getEnvInt("VALIDATOR_K_BOUND", 200),
			MaxTimeMs: getEnvInt("VALIDATOR_MAX_TIME_MS", 30000),
		},
		Simulation: SimulationDefaults{
			Seed:        uint64(getEnvInt("SIMULATOR_SEED", 42)),
			MaxSteps:    getEnvInt("SIMULATOR_MAX_STEPS", 1000),
			StepDelayMs: getEnvInt("SIMULATOR_STEP_DELAY_MS", 0),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks the loaded configuration for obvious misconfiguration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}
	if c.Validation.KBound < 0 {
		return fmt.Errorf("validator k_bound must be >= 0")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
