package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Run modes. The mode selects the persistence backend: PROD and DEV use
// Postgres and Redis, TEST uses the in-memory stores and queue.
const (
	ModeProd = "PROD"
	ModeTest = "TEST"
	ModeDev  = "DEV"
)

// Config holds all service configuration
type Config struct {
	Service    ServiceConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Versioning VersioningConfig
	Ingest     IngestConfig
	Platforms  PlatformKeys
	LLM        LLMConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name      string
	Port      int
	Mode      string
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds Postgres connection settings
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

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// VersioningConfig tunes the dedup/versioning engine
type VersioningConfig struct {
	// Minimum interval between metric-only versions of one dataset.
	// Zero disables the cooldown. Structural changes always bypass it.
	CooldownHours int

	// Commit batch size of the bulk replayer.
	ReplayBatchSize int
}

// IngestConfig tunes the ingest worker pool
type IngestConfig struct {
	Workers      int
	FetchTimeout time.Duration
}

// PlatformKeys holds per-platform API keys
type PlatformKeys struct {
	Opendatasoft string
	DataGouvFr   string
}

// LLMConfig points at the metadata evaluation endpoint. An empty endpoint
// disables evaluation.
type LLMConfig struct {
	Endpoint string
	APIKey   string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:      serviceName,
			Port:      getEnvInt("API_PORT", 8080),
			Mode:      getEnv("RUN_MODE", ModeDev),
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			Database:    getEnv("DB_NAME", "catalog"),
			User:        getEnv("DB_USER", "catalog"),
			Password:    getEnv("DB_PASSWORD", "catalog"),
			MaxConns:    getEnvInt("DB_MAX_CONNS", 50),
			MinConns:    getEnvInt("DB_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("DB_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("DB_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Versioning: VersioningConfig{
			CooldownHours:   getEnvInt("VERSIONING_COOLDOWN_HOURS", 15),
			ReplayBatchSize: getEnvInt("REPLAY_BATCH_SIZE", 1000),
		},
		Ingest: IngestConfig{
			Workers:      getEnvInt("INGEST_WORKERS", 8),
			FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		},
		Platforms: PlatformKeys{
			Opendatasoft: getEnv("OPENDATASOFT_API_KEY", ""),
			DataGouvFr:   getEnv("DATAGOUVFR_API_KEY", ""),
		},
		LLM: LLMConfig{
			Endpoint: getEnv("LLM_ENDPOINT", ""),
			APIKey:   getEnv("LLM_API_KEY", ""),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Service.Mode {
	case ModeProd, ModeTest, ModeDev:
	default:
		return fmt.Errorf("invalid run mode: %s", c.Service.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Versioning.CooldownHours < 0 {
		return fmt.Errorf("cooldown hours must be >= 0")
	}

	if c.Versioning.ReplayBatchSize < 1 {
		return fmt.Errorf("replay batch size must be >= 1")
	}

	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest workers must be >= 1")
	}

	return nil
}

// Cooldown returns the metric-only versioning cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Versioning.CooldownHours) * time.Hour
}

// DatabaseURL returns the PostgreSQL connection string
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

// Helper functions

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
