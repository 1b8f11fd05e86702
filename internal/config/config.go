package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Server     ServerConfig
	App        AppConfig
	Settlement SettlementConfig
	Wave       WaveConfig
	Outcome    OutcomeConfig
	Identity   IdentityConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// RedisConfig holds the pool snapshot cache settings
type RedisConfig struct {
	URL     string
	Enabled bool
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret  string
	PoolDomain string
	Timezone   string
}

// SettlementConfig holds settlement engine tunables
type SettlementConfig struct {
	HybridBlendFactor   float64
	ConsolationFraction float64
	CloserInterval      time.Duration
	MaxApplyRetries     int
}

// WaveConfig holds money-wave pipeline tunables
type WaveConfig struct {
	AllocationRate    float64
	MaxSourceFraction float64
	VentureBudgetRate float64
	Interval          time.Duration
}

// OutcomeConfig holds the results collaborator settings
type OutcomeConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// IdentityConfig holds the identity collaborator settings
type IdentityConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "prediction_settlement"),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", "redis://localhost:6379"),
			Enabled: getEnvBool("REDIS_ENABLED", true),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			PoolDomain: getEnv("POOL_DOMAIN", "PLATFORM"),
			Timezone:   getEnv("TIMEZONE", "UTC"),
		},
		Settlement: SettlementConfig{
			HybridBlendFactor:   getEnvFloat("HYBRID_BLEND_FACTOR", 0.5),
			ConsolationFraction: getEnvFloat("CONSOLATION_FRACTION", 0.05),
			CloserInterval:      getEnvDuration("GAME_CLOSER_INTERVAL", 30*time.Second),
			MaxApplyRetries:     getEnvInt("LEDGER_APPLY_RETRIES", 3),
		},
		Wave: WaveConfig{
			AllocationRate:    getEnvFloat("WAVE_ALLOCATION_RATE", 0.10),
			MaxSourceFraction: getEnvFloat("WAVE_MAX_SOURCE_FRACTION", 0.10),
			VentureBudgetRate: getEnvFloat("WAVE_VENTURE_BUDGET_RATE", 0.20),
			Interval:          getEnvDuration("WAVE_INTERVAL", time.Hour),
		},
		Outcome: OutcomeConfig{
			BaseURL: getEnv("OUTCOME_BASE_URL", "http://localhost:9001"),
			APIKey:  getEnv("OUTCOME_API_KEY", ""),
			Timeout: getEnvDuration("OUTCOME_TIMEOUT", 10*time.Second),
		},
		Identity: IdentityConfig{
			BaseURL: getEnv("IDENTITY_BASE_URL", "http://localhost:9002"),
			Timeout: getEnvDuration("IDENTITY_TIMEOUT", 5*time.Second),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.Settlement.HybridBlendFactor < 0 || config.Settlement.HybridBlendFactor > 1 {
		return nil, fmt.Errorf("HYBRID_BLEND_FACTOR must be within [0,1]")
	}

	if config.Wave.MaxSourceFraction <= 0 || config.Wave.MaxSourceFraction > 1 {
		return nil, fmt.Errorf("WAVE_MAX_SOURCE_FRACTION must be within (0,1]")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
