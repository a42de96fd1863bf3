package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/nconklindev/harmony/internal/types"
)

// Config represents the application configuration
type Config struct {
	// Standard fields the registry starts with
	Fields []string
	// Optional YAML keyword table replacing the built-in suggestion rules
	RulesFile string

	ExportFile  string
	ExportSheet string

	// HTTP API
	Addr        string
	CORSOrigins []string

	// Local operator identity used by the terminal UI
	ActorID  string
	Elevated bool

	// Nil when persistence is not configured
	Postgres *PostgresConfig

	// Logging
	LogLevel  string
	LogFormat string
	// The terminal UI logs here since it owns stdout
	LogFile string
}

// PostgresConfig holds PostgreSQL connection parameters
type PostgresConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Fields:      getEnvAsStringSlice("HARMONY_FIELDS", types.DefaultFields),
		RulesFile:   getEnv("HARMONY_RULES_FILE", ""),
		ExportFile:  getEnv("HARMONY_EXPORT_FILE", "unified_candidate_data.xlsx"),
		ExportSheet: getEnv("HARMONY_EXPORT_SHEET", "Unified Candidate Data"),
		Addr:        getEnv("HARMONY_ADDR", ":8001"),
		CORSOrigins: getEnvAsStringSlice("HARMONY_CORS_ORIGINS", []string{"http://localhost:3000"}),
		ActorID:     getEnv("HARMONY_ACTOR_ID", ""),
		Elevated:    getEnvAsBool("HARMONY_ELEVATED", false),
		Postgres:    LoadPostgresConfig(),
		LogLevel:    getEnv("HARMONY_LOG_LEVEL", "info"),
		LogFormat:   getEnv("HARMONY_LOG_FORMAT", "console"),
		LogFile:     getEnv("HARMONY_LOG_FILE", "harmony.log"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPostgresConfig returns nil unless DATABASE_URL or POSTGRES_DB is set.
func LoadPostgresConfig() *PostgresConfig {
	url := os.Getenv("DATABASE_URL")
	database := os.Getenv("POSTGRES_DB")
	if url == "" && database == "" {
		return nil
	}

	return &PostgresConfig{
		URL:      url,
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnvAsInt("POSTGRES_PORT", 5432),
		User:     getEnv("POSTGRES_USER", "postgres"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: database,
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxOpenConns:    getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(getEnvAsInt("POSTGRES_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
	}
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if len(c.Fields) == 0 {
		return errors.New("at least one standard field is required")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}

	if c.ActorID != "" {
		if _, err := uuid.Parse(c.ActorID); err != nil {
			return fmt.Errorf("HARMONY_ACTOR_ID must be a UUID: %w", err)
		}
	}

	if c.Postgres != nil && c.Postgres.URL == "" {
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			return fmt.Errorf("invalid postgres port %d", c.Postgres.Port)
		}
	}

	return nil
}

// ConnectionString returns a formatted PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// Comma separated, blanks dropped
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}
