package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// loaded from environment variables, no magic defaults for required fields.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Scoring  ScoringConfig
}

// ServerConfig contains http server parameters.
type ServerConfig struct {
	Port     string
	LogLevel string

	// BodyLimit caps request bodies, e.g. "1M".
	BodyLimit    string
	AllowOrigins []string

	// Enabled toggles the connections module; when false only health endpoints answer.
	Enabled bool
}

// DatabaseConfig contains database connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Schema   string
}

// AuthConfig contains admin authentication configuration.
type AuthConfig struct {
	// JWTSecret signs and validates admin tokens
	JWTSecret string

	AdminUsername string

	// exactly one of AdminPassword and AdminPasswordHash is needed;
	// the hash (bcrypt) wins when both are set
	AdminPassword     string
	AdminPasswordHash string

	TokenTTL time.Duration
}

// RedisConfig contains the leaderboard cache address, empty disables it.
type RedisConfig struct {
	URL string
}

// NATSConfig contains the breakout event bus address, empty disables it.
type NATSConfig struct {
	URL   string
	Token string
}

// ScoringConfig contains rescoring parameters.
type ScoringConfig struct {
	// Schedule is a six-field cron spec (with seconds), empty disables the job.
	Schedule     string
	Concurrency  int
	Window       time.Duration
	DefaultsFile string
}

// ConnectionString returns the postgres connection string.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&search_path=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
		c.Schema,
	)
}

// Load reads configuration from environment variables.
// loads .env file if present, but doesn't fail if it's missing.
func Load() (*Config, error) {
	// try to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}

	authConfig, err := loadAuthConfig()
	if err != nil {
		return nil, fmt.Errorf("auth config: %w", err)
	}

	scoringConfig, err := loadScoringConfig()
	if err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}

	enabled, err := getEnvBool("CONNECTIONS_ENABLED", true)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
			BodyLimit:    getEnvOrDefault("HTTP_BODY_LIMIT", "1M"),
			AllowOrigins: getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),
			Enabled:      enabled,
		},
		Database: dbConfig,
		Auth:     authConfig,
		Redis:    RedisConfig{URL: os.Getenv("REDIS_URL")},
		NATS: NATSConfig{
			URL:   os.Getenv("NATS_URL"),
			Token: os.Getenv("NATS_TOKEN"),
		},
		Scoring: scoringConfig,
	}, nil
}

func loadAuthConfig() (AuthConfig, error) {
	config := AuthConfig{
		JWTSecret:         os.Getenv("AUTH_JWT_SECRET"),
		AdminUsername:     getEnvOrDefault("ADMIN_USERNAME", "admin"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}

	if config.JWTSecret == "" {
		return config, errors.New("AUTH_JWT_SECRET is required")
	}
	if len(config.JWTSecret) < 32 {
		return config, errors.New("AUTH_JWT_SECRET must be at least 32 characters")
	}
	if config.AdminPassword == "" && config.AdminPasswordHash == "" {
		return config, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}

	ttl, err := getEnvDuration("AUTH_TOKEN_TTL", 12*time.Hour)
	if err != nil {
		return config, err
	}
	config.TokenTTL = ttl

	return config, nil
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	config := DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
		SSLMode:  getEnvOrDefault("DB_SSL_MODE", "require"),
		Schema:   getEnvOrDefault("DB_SCHEMA", "connections"),
	}

	// required fields must be set
	if config.User == "" {
		return config, errors.New("DB_USER is required")
	}
	if config.Password == "" {
		return config, errors.New("DB_PASSWORD is required")
	}
	if config.Name == "" {
		return config, errors.New("DB_NAME is required")
	}

	return config, nil
}

func loadScoringConfig() (ScoringConfig, error) {
	config := ScoringConfig{
		Schedule:     getEnvOrDefault("SCORING_SCHEDULE", "0 */15 * * * *"),
		DefaultsFile: os.Getenv("SCORING_DEFAULTS_FILE"),
	}

	concurrency, err := getEnvInt("SCORING_CONCURRENCY", 8)
	if err != nil {
		return config, err
	}
	if concurrency < 1 {
		return config, errors.New("SCORING_CONCURRENCY must be at least 1")
	}
	config.Concurrency = concurrency

	window, err := getEnvDuration("SCORING_WINDOW", 7*24*time.Hour)
	if err != nil {
		return config, err
	}
	if window <= 0 {
		return config, errors.New("SCORING_WINDOW must be positive")
	}
	config.Window = window

	if strings.EqualFold(config.Schedule, "off") {
		config.Schedule = ""
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
