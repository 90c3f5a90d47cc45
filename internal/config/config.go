// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Service   ServiceConfig
	Server    ServerConfig
	Database  DatabaseConfig
	NATS      NATSConfig
	Geocoding GeocodingConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	Retention RetentionConfig
	Admin     AdminConfig
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type NATSConfig struct {
	// URL of the NATS server carrying notification events. Empty means
	// notifications run in simulated mode.
	URL string
}

type GeocodingConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

type NotifyConfig struct {
	Timeout time.Duration
}

type RateLimitConfig struct {
	MaxReportsPerWindow int
	Window              time.Duration
}

type RetentionConfig struct {
	// Days a DONE report is kept before the sweep removes it.
	Days          int
	SweepInterval time.Duration
}

type AdminConfig struct {
	Token string
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "be-mm-reports"),
			Version:     getEnv("SERVICE_VERSION", "dev"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Server: ServerConfig{
			Port:            getEnvInt("HTTP_PORT", 8080),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "maengelmelder"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "maengelmelder"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns:        int32(getEnvInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Geocoding: GeocodingConfig{
			BaseURL:   getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getEnv("NOMINATIM_USER_AGENT", "Maengelmelder/1.0 (kontakt@stadt.example.de)"),
			Timeout:   getEnvDuration("GEOCODING_TIMEOUT", 5*time.Second),
		},
		Notify: NotifyConfig{
			Timeout: getEnvDuration("NOTIFY_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			MaxReportsPerWindow: getEnvInt("RATE_LIMIT_MAX_REPORTS", 5),
			Window:              getEnvDuration("RATE_LIMIT_WINDOW", time.Hour),
		},
		Retention: RetentionConfig{
			Days:          getEnvInt("RETENTION_DAYS", 365),
			SweepInterval: getEnvDuration("RETENTION_SWEEP_INTERVAL", 24*time.Hour),
		},
		Admin: AdminConfig{
			Token: getEnv("ADMIN_TOKEN", ""),
		},
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid HTTP_PORT %d", cfg.Server.Port)
	}
	if cfg.RateLimit.MaxReportsPerWindow < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX_REPORTS must be at least 1")
	}
	if cfg.Retention.Days < 1 {
		return nil, fmt.Errorf("RETENTION_DAYS must be at least 1")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
