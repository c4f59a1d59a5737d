// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret       string `mapstructure:"JWT_SECRET"`
	TokenTTLMinutes int    `mapstructure:"TOKEN_TTL_MINUTES"`

	BootstrapAdminUsername string `mapstructure:"BOOTSTRAP_ADMIN_USERNAME"`
	BootstrapAdminPassword string `mapstructure:"BOOTSTRAP_ADMIN_PASSWORD"`
	SeedDemoAccounts       int    `mapstructure:"SEED_DEMO_ACCOUNTS"`
	RoomsFile              string `mapstructure:"ROOMS_FILE"`
	DefaultRoom            string `mapstructure:"DEFAULT_ROOM"`

	HistoryCapacity    int `mapstructure:"HISTORY_CAPACITY"`
	HistoryPageSize    int `mapstructure:"HISTORY_PAGE_SIZE"`
	MuteDefaultSeconds int `mapstructure:"MUTE_DEFAULT_SECONDS"`
	BanKickDelayMS     int `mapstructure:"BAN_KICK_DELAY_MS"`

	AdmissionLimit         int `mapstructure:"ADMISSION_LIMIT"`
	AdmissionWindowSeconds int `mapstructure:"ADMISSION_WINDOW_SECONDS"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A local .env is optional; real environment variables win.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "lobby")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "lobby.db")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("TOKEN_TTL_MINUTES", 24*60)
	viper.SetDefault("BOOTSTRAP_ADMIN_USERNAME", "admin")
	viper.SetDefault("BOOTSTRAP_ADMIN_PASSWORD", "")
	viper.SetDefault("SEED_DEMO_ACCOUNTS", 0)
	viper.SetDefault("ROOMS_FILE", "")
	viper.SetDefault("DEFAULT_ROOM", "general")
	viper.SetDefault("HISTORY_CAPACITY", 500)
	viper.SetDefault("HISTORY_PAGE_SIZE", 50)
	viper.SetDefault("MUTE_DEFAULT_SECONDS", 300)
	viper.SetDefault("BAN_KICK_DELAY_MS", 1000)
	viper.SetDefault("ADMISSION_LIMIT", 0)
	viper.SetDefault("ADMISSION_WINDOW_SECONDS", 10)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// TokenTTL returns the lifetime of issued API tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// MuteDefault returns the mute length used when an admin gives none.
func (c *Config) MuteDefault() time.Duration {
	return time.Duration(c.MuteDefaultSeconds) * time.Second
}

// BanKickDelay returns how long a banned connection stays open after notification.
func (c *Config) BanKickDelay() time.Duration {
	return time.Duration(c.BanKickDelayMS) * time.Millisecond
}

// AdmissionWindow returns the admission limiter window.
func (c *Config) AdmissionWindow() time.Duration {
	return time.Duration(c.AdmissionWindowSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.DefaultRoom == "" {
		return errors.New("DEFAULT_ROOM is required")
	}
	if c.HistoryCapacity <= 0 {
		return errors.New("HISTORY_CAPACITY must be positive")
	}
	if c.HistoryPageSize <= 0 || c.HistoryPageSize > c.HistoryCapacity {
		return errors.New("HISTORY_PAGE_SIZE must be between 1 and HISTORY_CAPACITY")
	}
	if c.MuteDefaultSeconds <= 0 {
		return errors.New("MUTE_DEFAULT_SECONDS must be positive")
	}
	if c.AdmissionLimit < 0 {
		return errors.New("ADMISSION_LIMIT cannot be negative")
	}
	if c.AdmissionLimit > 0 && c.AdmissionWindowSeconds <= 0 {
		return errors.New("ADMISSION_WINDOW_SECONDS must be positive when ADMISSION_LIMIT is set")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must not be disabled in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
