// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Session store backends.
const (
	SessionStoreFirebase = "firebase"
	SessionStoreMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode       string        `mapstructure:"GIN_MODE"`
	ServerHost    string        `mapstructure:"SERVER_HOST"`
	ServerPort    string        `mapstructure:"SERVER_PORT"`
	ServerTimeout time.Duration `mapstructure:"SERVER_TIMEOUT_SECONDS"`
	PublicBaseURL string        `mapstructure:"PUBLIC_BASE_URL"`

	// Profile Database Configuration
	DBDriver          string        `mapstructure:"DB_DRIVER"` // "postgres" or "sqlite"
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSQLitePath      string        `mapstructure:"DB_SQLITE_PATH"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Session Store Configuration
	SessionStore             string        `mapstructure:"SESSION_STORE"`
	SessionDBPath            string        `mapstructure:"SESSION_DB_PATH"`
	RequireEmailConfirmation bool          `mapstructure:"REQUIRE_EMAIL_CONFIRMATION"`
	AuthInitTimeout          time.Duration `mapstructure:"AUTH_INIT_TIMEOUT_SECONDS"`
	SessionRefreshSchedule   string        `mapstructure:"SESSION_REFRESH_SCHEDULE"`
	SessionRefreshMargin     time.Duration `mapstructure:"SESSION_REFRESH_MARGIN_SECONDS"`

	// Route Guard destinations
	SignInPath    string `mapstructure:"SIGN_IN_PATH"`
	FallbackPath  string `mapstructure:"FALLBACK_PATH"`
	AuthErrorPath string `mapstructure:"AUTH_ERROR_PATH"`

	// Invitations
	InviteOnly              bool   `mapstructure:"INVITE_ONLY"`
	InvitationExpiryDays    int    `mapstructure:"INVITATION_EXPIRY_DAYS"`
	InvitationPurgeSchedule string `mapstructure:"INVITATION_PURGE_SCHEDULE"`

	// Uploaded avatars
	MediaPath      string `mapstructure:"MEDIA_PATH"`
	MaxAvatarBytes int64  `mapstructure:"MAX_AVATAR_BYTES"`

	// Firebase Configuration
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseAPIKey                string `mapstructure:"FIREBASE_API_KEY"`
	FirebaseAuthBaseURL           string `mapstructure:"FIREBASE_AUTH_BASE_URL"`
	FirebaseTokenBaseURL          string `mapstructure:"FIREBASE_TOKEN_BASE_URL"`
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.AuthInitTimeout = time.Duration(v.GetInt("AUTH_INIT_TIMEOUT_SECONDS")) * time.Second
	cfg.SessionRefreshMargin = time.Duration(v.GetInt("SESSION_REFRESH_MARGIN_SECONDS")) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "127.0.0.1")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "artify")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("DB_SQLITE_PATH", "artify.db")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("SESSION_STORE", SessionStoreFirebase)
	v.SetDefault("SESSION_DB_PATH", "artify-session.db")
	v.SetDefault("REQUIRE_EMAIL_CONFIRMATION", false)
	v.SetDefault("AUTH_INIT_TIMEOUT_SECONDS", 10)
	v.SetDefault("SESSION_REFRESH_SCHEDULE", "@every 1m")
	v.SetDefault("SESSION_REFRESH_MARGIN_SECONDS", 300)

	v.SetDefault("SIGN_IN_PATH", "/login")
	v.SetDefault("FALLBACK_PATH", "/")
	v.SetDefault("AUTH_ERROR_PATH", "/auth/error")

	v.SetDefault("INVITE_ONLY", false)
	v.SetDefault("INVITATION_EXPIRY_DAYS", 7)
	v.SetDefault("INVITATION_PURGE_SCHEDULE", "@daily")

	v.SetDefault("MEDIA_PATH", "./media")
	v.SetDefault("MAX_AVATAR_BYTES", 5<<20)

	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")
	v.SetDefault("FIREBASE_API_KEY", "")
	v.SetDefault("FIREBASE_AUTH_BASE_URL", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("FIREBASE_TOKEN_BASE_URL", "https://securetoken.googleapis.com/v1")
}

// Validate checks the settings the application cannot start without.
func (c *Config) Validate() error {
	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreFirebase:
		if strings.TrimSpace(c.FirebaseServiceAccountKeyPath) == "" {
			return fmt.Errorf("FATAL: FIREBASE_SERVICE_ACCOUNT_KEY_PATH is not set. This is required for Firebase Admin SDK initialization")
		}
		if _, err := os.Stat(c.FirebaseServiceAccountKeyPath); os.IsNotExist(err) {
			return fmt.Errorf("FATAL: Firebase service account key file specified in FIREBASE_SERVICE_ACCOUNT_KEY_PATH (%s) not found", c.FirebaseServiceAccountKeyPath)
		}
		if strings.TrimSpace(c.FirebaseAPIKey) == "" {
			return fmt.Errorf("FATAL: FIREBASE_API_KEY is not set. It is required for password sign-in")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q (want %q or %q)", c.SessionStore, SessionStoreFirebase, SessionStoreMemory)
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	if c.AuthInitTimeout <= 0 {
		return fmt.Errorf("AUTH_INIT_TIMEOUT_SECONDS must be positive")
	}
	if !strings.HasPrefix(c.SignInPath, "/") || !strings.HasPrefix(c.FallbackPath, "/") {
		return fmt.Errorf("SIGN_IN_PATH and FALLBACK_PATH must be absolute paths")
	}
	if c.SignInPath == c.FallbackPath {
		return fmt.Errorf("SIGN_IN_PATH and FALLBACK_PATH must differ")
	}
	return nil
}

// PostgresDSN builds the GORM DSN from the individual DB_* settings.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode, c.DBTimezone)
}
