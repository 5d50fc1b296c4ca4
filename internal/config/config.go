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

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode            string        `mapstructure:"GIN_MODE"`
	ServerHost         string        `mapstructure:"SERVER_HOST"`
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	ServerTimeout      time.Duration `mapstructure:"SERVER_TIMEOUT_SECONDS"`
	CORSAllowedOrigins []string      `mapstructure:"-"`

	// Database Configuration
	DBDriver          string        `mapstructure:"DB_DRIVER"`
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
	DBAutoMigrate     bool          `mapstructure:"DB_AUTO_MIGRATE"`
	DBSource          string        `mapstructure:"-"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// JWT & credential Configuration
	JWTSecretKey                string        `mapstructure:"JWT_SECRET_KEY"`
	JWTIssuer                   string        `mapstructure:"JWT_ISSUER"`
	JWTAccessTokenExpiry        time.Duration `mapstructure:"JWT_ACCESS_TOKEN_EXPIRY_MINUTES"`
	JWTRefreshTokenExpiry       time.Duration `mapstructure:"JWT_REFRESH_TOKEN_EXPIRY_DAYS"`
	BcryptCost                  int           `mapstructure:"BCRYPT_COST"`
	OTPTTL                      time.Duration `mapstructure:"OTP_TTL_MINUTES"`
	OTPResendCooldown           time.Duration `mapstructure:"OTP_RESEND_COOLDOWN_SECONDS"`
	OTPMaxAttempts              int           `mapstructure:"OTP_MAX_ATTEMPTS"`
	PendingRegistrationTTL      time.Duration `mapstructure:"PENDING_REGISTRATION_TTL_HOURS"`
	AuthRateLimitPerMinute      int           `mapstructure:"AUTH_RATE_LIMIT_PER_MINUTE"`
	AuthRateLimitBurst          int           `mapstructure:"AUTH_RATE_LIMIT_BURST"`
	TokenBlocklistCleanupPeriod time.Duration `mapstructure:"-"`

	// OAuth Configuration
	GoogleClientID           string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret       string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI        string `mapstructure:"GOOGLE_REDIRECT_URI"`
	OAuthStateCookieName     string `mapstructure:"OAUTH_STATE_COOKIE_NAME"`
	OAuthCookieDomain        string `mapstructure:"OAUTH_COOKIE_DOMAIN"`
	OAuthCookieSecure        bool   `mapstructure:"OAUTH_COOKIE_SECURE"`
	OAuthCookieHTTPOnly      bool   `mapstructure:"OAUTH_COOKIE_HTTP_ONLY"`
	OAuthCookieSameSite      string `mapstructure:"OAUTH_COOKIE_SAME_SITE"`
	OAuthCookieMaxAgeMinutes int    `mapstructure:"OAUTH_COOKIE_MAX_AGE_MINUTES"`
	OAuthFrontendRedirectURL string `mapstructure:"OAUTH_FRONTEND_REDIRECT_URL"`

	// Firebase Configuration (optional)
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`

	// Redis Configuration (optional)
	RedisURL           string `mapstructure:"REDIS_URL"`
	RedisChannelPrefix string `mapstructure:"REDIS_CHANNEL_PREFIX"`

	// Elasticsearch Configuration (optional)
	ElasticsearchURL string `mapstructure:"ELASTICSEARCH_URL"`

	// Storage Configuration
	StorageDriver        string `mapstructure:"STORAGE_DRIVER"`
	StorageLocalPath     string `mapstructure:"STORAGE_LOCAL_PATH"`
	StoragePublicBaseURL string `mapstructure:"STORAGE_PUBLIC_BASE_URL"`
	S3Bucket             string `mapstructure:"S3_BUCKET"`
	S3Region             string `mapstructure:"S3_REGION"`
	S3Endpoint           string `mapstructure:"S3_ENDPOINT"`

	// Report rules
	ReportMaxImages     int   `mapstructure:"REPORT_MAX_IMAGES"`
	ReportMaxImageBytes int64 `mapstructure:"REPORT_MAX_IMAGE_BYTES"`

	// Cron Jobs
	ReminderJobSchedule              string         `mapstructure:"REMINDER_JOB_SCHEDULE"`
	ReminderLookahead                time.Duration  `mapstructure:"REMINDER_LOOKAHEAD_HOURS"`
	RegistrationReconcileJobSchedule string         `mapstructure:"REGISTRATION_RECONCILE_JOB_SCHEDULE"`
	AppTimezone                      string         `mapstructure:"APP_TIMEZONE"`
	Location                         *time.Location `mapstructure:"-"`

	// Web
	WebRoot        string `mapstructure:"WEB_ROOT"`
	MetricsEnabled bool   `mapstructure:"METRICS_ENABLED"`
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
	// PORT is the conventional single listen-port variable; it wins over SERVER_PORT.
	if err := v.BindEnv("SERVER_PORT", "PORT", "SERVER_PORT"); err != nil {
		return nil, fmt.Errorf("error binding SERVER_PORT: %w", err)
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "waste_portal_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("DB_SQLITE_PATH", "waste_portal.db")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_ISSUER", "waste-portal")
	v.SetDefault("JWT_ACCESS_TOKEN_EXPIRY_MINUTES", 15)
	v.SetDefault("JWT_REFRESH_TOKEN_EXPIRY_DAYS", 7)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("OTP_TTL_MINUTES", 10)
	v.SetDefault("OTP_RESEND_COOLDOWN_SECONDS", 60)
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("PENDING_REGISTRATION_TTL_HOURS", 24)
	v.SetDefault("AUTH_RATE_LIMIT_PER_MINUTE", 10)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 5)

	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/v1/auth/oauth/google/callback")
	v.SetDefault("OAUTH_STATE_COOKIE_NAME", "waste_oauth_state")
	v.SetDefault("OAUTH_COOKIE_DOMAIN", "")
	v.SetDefault("OAUTH_COOKIE_SECURE", false)
	v.SetDefault("OAUTH_COOKIE_HTTP_ONLY", true)
	v.SetDefault("OAUTH_COOKIE_SAME_SITE", "Lax")
	v.SetDefault("OAUTH_COOKIE_MAX_AGE_MINUTES", 10)
	v.SetDefault("OAUTH_FRONTEND_REDIRECT_URL", "")

	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")
	v.SetDefault("FIREBASE_PROJECT_ID", "")

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_CHANNEL_PREFIX", "waste")

	v.SetDefault("ELASTICSEARCH_URL", "")

	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_LOCAL_PATH", "./uploads")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "/uploads")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")

	v.SetDefault("REPORT_MAX_IMAGES", 4)
	v.SetDefault("REPORT_MAX_IMAGE_BYTES", 5*1024*1024)

	v.SetDefault("REMINDER_JOB_SCHEDULE", "@every 5m")
	v.SetDefault("REMINDER_LOOKAHEAD_HOURS", 24)
	v.SetDefault("REGISTRATION_RECONCILE_JOB_SCHEDULE", "@every 10m")
	v.SetDefault("APP_TIMEZONE", "UTC")

	v.SetDefault("WEB_ROOT", "./web/dist")
	v.SetDefault("METRICS_ENABLED", true)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.JWTAccessTokenExpiry = time.Duration(v.GetInt("JWT_ACCESS_TOKEN_EXPIRY_MINUTES")) * time.Minute
	cfg.JWTRefreshTokenExpiry = time.Duration(v.GetInt("JWT_REFRESH_TOKEN_EXPIRY_DAYS")) * 24 * time.Hour
	cfg.OTPTTL = time.Duration(v.GetInt("OTP_TTL_MINUTES")) * time.Minute
	cfg.OTPResendCooldown = time.Duration(v.GetInt("OTP_RESEND_COOLDOWN_SECONDS")) * time.Second
	cfg.PendingRegistrationTTL = time.Duration(v.GetInt("PENDING_REGISTRATION_TTL_HOURS")) * time.Hour
	cfg.ReminderLookahead = time.Duration(v.GetInt("REMINDER_LOOKAHEAD_HOURS")) * time.Hour
	cfg.TokenBlocklistCleanupPeriod = 10 * time.Minute

	for _, origin := range strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if o := strings.TrimSpace(origin); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	cfg.DBSource = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode, cfg.DBTimezone)

	loc, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.AppTimezone, err)
	}
	cfg.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the server cannot run with.
func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("FATAL: JWT_SECRET_KEY is not set")
	}
	if c.GinMode == "release" && len(c.JWTSecretKey) < 32 {
		return fmt.Errorf("FATAL: JWT_SECRET_KEY must be at least 32 characters in release mode")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("FATAL: unsupported DB_DRIVER %q (expected postgres or sqlite)", c.DBDriver)
	}
	switch c.StorageDriver {
	case "local":
	case "s3":
		if strings.TrimSpace(c.S3Bucket) == "" {
			return fmt.Errorf("FATAL: S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("FATAL: unsupported STORAGE_DRIVER %q (expected local or s3)", c.StorageDriver)
	}
	if c.ReportMaxImages <= 0 || c.ReportMaxImageBytes <= 0 {
		return fmt.Errorf("FATAL: REPORT_MAX_IMAGES and REPORT_MAX_IMAGE_BYTES must be positive")
	}
	if c.FirebaseServiceAccountKeyPath != "" {
		if _, err := os.Stat(c.FirebaseServiceAccountKeyPath); os.IsNotExist(err) {
			return fmt.Errorf("FATAL: Firebase service account key file specified in FIREBASE_SERVICE_ACCOUNT_KEY_PATH (%s) not found", c.FirebaseServiceAccountKeyPath)
		}
	}
	return nil
}

// FirebaseEnabled reports whether Firebase sign-in is configured.
func (c *Config) FirebaseEnabled() bool {
	return strings.TrimSpace(c.FirebaseServiceAccountKeyPath) != ""
}

// GoogleOAuthEnabled reports whether the Google OAuth flow is configured.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
