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

// Token strategies for access tokens
const (
	TokenStrategyJWT    = "jwt"
	TokenStrategyPaseto = "paseto"
)

// Backends for refresh tokens and rate limiting
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Mail providers
const (
	MailProviderSMTP   = "smtp"
	MailProviderResend = "resend"
	MailProviderLog    = "log"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
	Web       WebConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev, test or prod
	APIPrefix       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins for cookie auth
}

type DatabaseConfig struct {
	URL            string // takes precedence over the individual fields
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local

	MaxOpenConns  int
	MaxIdleConns  int
	SlowQueryTime time.Duration // queries slower than this are logged at WARN
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	TokenStrategy string
	JWTSecret     []byte
	// PASETO symmetric key (must be 32 bytes for v4.local)
	PasetoKey            []byte
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
	RefreshTokenStore    string
	VerificationTokenTTL time.Duration
}

type RateLimitConfig struct {
	Backend       string
	Requests      int
	Window        time.Duration
	AuthRequests  int
	EmailCooldown time.Duration
}

type EmailConfig struct {
	Provider     string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	From         string
	ResendAPIKey string
	FrontendURL  string // Frontend URL for verification links
}

type WebConfig struct {
	CSRFKey []byte
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	smtpHost := getEnv("SMTP_HOST", "")
	defaultProvider := MailProviderSMTP
	if smtpHost == "" {
		defaultProvider = MailProviderLog
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", getEnv("PORT", "3333")),
			Env:             getEnv("APP_ENV", "dev"),
			APIPrefix:       strings.Trim(getEnv("API_PREFIX", "api"), "/"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins: getSliceEnv("TRUSTED_ORIGINS",
				getSliceEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "events"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
			SlowQueryTime:  getDurationEnv("DB_SLOW_QUERY_TIME", 200*time.Millisecond),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenStrategy: strings.ToLower(getEnv("AUTH_TOKEN_STRATEGY", TokenStrategyJWT)),
			JWTSecret:     []byte(getEnv("JWT_SECRET", "")),
			PasetoKey:     []byte(getEnv("PASETO_KEY", "")),
			AccessTokenDuration: getDurationEnv("JWT_EXPIRATION",
				getDurationEnv("ACCESS_TOKEN_DURATION", time.Hour)),
			RefreshTokenDuration: getDurationEnv("REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			RefreshTokenStore:    strings.ToLower(getEnv("REFRESH_TOKEN_STORE", BackendRedis)),
			VerificationTokenTTL: getDurationEnv("VERIFICATION_TOKEN_TTL", 8*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Backend:       strings.ToLower(getEnv("RATE_LIMIT_BACKEND", BackendRedis)),
			Requests:      getIntEnv("RATE_LIMIT_REQUESTS", 100),
			Window:        getDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute),
			AuthRequests:  getIntEnv("AUTH_RATE_LIMIT_REQUESTS", 10),
			EmailCooldown: getDurationEnv("EMAIL_COOLDOWN", 2*time.Minute),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(getEnv("MAIL_PROVIDER", defaultProvider)),
			SMTPHost:     smtpHost,
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			From:         getEnv("SMTP_FROM", `"Auth App" <noreply@example.com>`),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FrontendURL:  strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		},
		Web: WebConfig{
			CSRFKey: []byte(getEnv("CSRF_KEY", "")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required values and enumerations.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.Auth.JWTSecret)))
	}

	switch c.Auth.TokenStrategy {
	case TokenStrategyJWT:
	case TokenStrategyPaseto:
		if len(c.Auth.PasetoKey) != 32 {
			errs = append(errs, fmt.Errorf("PASETO_KEY must be exactly 32 bytes, got %d", len(c.Auth.PasetoKey)))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_TOKEN_STRATEGY %q", c.Auth.TokenStrategy))
	}

	if c.Auth.RefreshTokenStore != BackendRedis && c.Auth.RefreshTokenStore != BackendPostgres {
		errs = append(errs, fmt.Errorf("unknown REFRESH_TOKEN_STORE %q", c.Auth.RefreshTokenStore))
	}

	if c.RateLimit.Backend != BackendRedis && c.RateLimit.Backend != BackendMemory {
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimit.Backend))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.AuthRequests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit requests and window must be positive"))
	}

	switch c.Email.Provider {
	case MailProviderSMTP:
		if c.Email.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when MAIL_PROVIDER=smtp"))
		}
	case MailProviderResend:
		if c.Email.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required when MAIL_PROVIDER=resend"))
		}
	case MailProviderLog:
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_PROVIDER %q", c.Email.Provider))
	}

	if len(c.Web.CSRFKey) != 32 {
		errs = append(errs, fmt.Errorf("CSRF_KEY must be exactly 32 bytes, got %d", len(c.Web.CSRFKey)))
	}

	return errors.Join(errs...)
}

func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// MigrationURL returns a URL-form DSN as golang-migrate requires one.
func (c *DatabaseConfig) MigrationURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

// IsProduction returns true if the environment is set to prod
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// EnvName returns the long environment name shown by the API index.
func (c *ServerConfig) EnvName() string {
	switch c.Env {
	case "dev":
		return "development"
	case "prod":
		return "production"
	default:
		return c.Env
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// getDurationEnv accepts Go durations ("15m") or a plain number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
