package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Logging   LoggingConfig
	Auth      AuthConfig
	Providers ProvidersConfig
	Enricher  EnricherConfig
	Feed      FeedConfig
	Mail      MailConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend   string // "memory" or "redis"
	TTL       time.Duration
	RedisAddr string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// ProvidersConfig holds upstream provider configuration. The per-provider
// tokens are deployment-wide fallbacks used only when a user has no stored
// token; they are passed into adapter construction rather than read from the
// environment at fetch time so adapters stay testable.
type ProvidersConfig struct {
	CanvasBaseURL string
	CanvasToken   string
	OutlookToken  string
	GoogleToken   string
}

// EnricherConfig holds priority scoring service configuration
type EnricherConfig struct {
	URL     string
	Timeout time.Duration
}

// FeedConfig holds feed pipeline configuration
type FeedConfig struct {
	CacheTTL time.Duration
}

// MailConfig holds SMTP configuration for the password reset email. An empty
// SMTPHost means mail is logged instead of sent.
type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	Username     string
	Password     string
	From         string
	ResetBaseURL string
}

// Load parses flags and environment variables to build configuration
func Load() *Config {
	httpAddr := flag.String("http", ":8080", "HTTP server address")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	cacheTTL := flag.Duration("cache-ttl", 2*time.Minute, "Cache TTL for built feeds")
	cacheBackend := flag.String("cache-backend", "memory", "Cache backend: memory or redis")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	dbHost := flag.String("db-host", "localhost", "PostgreSQL host")
	dbPort := flag.Int("db-port", 5432, "PostgreSQL port")
	dbUser := flag.String("db-user", "postgres", "PostgreSQL user")
	dbPassword := flag.String("db-password", "postgres", "PostgreSQL password")
	dbName := flag.String("db-name", "campusfeed", "PostgreSQL database name")
	dbSSLMode := flag.String("db-sslmode", "disable", "PostgreSQL SSL mode")

	flag.Parse()

	applyEnvOverrides(httpAddr, logLevel, cacheTTL, cacheBackend, redisAddr, dbHost, dbPort, dbUser, dbPassword, dbName, dbSSLMode)

	return &Config{
		Server: ServerConfig{
			HTTPAddr: *httpAddr,
		},
		Database: DatabaseConfig{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Password: *dbPassword,
			Database: *dbName,
			SSLMode:  *dbSSLMode,
		},
		Cache: CacheConfig{
			Backend:   *cacheBackend,
			TTL:       *cacheTTL,
			RedisAddr: *redisAddr,
		},
		Logging: LoggingConfig{
			Level: *logLevel,
		},
		Auth:      loadAuthConfig(),
		Providers: loadProvidersConfig(),
		Enricher:  loadEnricherConfig(),
		Feed: FeedConfig{
			CacheTTL: *cacheTTL,
		},
		Mail: loadMailConfig(),
	}
}

func loadAuthConfig() AuthConfig {
	accessTTL := 15 * time.Minute
	if v := os.Getenv("AUTH_ACCESS_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			accessTTL = d
		}
	}

	refreshTTL := 7 * 24 * time.Hour
	if v := os.Getenv("AUTH_REFRESH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			refreshTTL = d
		}
	}

	return AuthConfig{
		JWTSecret:       getEnvOrDefault("AUTH_JWT_SECRET", "change-me-in-production"),
		JWTIssuer:       getEnvOrDefault("AUTH_JWT_ISSUER", "campusfeed"),
		JWTAudience:     getEnvOrDefault("AUTH_JWT_AUDIENCE", "campusfeed-users"),
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}
}

func loadProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		CanvasBaseURL: getEnvOrDefault("CANVAS_BASE_URL", "https://canvas.instructure.com/api/v1"),
		CanvasToken:   os.Getenv("CANVAS_API_TOKEN"),
		OutlookToken:  os.Getenv("OUTLOOK_ACCESS_TOKEN"),
		GoogleToken:   os.Getenv("GOOGLE_ACCESS_TOKEN"),
	}
}

func loadEnricherConfig() EnricherConfig {
	timeout := 2 * time.Second
	if v := os.Getenv("PRIORITY_SERVICE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}

	return EnricherConfig{
		URL:     getEnvOrDefault("PRIORITY_SERVICE_URL", "http://127.0.0.1:5001/predict-priority"),
		Timeout: timeout,
	}
}

func loadMailConfig() MailConfig {
	port := 587
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}

	return MailConfig{
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     port,
		Username:     os.Getenv("SMTP_USERNAME"),
		Password:     os.Getenv("SMTP_PASSWORD"),
		From:         getEnvOrDefault("MAIL_FROM", "CampusFeed <no-reply@campusfeed.local>"),
		ResetBaseURL: getEnvOrDefault("PASSWORD_RESET_URL", "http://localhost:5173/reset-password"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func applyEnvOverrides(
	httpAddr *string,
	logLevel *string,
	cacheTTL *time.Duration,
	cacheBackend *string,
	redisAddr *string,
	dbHost *string,
	dbPort *int,
	dbUser *string,
	dbPassword *string,
	dbName *string,
	dbSSLMode *string,
) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		*httpAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		*logLevel = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*cacheTTL = d
		}
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		*cacheBackend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		*redisAddr = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		*dbHost = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*dbPort = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		*dbUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		*dbPassword = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		*dbName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		*dbSSLMode = v
	}
}
