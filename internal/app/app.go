// Package app wires configuration, storage, the feed pipeline and the HTTP
// server together.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/campusfeed/campusfeed/internal/auth"
	"github.com/campusfeed/campusfeed/internal/cache"
	"github.com/campusfeed/campusfeed/internal/config"
	"github.com/campusfeed/campusfeed/internal/database"
	"github.com/campusfeed/campusfeed/internal/enricher"
	"github.com/campusfeed/campusfeed/internal/feed"
	"github.com/campusfeed/campusfeed/internal/httpapi"
	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/mail"
	"github.com/campusfeed/campusfeed/internal/models"
	"github.com/campusfeed/campusfeed/internal/notify"
	"github.com/campusfeed/campusfeed/internal/ratelimit"
	"github.com/campusfeed/campusfeed/internal/sources"
)

// upstreamMinInterval spaces successive calls to the same provider host
const upstreamMinInterval = 250 * time.Millisecond

// App holds all application dependencies
type App struct {
	Config         *config.Config
	Logger         *logging.Logger
	Cache          cache.Cache
	FeedSvc        *feed.Service
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	HTTPServer     *httpapi.Server

	db                *database.DB
	userStore         *database.UserStore
	accountStore      *database.AccountStore
	notificationStore *database.NotificationStore
	canvasFetcher     *sources.CanvasFetcher
}

// New creates and initializes a new App instance
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	app.Logger = app.initLogger()
	app.Cache = app.initCache()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.AuthService = auth.NewService(app.userStore, app.initMailer(), cfg.Auth, app.Logger)
	app.AuthMiddleware = auth.NewMiddleware(app.AuthService)

	fetchers := app.initFetchers()

	scorer := enricher.New(cfg.Enricher.URL, cfg.Enricher.Timeout, app.Logger)
	deriver := notify.New(app.notificationStore, app.Logger)

	app.FeedSvc = feed.New(fetchers, scorer, deriver, app.Cache, cfg.Feed.CacheTTL, app.Logger)

	app.initHTTPServer(fetchers)

	return app, nil
}

// Run starts the HTTP server
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("Starting HTTP server", logging.WithField("addr", a.Config.Server.HTTPAddr))
	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	if memCache, ok := a.Cache.(*cache.MemoryCache); ok {
		memCache.Stop()
	}
	if redisCache, ok := a.Cache.(*cache.RedisCache); ok {
		if err := redisCache.Close(); err != nil {
			a.Logger.Error("Redis close error", logging.WithField("error", err.Error()))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}

	return nil
}

func (a *App) initLogger() *logging.Logger {
	level := logging.LevelInfo
	switch a.Config.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(level)
}

func (a *App) initCache() cache.Cache {
	switch a.Config.Cache.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", a.Config.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:   a.Config.Cache.RedisAddr,
			Prefix: "campusfeed:",
		}, a.Config.Cache.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			return cache.NewMemory(a.Config.Cache.TTL)
		}
		return redisCache
	default:
		a.Logger.Info("Using in-memory cache backend")
		return cache.NewMemory(a.Config.Cache.TTL)
	}
}

func (a *App) initDatabase() error {
	dbConfig := database.DefaultConfig()
	dbConfig.Host = a.Config.Database.Host
	dbConfig.Port = a.Config.Database.Port
	dbConfig.User = a.Config.Database.User
	dbConfig.Password = a.Config.Database.Password
	dbConfig.Database = a.Config.Database.Database
	dbConfig.SSLMode = a.Config.Database.SSLMode

	db, err := database.New(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	a.Logger.Info("Connected to PostgreSQL")

	a.db = db
	a.userStore = database.NewUserStore(db)
	a.accountStore = database.NewAccountStore(db)
	a.notificationStore = database.NewNotificationStore(db)

	return nil
}

func (a *App) initMailer() mail.Sender {
	cfg := a.Config.Mail
	if cfg.SMTPHost == "" {
		a.Logger.Info("No SMTP host configured, password reset links will be logged")
		return mail.NewLogSender(cfg.ResetBaseURL, a.Logger)
	}

	a.Logger.Info("Using SMTP mail sender", logging.WithField("host", cfg.SMTPHost))
	return mail.NewSMTPSender(mail.Config{
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		Username:     cfg.Username,
		Password:     cfg.Password,
		From:         cfg.From,
		ResetBaseURL: cfg.ResetBaseURL,
	}, a.Logger)
}

func (a *App) initFetchers() []sources.Fetcher {
	limiter := ratelimit.New(upstreamMinInterval)
	fetcherConfig := sources.DefaultConfig()
	providers := a.Config.Providers

	canvasTokens := sources.NewTokenSource(a.accountStore, models.ProviderCanvas, providers.CanvasToken)
	outlookTokens := sources.NewTokenSource(a.accountStore, models.ProviderOutlook, providers.OutlookToken)
	googleTokens := sources.NewTokenSource(a.accountStore, models.ProviderGoogle, providers.GoogleToken)

	a.canvasFetcher = sources.NewCanvasFetcher(providers.CanvasBaseURL, canvasTokens, limiter, fetcherConfig, a.Logger)

	return []sources.Fetcher{
		a.canvasFetcher,
		sources.NewOutlookFetcher(outlookTokens, limiter, fetcherConfig, a.Logger),
		sources.NewGoogleFetcher(googleTokens, limiter, fetcherConfig, a.Logger),
	}
}

func (a *App) initHTTPServer(fetchers []sources.Fetcher) {
	byProvider := make(map[models.ProviderID]sources.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byProvider[f.ProviderID()] = f
	}

	integrationAPI := httpapi.NewIntegrationAPI(a.FeedSvc, a.accountStore, byProvider, a.AuthMiddleware, a.Logger)
	notifyAPI := httpapi.NewNotificationAPI(a.notificationStore, a.AuthMiddleware, a.Logger)
	assignmentAPI := httpapi.NewAssignmentAPI(a.canvasFetcher, a.FeedSvc, a.AuthMiddleware, a.Logger)
	profileAPI := httpapi.NewProfileAPI(a.userStore, a.AuthMiddleware, a.Logger)

	a.HTTPServer = httpapi.New(a.AuthService, a.AuthMiddleware, integrationAPI, notifyAPI, assignmentAPI, profileAPI, a.Logger)
}
