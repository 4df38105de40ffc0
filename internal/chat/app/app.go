package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/whisper/internal/chat/http"
	"github.com/aussiebroadwan/whisper/internal/chat/kv"
	"github.com/aussiebroadwan/whisper/internal/chat/realtime"
	"github.com/aussiebroadwan/whisper/internal/chat/service"
	"github.com/aussiebroadwan/whisper/internal/chat/store"
	"github.com/aussiebroadwan/whisper/internal/chat/store/drivers/sqlite"
	"github.com/aussiebroadwan/whisper/pkg/cryptox"
	"github.com/aussiebroadwan/whisper/pkg/jwtx"
	"github.com/aussiebroadwan/whisper/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the chat service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db store.Store
	kv kv.Store

	// Services
	sessionService      *service.SessionService
	userService         *service.UserService
	keyStoreService     *service.KeyStoreService
	messageService      *service.MessageService
	housekeepingService *service.HousekeepingService

	// Realtime
	engine  *realtime.Engine
	gateway *realtime.Gateway

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("CHAT_ACCESS_SECRET and CHAT_REFRESH_SECRET must be set")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "chat-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initKV(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("chat service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down chat service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Close the kv store
	if err := app.kv.Close(); err != nil {
		app.logger.Error("error closing kv store", "error", err)
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("chat service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initKV connects the session kv store. Without a redis address the service
// falls back to an in-process map, which only suits a single dev instance.
func (app *Application) initKV() error {
	if app.cfg.RedisAddr == "" {
		app.logger.Warn("no redis address configured, using in-memory kv store")
		app.kv = kv.NewMemory()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kvStore, err := kv.NewRedis(ctx, app.cfg.RedisAddr, app.cfg.RedisPassword, app.cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.kv = kvStore

	app.logger.Info("connected to redis", "addr", app.cfg.RedisAddr)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	accessTTL := jwtx.ParseTTL(app.cfg.AccessTTL, 15*time.Minute)
	refreshTTL := jwtx.ParseTTL(app.cfg.RefreshTTL, 7*24*time.Hour)

	app.sessionService = &service.SessionService{
		Access:        jwtx.NewHS256(app.cfg.AccessSecret, app.cfg.Issuer, accessTTL),
		Refresh:       jwtx.NewHS256(app.cfg.RefreshSecret, app.cfg.Issuer, refreshTTL),
		KV:            app.kv,
		Store:         app.db,
		SingleSession: app.cfg.SingleSession,
	}

	app.userService = &service.UserService{
		Store:    app.db,
		Sessions: app.sessionService,
		Notifier: service.LogNotifier{},
	}

	app.keyStoreService = &service.KeyStoreService{Store: app.db}
	app.messageService = &service.MessageService{
		Store: app.db,
		Keys:  app.keyStoreService,
	}

	app.engine = realtime.NewEngine(app.db, app.keyStoreService, app.logger)

	app.gateway = realtime.NewGateway(app.logger, app.sessionService, app.engine)
	app.gateway.InsecureSkipVerify = app.cfg.WSInsecureOrigin

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.DeletedRetention = app.cfg.DeletedRetention
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.kv, app.logger)

	// Wire services to router
	router.SessionService = app.sessionService
	router.UserService = app.userService
	router.MessageService = app.messageService
	router.Engine = app.engine
	router.Gateway = app.gateway
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
