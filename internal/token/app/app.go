package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medisched/tokend/internal/token/directory"
	httpapi "github.com/medisched/tokend/internal/token/http"
	"github.com/medisched/tokend/internal/token/service"
	"github.com/medisched/tokend/internal/token/store"
	"github.com/medisched/tokend/internal/token/store/drivers/memory"
	"github.com/medisched/tokend/internal/token/store/drivers/redis"
	"github.com/medisched/tokend/internal/token/store/drivers/sqlite"
	"github.com/medisched/tokend/pkg/jwtx"
	"github.com/medisched/tokend/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the token service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	codec     *jwtx.Codec
	directory directory.Directory

	// Services
	tokenService        *service.TokenService
	trustService        *service.TrustService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tokend",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	codec, err := jwtx.NewCodec(jwtx.Config{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		Issuer:        cfg.Issuer,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	ctx := context.Background()
	if err := app.initStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initDirectory(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("token service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreBackend,
		"directory", app.cfg.DirectoryBackend,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down token service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if closer, ok := app.directory.(interface{ Close() }); ok {
		closer.Close()
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("token service stopped")
	return nil
}

// initStore selects and initializes the token store driver.
func (app *Application) initStore(ctx context.Context) error {
	switch app.cfg.StoreBackend {
	case "memory":
		app.db = memory.NewStore(app.cfg.MaxSessions, time.Now)

	case "redis":
		db, err := redis.NewStore(ctx, redis.Config{
			Addr:          app.cfg.RedisAddr,
			MaxPerSubject: app.cfg.MaxSessions,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize redis store: %w", err)
		}
		app.db = db

	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn, app.cfg.MaxSessions, time.Now)
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply store migrations: %w", err)
		}
		app.db = db
		app.logger.Info("store migrations applied successfully")
	}

	return nil
}

// initDirectory selects the subject directory client.
func (app *Application) initDirectory(ctx context.Context) error {
	switch app.cfg.DirectoryBackend {
	case "static":
		// Dev mode: every subject is active unless told otherwise.
		app.directory = directory.NewStatic(false)

	case "postgres":
		dir, err := directory.NewPostgres(ctx, directory.PostgresConfig{
			DSN:      app.cfg.DirectoryDSN,
			Relation: app.cfg.DirectoryRelation,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize subject directory: %w", err)
		}
		app.directory = dir
	}

	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Codec: app.codec,
		Store: app.db,
	}

	app.trustService = &service.TrustService{
		Tokens:        app.tokenService,
		Directory:     app.directory,
		LookupTimeout: app.cfg.DirectoryTimeout,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.tokenService,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)
	router.TokenService = app.tokenService
	router.TrustService = app.trustService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
