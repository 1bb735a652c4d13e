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

	httpapi "github.com/somnuslabs/somnus/internal/sleep/http"
	"github.com/somnuslabs/somnus/internal/sleep/oura"
	"github.com/somnuslabs/somnus/internal/sleep/service"
	"github.com/somnuslabs/somnus/internal/sleep/store"
	"github.com/somnuslabs/somnus/internal/sleep/store/drivers/sqlite"
	"github.com/somnuslabs/somnus/pkg/cryptox"
	"github.com/somnuslabs/somnus/pkg/jwtx"
	"github.com/somnuslabs/somnus/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the sleep service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	box      *cryptox.SecretBox
	signer   *jwtx.Signer
	verifier *jwtx.EdDSAVerifier
	provider *oura.Client

	// Services
	userService         *service.UserService
	tokenLifecycle      *service.TokenLifecycle
	syncService         *service.SyncService
	summaryService      *service.SummaryService
	recordsService      *service.RecordsService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "sleep-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initCrypto(); err != nil {
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

	app.logger.Info("sleep service starting", "port", app.cfg.Port, "version", BuildVersion)

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
	app.logger.Info("shutting down sleep service...")

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

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("sleep service stopped")
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

// initCrypto sets up the provider token secret box and the JWT signing key.
func (app *Application) initCrypto() error {
	box, err := cryptox.NewSecretBox(app.cfg.TokenSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize secret box: %w", err)
	}
	if box.Insecure() {
		app.logger.Warn("SLEEP_TOKEN_SECRET is not set; provider tokens will be stored in plaintext")
	}
	app.box = box

	key, err := jwtx.LoadOrGenerateKey(app.cfg.JWTKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load JWT signing key: %w", err)
	}

	app.signer = jwtx.NewSigner("sleep-1", key)
	app.verifier = jwtx.NewVerifier(
		app.signer.KID(),
		app.signer.Public(),
		app.cfg.Issuer,
		[]string{app.cfg.Audience},
	)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.provider = oura.NewClient(
		app.cfg.OuraClientID,
		app.cfg.OuraClientSecret,
		app.cfg.OuraRedirectURI,
		app.box,
	)

	app.userService = &service.UserService{
		Store:    app.db,
		Signer:   app.signer,
		Issuer:   app.cfg.Issuer,
		Audience: []string{app.cfg.Audience},
	}

	app.tokenLifecycle = &service.TokenLifecycle{
		Store:        app.db,
		Provider:     app.provider,
		SafetyMargin: app.cfg.OuraSafetyMargin,
	}

	app.summaryService = &service.SummaryService{Store: app.db}

	app.syncService = &service.SyncService{
		Store:          app.db,
		Provider:       app.provider,
		Tokens:         app.tokenLifecycle,
		Summaries:      app.summaryService,
		LookbackMonths: app.cfg.OuraLookbackMonths,
	}

	app.recordsService = &service.RecordsService{
		Store:     app.db,
		Summaries: app.summaryService,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.UserService = app.userService
	router.TokenLifecycle = app.tokenLifecycle
	router.SyncService = app.syncService
	router.RecordsService = app.recordsService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
