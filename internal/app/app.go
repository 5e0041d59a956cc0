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

	httpapi "github.com/buildstream-io/buildstream/internal/http"
	"github.com/buildstream-io/buildstream/internal/service"
	"github.com/buildstream-io/buildstream/internal/store"
	"github.com/buildstream-io/buildstream/internal/store/drivers/vaultfile"
	"github.com/buildstream-io/buildstream/pkg/slogx"
	"github.com/buildstream-io/buildstream/pkg/vaultx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the credential vault service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	store store.Store

	// Services
	registrationService *service.RegistrationService
	catalogService      *service.CatalogService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "buildstream",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("credential vault service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"vault_backend", app.cfg.VaultBackend,
	)

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
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down credential vault service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.logger.Info("credential vault service stopped")
	return nil
}

// initStore builds the vault codec and the file-backed credential store
func (app *Application) initStore() error {
	codec, err := vaultx.New(app.cfg.VaultBackend, app.cfg.VaultPasswordFile, app.cfg.VaultOpTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize vault codec: %w", err)
	}

	app.store = vaultfile.NewStore(vaultfile.Config{
		Codec:            codec,
		ClientsPath:      app.cfg.ClientsVaultPath,
		AuthConfigPath:   app.cfg.AuthConfigPath,
		MaxActiveClients: app.cfg.MaxActiveClients,
		LockTimeout:      app.cfg.VaultLockTimeout,
	})

	// Surface misconfiguration (unreadable passphrase file, undecryptable
	// vault) at startup rather than on the first request. A missing vault
	// file is fine; it is created on first registration.
	if err := app.store.Ping(context.Background()); err != nil {
		return fmt.Errorf("failed to open credential vault: %w", err)
	}

	app.logger.Info("credential vault opened",
		"clients_path", app.cfg.ClientsVaultPath,
		"backend", app.cfg.VaultBackend,
	)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.registrationService = &service.RegistrationService{Store: app.store}
	app.catalogService = &service.CatalogService{OutputDir: app.cfg.CatalogOutputDir}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.store, app.logger)

	// Wire services to router
	router.RegistrationService = app.registrationService
	router.CatalogService = app.catalogService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
