package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	httpapi "github.com/harwood-dev/deskgate/internal/panel/http"
	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/internal/panel/store/drivers/sqlite"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
	"github.com/harwood-dev/deskgate/pkg/jwtx"
	"github.com/harwood-dev/deskgate/pkg/slogx"
	"github.com/harwood-dev/deskgate/pkg/totpx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the panel with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	issuer *jwtx.Issuer

	loginService     *service.LoginService
	accountService   *service.AccountService
	twoFactorService *service.TwoFactorService
	sessionService   *service.SessionService
	settingsService  *service.SettingsService
	auditService     *service.AuditService
	monitorService   *service.MonitorService
	fileService      *service.FileService
	rdpService       *service.RDPService
	housekeeping     *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "deskgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	issuer, err := jwtx.NewIssuer([]byte(cfg.JWTSecretKey), cfg.TokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	app.issuer = issuer

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	ctx := context.Background()

	// Seed the default admin on a fresh database before accepting requests.
	if err := app.accountService.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	app.monitorService.Start()
	app.housekeeping.Start()

	app.logger.Info("panel starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down panel...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.monitorService.Stop()
	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("panel stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

func (app *Application) initServices() error {
	hasher := cryptox.NewHasher(app.cfg.PasswordPepper)

	box, err := cryptox.NewSecretBox(app.credentialKey())
	if err != nil {
		return fmt.Errorf("failed to initialize credential key: %w", err)
	}

	fileRoot, err := filepath.Abs(app.cfg.FileRoot)
	if err != nil {
		return fmt.Errorf("resolve file root: %w", err)
	}
	if err := os.MkdirAll(fileRoot, 0o750); err != nil {
		return fmt.Errorf("create file root: %w", err)
	}

	app.auditService = &service.AuditService{Store: app.db, Logger: app.logger}
	app.sessionService = &service.SessionService{Store: app.db, Audit: app.auditService}
	app.settingsService = &service.SettingsService{Store: app.db, Audit: app.auditService}

	app.loginService = &service.LoginService{
		Store:    app.db,
		Hasher:   hasher,
		Tokens:   app.issuer,
		TokenTTL: app.cfg.TokenTTL,
		Policy:   app.settingsService.LockoutPolicy(context.Background()),
		Audit:    app.auditService,
		Sessions: app.sessionService,
	}

	app.accountService = &service.AccountService{
		Store:  app.db,
		Hasher: hasher,
		Audit:  app.auditService,
		Logger: app.logger,
	}

	app.twoFactorService = &service.TwoFactorService{
		Store:       app.db,
		Hasher:      hasher,
		Provisioner: &totpx.Provisioner{Issuer: "DeskGate"},
		Audit:       app.auditService,
	}

	app.monitorService = service.NewMonitorService(app.db, app.logger, app.cfg.MonitorInterval)
	app.fileService = &service.FileService{
		Root:     fileRoot,
		Settings: app.settingsService,
		Audit:    app.auditService,
	}
	app.rdpService = &service.RDPService{
		Store: app.db,
		Box:   box,
		Audit: app.auditService,
	}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.settingsService,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	return nil
}

// credentialKey returns the 32-byte key for sealing stored RDP passwords.
// An explicit CREDENTIAL_KEY wins; otherwise the key is derived from the
// JWT secret so single-secret deployments still work.
func (app *Application) credentialKey() []byte {
	if app.cfg.CredentialKey != "" {
		if key, err := hex.DecodeString(app.cfg.CredentialKey); err == nil && len(key) == 32 {
			return key
		}
		app.logger.Warn("CREDENTIAL_KEY is not 32 hex-encoded bytes; deriving from JWT secret")
	}
	derived := sha256.Sum256([]byte("deskgate-credentials:" + app.cfg.JWTSecretKey))
	return derived[:]
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.issuer, BuildVersion, app.db, app.logger)

	router.LoginService = app.loginService
	router.AccountService = app.accountService
	router.TwoFactorService = app.twoFactorService
	router.SessionService = app.sessionService
	router.SettingsService = app.settingsService
	router.AuditService = app.auditService
	router.MonitorService = app.monitorService
	router.FileService = app.fileService
	router.RDPService = app.rdpService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
