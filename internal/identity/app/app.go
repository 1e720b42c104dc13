package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/portalid/internal/identity/http"
	"github.com/aussiebroadwan/portalid/internal/identity/notify"
	"github.com/aussiebroadwan/portalid/internal/identity/obs"
	"github.com/aussiebroadwan/portalid/internal/identity/policy"
	"github.com/aussiebroadwan/portalid/internal/identity/service"
	"github.com/aussiebroadwan/portalid/internal/identity/store"
	"github.com/aussiebroadwan/portalid/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/portalid/pkg/cryptox"
	"github.com/aussiebroadwan/portalid/pkg/jwtx"
	"github.com/aussiebroadwan/portalid/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

const outboxQueue = 256

// Application owns the identity service and its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	redis    *redis.Client // nil unless IDENTITY_REDIS_ADDR is set
	verifier jwtx.Verifier
	metrics  *obs.Metrics

	mailer   service.EmailDispatcher
	outbox   *notify.AsyncDispatcher
	sessions service.SessionInvalidator

	registrationService  *service.RegistrationService
	recoveryService      *service.RecoveryService
	accreditationService *service.AccreditationService
	adminService         *service.AdminService
	housekeepingService  *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: obs.New(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initVerifier(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initNotify(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.outbox = notify.NewAsyncDispatcher(app.mailer, app.logger, outboxQueue)
	app.mailer = app.outbox
	if err := app.initServices(); err != nil {
		app.closeBackends()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		app.closeBackends()
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

// Shutdown drains in-flight requests, stops housekeeping, flushes queued
// email and closes the store and Redis connections.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

func (app *Application) closeBackends() error {
	if app.outbox != nil {
		ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
		if err := app.outbox.Close(ctx); err != nil {
			app.logger.Error("email backlog not drained", "error", err)
		}
		cancel()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
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

// initVerifier prefers an EdDSA public key over the shared HS256 secret.
func (app *Application) initVerifier() error {
	opts := jwtx.VerifyOptions{Issuer: app.cfg.JWTIssuer, Leeway: 30 * time.Second}

	if app.cfg.JWTPublicKeyFile != "" {
		pub, err := jwtx.LoadEd25519PublicKey(app.cfg.JWTPublicKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load session public key: %w", err)
		}
		v, err := jwtx.NewEdDSAVerifier(pub, opts)
		if err != nil {
			return err
		}
		app.verifier = v
		app.logger.Info("bearer tokens verified with EdDSA public key")
		return nil
	}

	v, err := jwtx.NewHS256Verifier([]byte(app.cfg.JWTSecret), opts)
	if err != nil {
		return err
	}
	app.verifier = v
	app.logger.Info("bearer tokens verified with HS256 secret")
	return nil
}

// initNotify picks the email and session backends. Redis serves both when
// configured; otherwise email goes to the log and sessions are not tracked.
func (app *Application) initNotify() error {
	app.mailer = &notify.LogDispatcher{Logger: app.logger, IncludeLinks: app.cfg.Env == "dev"}
	app.sessions = notify.NopSessionInvalidator{}

	if app.cfg.RedisAddr == "" {
		app.logger.Warn("no redis configured; sessions will not be invalidated")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := notify.NewRedisClient(ctx, app.cfg.RedisAddr, app.cfg.RedisPassword, app.cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = client
	app.sessions = notify.NewRedisSessionInvalidator(client)

	if app.cfg.MailDriver == MailDriverRedis {
		app.mailer = notify.NewRedisDispatcher(client)
	}

	app.logger.Info("redis connected", "addr", app.cfg.RedisAddr, "mail_driver", app.cfg.MailDriver)
	return nil
}

func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	hasher := cryptox.NewArgon2Hasher(pepper)
	passwords := policy.NewPassword(app.cfg.PasswordPolicy)
	links := service.DefaultLinks(app.cfg.PublicURL)
	clock := service.SystemClock{}

	registry := &service.Registry{Store: app.db, Clock: clock}
	vault := &service.TokenVault{Store: app.db, Clock: clock, Metrics: app.metrics}
	limiter := &service.RateLimiter{Store: app.db, Clock: clock}

	app.registrationService = &service.RegistrationService{
		Store:           app.db,
		Registry:        registry,
		Vault:           vault,
		Limiter:         limiter,
		Hasher:          hasher,
		Policy:          passwords,
		Mailer:          app.mailer,
		Links:           links,
		Metrics:         app.metrics,
		VerificationTTL: app.cfg.VerificationTTL,
	}
	app.recoveryService = &service.RecoveryService{
		Store:       app.db,
		Registry:    registry,
		Vault:       vault,
		Limiter:     limiter,
		Hasher:      hasher,
		Policy:      passwords,
		Mailer:      app.mailer,
		Sessions:    app.sessions,
		Links:       links,
		Metrics:     app.metrics,
		ResetTTL:    app.cfg.ResetTTL,
		Window:      app.cfg.ResetWindow,
		MaxRequests: app.cfg.ResetMaxRequests,
	}
	app.accreditationService = &service.AccreditationService{
		Store:         app.db,
		Registry:      registry,
		Vault:         vault,
		Mailer:        app.mailer,
		Links:         links,
		Metrics:       app.metrics,
		Clock:         clock,
		CompletionTTL: app.cfg.CompletionTTL,
	}
	app.adminService = &service.AdminService{
		Store:    app.db,
		Registry: registry,
		Sessions: app.sessions,
		Metrics:  app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Metrics = app.metrics
	app.housekeepingService.TokenRetention = app.cfg.TokenRetention
	app.housekeepingService.ThrottleWindow = max(
		cmp.Or(app.cfg.ResetWindow, service.DefaultResetWindow),
		service.DefaultResendWindow,
	)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		BuildVersion,
		app.db,
		app.metrics,
		app.logger,
	)

	router.RegistrationService = app.registrationService
	router.RecoveryService = app.recoveryService
	router.AccreditationService = app.accreditationService
	router.AdminService = app.adminService
	if app.redis != nil {
		router.RedisPing = func(ctx context.Context) error { return app.redis.Ping(ctx).Err() }
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
