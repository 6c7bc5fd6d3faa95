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

	"github.com/redis/go-redis/v9"

	httpapi "github.com/LiaiZenApp/liazen-api/internal/api/http"
	"github.com/LiaiZenApp/liazen-api/internal/api/service"
	"github.com/LiaiZenApp/liazen-api/internal/api/store"
	"github.com/LiaiZenApp/liazen-api/internal/api/store/drivers/postgres"
	"github.com/LiaiZenApp/liazen-api/internal/api/store/drivers/sqlite"
	"github.com/LiaiZenApp/liazen-api/pkg/authn"
	"github.com/LiaiZenApp/liazen-api/pkg/cryptox"
	"github.com/LiaiZenApp/liazen-api/pkg/httpx"
	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
	"github.com/LiaiZenApp/liazen-api/pkg/observe"
	"github.com/LiaiZenApp/liazen-api/pkg/ratelimit"
	"github.com/LiaiZenApp/liazen-api/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	serviceName = "liazen-api"
)

// Application encapsulates the API with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	redis     *redis.Client // nil with the memory rate limit store
	telemetry *observe.Provider
	keyCache  *jwtx.KeyCache // nil in mock mode

	limitStore   ratelimit.Store
	apiLimiter   *ratelimit.Limiter
	loginLimiter *ratelimit.Limiter
	resolver     *authn.Resolver

	// Services
	authService      *service.AuthService
	bootstrapService *service.BootstrapService
	janitor          *service.Janitor // nil with the redis rate limit store

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx := context.Background()

	telemetry, err := observe.New(ctx, observe.Config{
		ServiceName: serviceName,
		Version:     BuildVersion,
		Exporter:    cfg.MetricsExporter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	app.telemetry = telemetry

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initRateLimits(ctx); err != nil {
		app.closeDependencies()
		return nil, err
	}
	if err := app.initAuthn(ctx); err != nil {
		app.closeDependencies()
		return nil, err
	}
	if err := app.initServices(ctx); err != nil {
		app.closeDependencies()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if app.janitor != nil {
		app.janitor.Start()
	}

	app.logger.Info("api starting", "port", app.cfg.Port, "version", BuildVersion, "auth_mode", app.cfg.AuthMode)

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

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down api...")

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

	if app.janitor != nil {
		app.janitor.Stop()
	}

	if err := app.telemetry.Shutdown(ctx); err != nil {
		app.logger.Error("error flushing metrics", "error", err)
	}

	if err := app.closeDependencies(); err != nil {
		return err
	}

	app.logger.Info("api stopped")
	return nil
}

// closeDependencies closes the database and redis connections.
func (app *Application) closeDependencies() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase opens the user store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DBDriver {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.DBDSN)
	default:
		db, err = sqlite.NewStore(app.cfg.DBDSN)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		app.db = nil
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DBDriver)
	return nil
}

// initRateLimits selects the counter store and builds the API and login
// limiters on it.
func (app *Application) initRateLimits(ctx context.Context) error {
	switch app.cfg.RateLimitStore {
	case "redis":
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		// Counting fails open, so an unreachable redis only degrades
		// throttling. Report it rather than refusing to start.
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.logger.Warn("redis unreachable; rate limiting will fail open until it recovers", "addr", app.cfg.RedisAddr, "error", err)
		}
		app.limitStore = ratelimit.NewRedisStore(app.redis, "liazen:ratelimit:")
	default:
		memory := ratelimit.NewMemoryStore()
		app.limitStore = memory
		app.janitor = service.NewJanitor(memory, app.logger, app.cfg.RateLimitSweepInterval)
	}

	var err error
	app.apiLimiter, err = ratelimit.New(ratelimit.Config{
		Store: app.limitStore,
		Limits: ratelimit.Limits{
			PerMinute: app.cfg.RateLimitPerMinute,
			PerHour:   app.cfg.RateLimitPerHour,
		},
		Namespace: "api",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	app.loginLimiter, err = ratelimit.New(ratelimit.Config{
		Store:     app.limitStore,
		Limits:    ratelimit.Limits{PerMinute: app.cfg.RateLimitLoginPerMinute},
		Namespace: "login",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize login rate limiter: %w", err)
	}
	return nil
}

// initAuthn selects the verifier and builds the principal resolver.
func (app *Application) initAuthn(ctx context.Context) error {
	metrics := app.telemetry.Metrics()

	primary, cache, err := NewVerifier(ctx, app.cfg, app.logger, metrics.RecordKeyFetch)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	app.keyCache = cache

	tokens, err := NewLocalTokens(app.cfg, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize local tokens: %w", err)
	}

	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperPath)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	app.authService, err = service.NewAuthService(app.db, tokens, cryptox.NewHasher(pepper), metrics)
	if err != nil {
		return err
	}

	app.resolver, err = authn.NewResolver(authn.Config{
		Verifier: &jwtx.IssuerRouter{Primary: primary, Local: tokens},
		Limiter:  app.apiLimiter,
		Recorder: metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize principal resolver: %w", err)
	}
	return nil
}

// initServices seeds the first admin account.
func (app *Application) initServices(ctx context.Context) error {
	app.bootstrapService = &service.BootstrapService{
		Store:  app.db,
		Hasher: app.authService.Hasher,
	}

	generated, err := app.bootstrapService.EnsureAdmin(ctx, app.cfg.BootstrapAdminUsername, app.cfg.BootstrapAdminPassword)
	switch {
	case errors.Is(err, service.ErrBootstrapAlready):
		return nil
	case err != nil:
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	if generated != "" {
		// Printed once to the terminal and never to the structured log.
		fmt.Fprintf(os.Stderr, "initial admin credentials: username=%s password=%s\n",
			app.cfg.BootstrapAdminUsername, generated)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	clientIP := httpx.ClientIP(app.cfg.TrustProxyHeaders)
	router := httpapi.NewRouter(app.resolver, clientIP, BuildVersion, app.logger)

	router.AuthService = app.authService
	router.LoginLimiter = app.loginLimiter
	router.Metrics = app.telemetry.Metrics()
	router.MetricsHandler = app.telemetry.Handler()
	router.ReadinessChecks = map[string]httpapi.ReadinessCheck{
		"database": app.db.Ping,
	}
	if app.redis != nil {
		router.ReadinessChecks["redis"] = func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		}
	}
	if app.keyCache != nil {
		router.ReadinessChecks["jwks"] = func(context.Context) error {
			if app.keyCache.Len() == 0 {
				return errors.New("no keys loaded")
			}
			return nil
		}
	}
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
