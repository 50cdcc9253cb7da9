// Package server initializes and runs the authkeeper server: it waits for the
// credential store, applies migrations, wires services and serves HTTP and gRPC
// until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jmoiron/sqlx"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
	hs "github.com/dmitrijs2005/authkeeper/internal/server/http"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sqlx.DB
	userService *services.UserService
}

// NewApp connects to the store, retrying per the configured startup policy,
// applies pending migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if c.UsesDevSecret() {
		logger.Warn(ctx, "using the built-in development secret key; set AUTH_SECRET_KEY in production")
	}

	db, dialect, err := dbx.Open(c.DatabaseDSN, dbx.PoolOptions{MaxOpenConns: c.MaxOpenConns, MaxIdleConns: c.MaxOpenConns})
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewSQLRepositoryManager(dialect)
	if err := waitForStore(ctx, c, logger, db, rm); err != nil {
		_ = db.Close()
		return nil, err
	}

	us, err := newUserService(c, logger, db, rm)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{config: c, logger: logger, db: db, userService: us}, nil
}

func waitForStore(ctx context.Context, c *config.Config, logger logging.Logger, db *sqlx.DB, rm repomanager.RepositoryManager) error {
	policy := dbx.RetryPolicy{Attempts: c.StartupAttempts, Delay: c.StartupDelay}
	target := dbx.Redact(c.DatabaseDSN)

	err := dbx.WaitFor(ctx, policy, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		if err := rm.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		return nil
	}, func(attempt int, err error) {
		logger.Warn(ctx, "store not ready", "attempt", attempt, "of", policy.Attempts, "dsn", target, "error", err)
	})
	if err != nil {
		return fmt.Errorf("store not ready after %d attempts: %w", policy.Attempts, err)
	}

	logger.Info(ctx, "store ready", "dsn", target)
	return nil
}

func newUserService(c *config.Config, logger logging.Logger, db *sqlx.DB, rm repomanager.RepositoryManager) (*services.UserService, error) {
	hasher, err := auth.NewPasswordHasher(c.PasswordHasher)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}

	issuer, err := auth.NewIssuer([]byte(c.SecretKey), c.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	return services.NewUserService(db, rm, hasher, issuer, logger, c.StoreTimeout)
}

// Users exposes the credential service, e.g. for admin tooling.
func (app *App) Users() *services.UserService { return app.userService }

// Close releases the connection pool.
func (app *App) Close() error { return app.db.Close() }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

type runner interface {
	Run(ctx context.Context) error
}

func (app *App) start(ctx context.Context, cancelFunc context.CancelFunc, name string, r runner) {
	if err := r.Run(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until ctx is cancelled, a shutdown signal arrives
// or either server fails. The connection pool is closed on return.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	servers := map[string]runner{
		"http": hs.NewHTTPServer(app.config.HTTPAddr, app.logger, app.userService),
		"grpc": gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.userService),
	}

	var wg sync.WaitGroup
	for name, r := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.start(ctx, cancelFunc, name, r)
		}()
	}

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "closing store", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
