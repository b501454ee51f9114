// Package server initializes and runs the Keygate server: it opens the
// database, applies migrations, wires the services, and serves the HTTP API
// with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"keygate/internal/logging"
	"keygate/internal/server/capabilities"
	"keygate/internal/server/config"
	"keygate/internal/server/httpapi"
	"keygate/internal/server/repositories/repomanager"
	"keygate/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	repos  repomanager.RepositoryManager
	server *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()

	registry, err := loadRegistry(c)
	if err != nil {
		return nil, err
	}

	svcs := httpapi.Services{
		Keys:   services.NewKeyService(db, repos),
		Users:  services.NewUserService(db, repos),
		Roles:  services.NewRoleService(db, repos, c.SuperAdminID),
		Access: services.NewAccessService(db, repos, registry),
		Status: services.NewStatusService(db, repos),
	}

	app := &App{config: c, logger: logger, db: db, repos: repos}

	app.server = httpapi.NewServer(c.EndpointAddr, []byte(c.SecretKey), c.TokenValidityDuration, svcs, app.checkHealth, logger)

	return app, nil
}

func loadRegistry(c *config.Config) (*capabilities.Registry, error) {
	if c.CapabilitiesFile != "" {
		return capabilities.LoadFile(c.CapabilitiesFile)
	}
	return capabilities.Load(capabilities.Defaults())
}

// checkHealth pings the database and verifies that every expected relation
// exists.
func (app *App) checkHealth(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db unreachable: %w", err)
	}

	missing, err := app.repos.VerifySchema(ctx, app.db)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing relations: %v", missing)
	}

	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run migrates the schema and serves until ctx is cancelled or a signal
// arrives. A migration failure aborts startup; the persisted schema version
// never advances past a failed step.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	version, err := app.repos.Version(ctx, app.db)
	if err != nil {
		return fmt.Errorf("schema version error: %w", err)
	}
	app.logger.Info(ctx, "schema ready", "version", version)

	if missing, err := app.repos.VerifySchema(ctx, app.db); err != nil {
		return err
	} else if len(missing) > 0 {
		return fmt.Errorf("schema verification failed, missing relations: %v", missing)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Start(); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close error", "error", err)
	}

	app.logger.Info(shutdownCtx, "app stopped")
	return nil
}
