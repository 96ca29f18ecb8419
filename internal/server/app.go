// Package server wires the account service together: database and
// migrations, mail delivery, the JSON API, the gRPC health endpoint and the
// expired token sweeper. It also owns graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/dbx"
	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/metrics"
	"github.com/dmitrijs2005/gophaccount/internal/server/config"
	"github.com/dmitrijs2005/gophaccount/internal/server/httpapi"
	"github.com/dmitrijs2005/gophaccount/internal/server/mailer"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophaccount/internal/server/services"
	"github.com/dmitrijs2005/gophaccount/internal/server/validation"
	"github.com/jonboulle/clockwork"

	gs "github.com/dmitrijs2005/gophaccount/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	dbDriver        = "pgx"
	shutdownTimeout = 10 * time.Second
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	identity *services.IdentityService
	api      *httpapi.API
}

// NewApp opens the database, applies migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := dbx.Open(ctx, dbDriver, c.DatabaseDSN, dbx.PoolConfig{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	v, err := validation.New()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validator init error: %w", err)
	}

	reg := metrics.NewRegistry()
	identity := services.NewIdentityService(db, rm, newSender(c, logger), c, logger.With("module", "identity"),
		services.WithMetrics(metrics.NewIdentity(reg)),
	)

	api := httpapi.New(identity, v, []byte(c.SecretKey), logger.With("module", "http"),
		httpapi.WithHealthCheck(db.PingContext),
		httpapi.WithMetrics(metrics.NewHTTP(reg), reg),
	)

	return &App{config: c, logger: logger, db: db, identity: identity, api: api}, nil
}

// newSender picks SMTP delivery, or logs mails when no host is configured.
func newSender(c *config.Config, logger logging.Logger) mailer.EmailSender {
	if c.SMTPHost == "" {
		logger.Warn(context.Background(), "SMTP host not configured, activation mails will only be logged")
		return mailer.NewLogSender(logger.With("module", "mailer"))
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:      c.SMTPHost,
		Port:      c.SMTPPort,
		Username:  c.SMTPUsername,
		Password:  c.SMTPPassword,
		FromName:  c.SMTPFromName,
		FromEmail: c.SMTPFromEmail,
		TLS:       c.SMTPTLS,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or a server fails, then
// waits for in-flight mail deliveries and closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	sweeper := services.NewTokenSweeper(app.identity.SweepExpired, app.config.TokenSweepInterval,
		clockwork.NewRealClock(), app.logger.With("module", "sweeper"))

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	wg.Wait()

	app.identity.Wait()
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "close db", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
