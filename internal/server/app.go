// Package server initializes and runs the CareVault server: database and
// migrations, session manager, services, and the HTTP API with graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/carevault/carevault/internal/logging"
	"github.com/carevault/carevault/internal/server/config"
	"github.com/carevault/carevault/internal/server/httpapi"
	"github.com/carevault/carevault/internal/server/repositories/repomanager"
	"github.com/carevault/carevault/internal/server/services"
	"github.com/carevault/carevault/internal/server/session"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *session.Manager
	handler  http.Handler
}

func NewApp(cfg *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	adminPubPEM, err := os.ReadFile(cfg.AdminPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("admin public key: %w", err)
	}

	sessions := session.NewManager(rm.Sessions(db), []byte(cfg.SecretKey), cfg.InactivityTimeout, cfg.MaxSessionAge, nil)
	userService := services.NewUserService(db, rm, sessions, cfg)
	recordService := services.NewRecordService(db, rm)

	handler := httpapi.NewRouter(
		httpapi.NewAuthHandler(userService, sessions, adminPubPEM),
		httpapi.NewRecordsHandler(recordService),
		sessions, []byte(cfg.SecretKey), logger,
	)

	return &App{config: cfg, logger: logger, db: db, sessions: sessions, handler: handler}, nil
}

// runSessionReaper periodically drops expired session rows. Balanced sessions
// clean up on access, but idle balanced rows and high-tier rows with
// long-expired tokens would otherwise sit in the table until logout.
func (app *App) runSessionReaper(ctx context.Context) {
	ticker := time.NewTicker(app.config.InactivityTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.sessions.Reap(ctx); err != nil {
				app.logger.Error(ctx, "session reap error", "error", err)
			}
		}
	}
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
		Addr:    app.config.EndpointAddr,
		Handler: app.handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, err.Error())
		}
	}()

	app.logger.Info(ctx, "listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSessionReaper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
