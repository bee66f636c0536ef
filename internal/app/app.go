package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/perch-social/perch/internal/config"
	"github.com/perch-social/perch/internal/observability"
	"github.com/perch-social/perch/internal/service"

	"golang.org/x/sync/errgroup"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Sweeper       *service.Sweeper
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime, sweeper *service.Sweeper) *App {
	return &App{Config: cfg, Logger: logger, Server: server, Observability: runtime, Sweeper: sweeper}
}

// Run serves until the context is cancelled or a signal arrives, then drains
// the HTTP server and flushes observability within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("server listening", "addr", a.Server.Addr, "profile", a.Config.Profile)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.Sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	if shutdownErr := a.Observability.Shutdown(flushCtx); shutdownErr != nil {
		a.Logger.Warn("observability shutdown incomplete", "error", shutdownErr)
	}
	return err
}

// NewHTTPServer wraps the router with the server timeouts perchd runs with.
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
