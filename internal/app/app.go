package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andy6609/line-relay/internal/admin"
	"github.com/andy6609/line-relay/internal/chat"
	"github.com/andy6609/line-relay/internal/config"
	"github.com/andy6609/line-relay/internal/log"
)

// App wires the relay and its admin surface together.
type App struct {
	relay           *chat.Server
	admin           *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger

	shutdownOnce sync.Once
	shutdownReq  chan struct{}
}

// New constructs the application with provided configuration. An empty
// AdminAddr disables the admin HTTP server.
func New(cfg config.Config, logger *zerolog.Logger) *App {
	if logger == nil {
		logger = log.Nop()
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.Default().ShutdownTimeout
	}
	a := &App{
		relay:           chat.NewServer(cfg, logger),
		shutdownTimeout: timeout,
		log:             logger,
		shutdownReq:     make(chan struct{}),
	}
	if cfg.AdminAddr != "" {
		a.admin = admin.NewServer(cfg.AdminAddr, a.relay, a.RequestShutdown, logger)
	}
	return a
}

// RequestShutdown asks Run to stop. It reports true only for the call that
// actually triggered the shutdown.
func (a *App) RequestShutdown() bool {
	fired := false
	a.shutdownOnce.Do(func() {
		close(a.shutdownReq)
		fired = true
	})
	return fired
}

// Run starts the relay and blocks until ctx is cancelled, an administrator
// requests shutdown, or the admin server fails. A bind failure is returned
// before anything else starts.
func (a *App) Run(ctx context.Context) error {
	if err := a.relay.Start(); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.admin != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.admin.Addr).Msg("admin server listening")
			if err := a.admin.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			a.log.Info().Msg("shutdown signal received")
		case <-a.shutdownReq:
		}
		a.RequestShutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		err := a.relay.Shutdown(shutdownCtx)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			a.log.Warn().Err(err).Msg("relay shutdown")
		}
		if a.admin != nil {
			if aerr := a.admin.Shutdown(shutdownCtx); aerr != nil {
				a.log.Warn().Err(aerr).Msg("admin server shutdown")
			}
		}
		return nil
	})

	return g.Wait()
}

// Relay exposes the chat server, mainly for tests.
func (a *App) Relay() *chat.Server {
	return a.relay
}
