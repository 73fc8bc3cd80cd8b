package app

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mdelcroix/courier/internal/auth"
	"github.com/mdelcroix/courier/internal/config"
	"github.com/mdelcroix/courier/internal/core"
	"github.com/mdelcroix/courier/internal/store"
	"github.com/mdelcroix/courier/internal/store/sqlite"
	transporthttp "github.com/mdelcroix/courier/internal/transport/http"
	transporttcp "github.com/mdelcroix/courier/internal/transport/tcp"
)

// App wires together the store, the hub and both transports.
type App struct {
	cfg        *config.Config
	hub        *core.Hub
	store      store.Store
	tcpServer  *transporttcp.Server
	httpServer *stdhttp.Server
	log        *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(st, logger)

	return &App{
		cfg:        cfg,
		hub:        hub,
		store:      st,
		tcpServer:  transporttcp.NewServer(hub, cfg, logger),
		httpServer: transporthttp.NewServer(hub, authService, st, cfg, logger),
		log:        logger,
	}, nil
}

// Run starts the hub and both listeners and blocks until context cancellation
// or a fatal error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.TCPAddr)
	if err != nil {
		a.cleanup()
		return fmt.Errorf("listen on %s: %w", a.cfg.TCPAddr, err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	serverErr := make(chan error, 2)

	go func() {
		serverErr <- a.tcpServer.Serve(ctx, ln)
	}()

	go func() {
		a.log.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down")
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		// The TCP server stops through ctx; wait for both goroutines.
		err := <-serverErr
		if second := <-serverErr; err == nil {
			err = second
		}
		a.cleanup()
		return err
	}
}

// cleanup closes the database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
