package tcp

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mdelcroix/courier/internal/config"
	"github.com/mdelcroix/courier/internal/core"
	"github.com/mdelcroix/courier/internal/proto"
)

// Server accepts chat protocol connections and bridges them to the hub.
type Server struct {
	hub *core.Hub
	cfg *config.Config
	log *zerolog.Logger

	wg  sync.WaitGroup
	sem chan struct{}
}

// NewServer builds a TCP chat server.
func NewServer(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *Server {
	var sem chan struct{}
	if cfg.MaxConns > 0 {
		sem = make(chan struct{}, cfg.MaxConns)
	}
	return &Server{hub: hub, cfg: cfg, log: logger, sem: sem}
}

// Serve accepts connections on ln until ctx is cancelled, then waits for the
// per-connection goroutines to drain.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("chat server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		if !s.acquire() {
			// Over capacity: wave the client off and hang up.
			_ = proto.Write(conn, proto.ServerFrame(proto.CommandGoodBye, "server full"))
			conn.Close()
			s.log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("connection refused: at capacity")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) acquire() bool {
	if s.sem == nil {
		return true
	}
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	if s.sem != nil {
		<-s.sem
	}
}
