package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/mdelcroix/courier/internal/core"
	"github.com/mdelcroix/courier/internal/proto"
)

// handleConn registers a hub client for the connection and runs the
// read/write loop pair until either side fails or ctx is cancelled.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.log.Debug().Str("remote", remote).Msg("connected")

	client := core.NewClient(uuid.NewString())
	s.hub.RegisterClient(client)
	defer func() {
		s.hub.UnregisterClient(client)
		close(client.Commands)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- s.writeLoop(ctx, conn, client)
	}()

	err := <-errCh
	cancel()
	conn.Close() // unblock the reader
	<-errCh

	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, proto.ErrEmptyFrame),
		errors.Is(err, context.Canceled), errors.Is(err, net.ErrClosed):
		s.log.Debug().Str("remote", remote).Str("username", client.Username).
			Msg("connection closed by the client")
	default:
		s.log.Warn().Err(err).Str("remote", remote).Msg("connection closed with error")
	}
}

func (s *Server) readLoop(ctx context.Context, conn net.Conn, client *core.Client) error {
	r := proto.NewReader(conn, s.cfg.MaxFrameBytes)

	// The deadline only covers the first frame: a fresh connection has to
	// say something promptly, but once it has, it may sit and listen for
	// routed messages indefinitely.
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	awaitingFirst := true

	for {
		frame, err := r.Read()
		if err != nil {
			return err
		}
		if awaitingFirst {
			awaitingFirst = false
			_ = conn.SetReadDeadline(time.Time{})
		}

		cmd, ok := frameToCommand(frame)
		if !ok {
			// Server-only commands coming from a client are dropped.
			s.log.Debug().Str("client_id", client.ID).
				Stringer("command", frame.Command).Msg("ignoring client frame")
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, conn net.Conn, client *core.Client) error {
	for {
		select {
		case ev, ok := <-client.Events:
			if !ok {
				return nil
			}
			if ev.Kind == core.EventError {
				// The byte protocol has no error frame; surface it in logs only.
				s.log.Debug().Str("client_id", client.ID).
					Str("code", ev.Error.Code).Msg(ev.Error.Message)
				continue
			}
			if s.cfg.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			}
			if err := proto.Write(conn, ev.Frame); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// frameToCommand maps a client frame onto a hub command. Only message and
// reaction frames are client-originated.
func frameToCommand(frame proto.Frame) (*core.Command, bool) {
	switch frame.Command {
	case proto.CommandMessage:
		return &core.Command{Kind: core.CommandSendMessage, Frame: frame}, true
	case proto.CommandAddReact, proto.CommandRmReact:
		return &core.Command{Kind: core.CommandReact, Frame: frame}, true
	default:
		return nil, false
	}
}
