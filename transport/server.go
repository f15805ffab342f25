package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/mohitkumar/mnet/channel"
	"go.uber.org/zap"
)

// ServerConfig describes how accepted connections are set up.
type ServerConfig struct {
	// ChildGroup hosts accepted channels. When nil they share the server
	// channel's event loop.
	ChildGroup *channel.EventLoopGroup
	// ChildInitializer is added to every accepted channel's pipeline. It is
	// usually a *channel.Initializer or another Sharable handler.
	ChildInitializer channel.Handler
	ChildOptions     map[channel.Option]any
	Logger           *zap.Logger
}

// Server is a listening TCP transport. Its channel becomes active once bound
// and fires no reads of its own; each accepted connection becomes a child
// channel registered on the child group.
type Server struct {
	cfg    ServerConfig
	logger *zap.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed atomic.Bool
}

func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, logger: logger}
}

func (s *Server) Bind(_ *channel.Channel, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Connect(context.Context, *channel.Channel, string, string) error {
	return fmt.Errorf("connect on a server: %w", ErrUnsupported)
}

func (s *Server) StartReading(ch *channel.Channel) {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		ch.TransportFailed(ErrNotConnected)
		return
	}
	go s.acceptLoop(ch, ln)
}

func (s *Server) acceptLoop(parent *channel.Channel, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				parent.TransportFailed(nil)
			} else {
				s.logger.Error("accept failed", zap.Error(err))
				parent.TransportFailed(err)
			}
			return
		}
		s.accept(parent, conn)
	}
}

func (s *Server) accept(parent *channel.Channel, conn net.Conn) {
	child := channel.NewChild(parent, newAcceptedSocket(conn, s.logger), s.logger)
	logger := child.Logger().With(zap.Stringer("remote", conn.RemoteAddr()))

	for opt, v := range s.cfg.ChildOptions {
		ok, err := child.SetOption(opt, v)
		if err != nil {
			logger.Warn("failed to set child option", zap.String("option", string(opt)), zap.Error(err))
		} else if !ok {
			logger.Warn("unknown child option", zap.String("option", string(opt)))
		}
	}
	if s.cfg.ChildInitializer != nil {
		if err := child.Pipeline().AddLast("", s.cfg.ChildInitializer); err != nil {
			logger.Error("failed to add child initializer", zap.Error(err))
			_ = conn.Close()
			return
		}
	}

	var f *channel.Future
	if s.cfg.ChildGroup != nil {
		f = s.cfg.ChildGroup.Register(child)
	} else {
		f = parent.EventLoop().Register(child)
	}
	f.AddListener(func(f *channel.Future) {
		if err := f.Err(); err != nil {
			logger.Warn("failed to register child channel", zap.Error(err))
			_ = conn.Close()
			return
		}
		if err := child.Activate(); err != nil {
			logger.Warn("failed to activate child channel", zap.Error(err))
		}
	})
}

func (s *Server) Write([]byte) error {
	return fmt.Errorf("write on a server: %w", ErrUnsupported)
}

func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) RemoteAddr() net.Addr { return nil }

func (s *Server) SetOption(channel.Option, any) (bool, error) { return false, nil }
