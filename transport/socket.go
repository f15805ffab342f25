// Package transport moves bytes between TCP sockets and channels. A Socket
// carries one connection; a Server accepts connections and turns each into a
// child channel.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
	"go.uber.org/zap"
)

// DefaultReadBufferSize is the size of the buffer each read fills.
const DefaultReadBufferSize = 8 * 1024

// Socket is a TCP connection transport. Reads happen on a dedicated goroutine
// and are handed to the channel's event loop; writes happen on the loop.
type Socket struct {
	logger *zap.Logger

	mu             sync.Mutex
	conn           net.Conn
	readBufferSize int
	writeTimeout   time.Duration
	noDelay        *bool
	keepAlive      *bool
	linger         *int

	closed atomic.Bool
}

func NewSocket(logger *zap.Logger) *Socket {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Socket{logger: logger, readBufferSize: DefaultReadBufferSize}
}

func newAcceptedSocket(conn net.Conn, logger *zap.Logger) *Socket {
	s := NewSocket(logger)
	s.conn = conn
	return s
}

func (s *Socket) Bind(*channel.Channel, string) error {
	return fmt.Errorf("bind on a client socket: %w", ErrUnsupported)
}

// Connect dials remote, from local when it is not empty.
func (s *Socket) Connect(ctx context.Context, _ *channel.Channel, remote, local string) error {
	d := net.Dialer{}
	if local != "" {
		addr, err := net.ResolveTCPAddr("tcp", local)
		if err != nil {
			return err
		}
		d.LocalAddr = addr
	}
	conn, err := d.DialContext(ctx, "tcp", remote)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		_ = conn.Close()
		return ErrClosed
	}
	s.conn = conn
	return s.applyLocked()
}

func (s *Socket) StartReading(ch *channel.Channel) {
	s.mu.Lock()
	conn, size := s.conn, s.readBufferSize
	s.mu.Unlock()
	if conn == nil {
		ch.TransportFailed(ErrNotConnected)
		return
	}
	go s.readLoop(ch, conn, size)
}

func (s *Socket) readLoop(ch *channel.Channel, conn net.Conn, size int) {
	buf := make([]byte, size)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			p := make([]byte, n)
			copy(p, buf[:n])
			ch.Receive(p)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || s.closed.Load() {
				ch.TransportFailed(nil)
			} else {
				s.logger.Debug("read failed", zap.Error(err))
				ch.TransportFailed(err)
			}
			return
		}
	}
}

func (s *Socket) Write(p []byte) error {
	s.mu.Lock()
	conn, timeout := s.conn, s.writeTimeout
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	_, err := conn.Write(p)
	return err
}

func (s *Socket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Socket) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Socket) RemoteAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// SetOption records opt and applies it right away when connected.
func (s *Socket) SetOption(opt channel.Option, value any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch opt {
	case channel.OptionReadBufferSize:
		n, ok := value.(int)
		if !ok || n <= 0 {
			return true, errs.ErrInvalidArgumentf("%s: want positive int, got %v", opt, value)
		}
		s.readBufferSize = n
	case channel.OptionWriteTimeout:
		d, ok := value.(time.Duration)
		if !ok {
			return true, errs.ErrInvalidArgumentf("%s: want time.Duration, got %T", opt, value)
		}
		s.writeTimeout = d
	case channel.OptionTCPNoDelay:
		b, ok := value.(bool)
		if !ok {
			return true, errs.ErrInvalidArgumentf("%s: want bool, got %T", opt, value)
		}
		s.noDelay = &b
	case channel.OptionKeepAlive:
		b, ok := value.(bool)
		if !ok {
			return true, errs.ErrInvalidArgumentf("%s: want bool, got %T", opt, value)
		}
		s.keepAlive = &b
	case channel.OptionLinger:
		n, ok := value.(int)
		if !ok {
			return true, errs.ErrInvalidArgumentf("%s: want int, got %T", opt, value)
		}
		s.linger = &n
	default:
		return false, nil
	}
	return true, s.applyLocked()
}

func (s *Socket) applyLocked() error {
	tc, ok := s.conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if s.noDelay != nil {
		if err := tc.SetNoDelay(*s.noDelay); err != nil {
			return err
		}
	}
	if s.keepAlive != nil {
		if err := tc.SetKeepAlive(*s.keepAlive); err != nil {
			return err
		}
	}
	if s.linger != nil {
		if err := tc.SetLinger(*s.linger); err != nil {
			return err
		}
	}
	return nil
}
