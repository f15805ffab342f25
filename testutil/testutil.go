package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/transport"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// DefaultTimeout bounds every wait in tests that touch real sockets.
const DefaultTimeout = 5 * time.Second

// NewLogger returns a logger that writes through t.
func NewLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
}

// Context returns a context cancelled after DefaultTimeout or at test end.
func Context(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	t.Cleanup(cancel)
	return ctx
}

// NewGroup starts an event loop group that is shut down when the test ends.
func NewGroup(t testing.TB, n int) *channel.EventLoopGroup {
	t.Helper()
	g := channel.NewEventLoopGroup(n, NewLogger(t))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		if err := g.Shutdown(ctx); err != nil {
			t.Errorf("shutdown event loop group: %v", err)
		}
	})
	return g
}

// Await waits for f and fails the test if it failed.
func Await(t testing.TB, f *channel.Future) {
	t.Helper()
	if err := f.Await(Context(t)); err != nil {
		t.Fatalf("await: %v", err)
	}
}

// TestServer is a TCP server channel bound to a loopback port.
type TestServer struct {
	Group   *channel.EventLoopGroup
	Channel *channel.Channel
	Addr    string
}

// Cleanup closes the server channel. Accepted channels close with the group.
func (ts *TestServer) Cleanup() {
	if ts.Channel != nil {
		_ = ts.Channel.Close().Await(context.Background())
	}
}

// StartTestServer binds a server on 127.0.0.1:0 whose accepted channels are
// set up by init.
func StartTestServer(t testing.TB, init func(ch *channel.Channel) error) *TestServer {
	t.Helper()

	logger := NewLogger(t)
	g := NewGroup(t, 2)
	srv := transport.NewServer(transport.ServerConfig{
		ChildGroup:       g,
		ChildInitializer: channel.NewInitializer(init),
		Logger:           logger,
	})
	ch := channel.New(srv, logger)
	Await(t, g.Register(ch))
	Await(t, ch.Bind("127.0.0.1:0"))

	ts := &TestServer{Group: g, Channel: ch, Addr: ch.LocalAddr().String()}
	t.Cleanup(ts.Cleanup)
	return ts
}

// Connect opens a client channel to addr on g, set up by init.
func Connect(t testing.TB, g *channel.EventLoopGroup, addr string, init func(ch *channel.Channel) error) *channel.Channel {
	t.Helper()

	logger := NewLogger(t)
	ch := channel.New(transport.NewSocket(logger), logger)
	if err := ch.Pipeline().AddLast("init", channel.NewInitializer(init)); err != nil {
		t.Fatalf("add initializer: %v", err)
	}
	Await(t, g.Register(ch))
	Await(t, ch.Connect(Context(t), addr, ""))
	t.Cleanup(func() { _ = ch.Close().Await(context.Background()) })
	return ch
}

// Collector is a sharable inbound handler that hands every message it reads
// to the test goroutine.
type Collector struct {
	C chan any
}

func NewCollector() *Collector {
	return &Collector{C: make(chan any, 1024)}
}

func (c *Collector) Handler() channel.Handler {
	return channel.InboundFunc(func(_ *channel.Context, msg any) error {
		c.C <- msg
		return nil
	})
}

// Next returns the next collected message or fails the test after DefaultTimeout.
func (c *Collector) Next(t testing.TB) any {
	t.Helper()
	select {
	case m := <-c.C:
		return m
	case <-time.After(DefaultTimeout):
		t.Fatalf("no message within %s", DefaultTimeout)
		return nil
	}
}

// NextBytes collects []byte messages until n bytes have arrived. Use it where
// TCP may split or coalesce writes.
func (c *Collector) NextBytes(t testing.TB, n int) []byte {
	t.Helper()
	var out []byte
	for len(out) < n {
		p, ok := c.Next(t).([]byte)
		if !ok {
			t.Fatalf("collected a non-byte message")
		}
		out = append(out, p...)
	}
	return out
}
