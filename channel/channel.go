package channel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mohitkumar/mnet/attr"
	"github.com/mohitkumar/mnet/buffer"
	"github.com/mohitkumar/mnet/errs"
	"go.uber.org/zap"
)

// State is a channel's position in its lifecycle:
// Unregistered -> Registered -> Active -> Inactive -> Closed.
type State int32

const (
	StateUnregistered State = iota
	StateRegistered
	StateActive
	StateInactive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "UNREGISTERED"
	case StateRegistered:
		return "REGISTERED"
	case StateActive:
		return "ACTIVE"
	case StateInactive:
		return "INACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Option is a transport configuration key.
type Option string

const (
	OptionReadBufferSize Option = "read_buffer_size"
	OptionTCPNoDelay     Option = "tcp_no_delay"
	OptionKeepAlive      Option = "keep_alive"
	OptionWriteTimeout   Option = "write_timeout"
	OptionLinger         Option = "linger"
)

// Transport moves bytes for a channel. Implementations live in the transport
// package; EmbeddedChannel carries an in-memory one.
type Transport interface {
	Bind(ch *Channel, addr string) error
	Connect(ctx context.Context, ch *Channel, remote, local string) error
	// StartReading begins delivering inbound data via ch.Receive.
	StartReading(ch *Channel)
	Write(p []byte) error
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	// SetOption applies opt and reports whether the transport recognises it.
	SetOption(opt Option, value any) (bool, error)
}

// Channel is one connection (or listener) and its pipeline. Every channel is
// bound to a single event loop once registered; all pipeline dispatch for the
// channel runs on that loop.
type Channel struct {
	id        string
	parent    *Channel
	transport Transport
	pipeline  *Pipeline
	attrs     *attr.Map
	logger    *zap.Logger

	loop   atomic.Pointer[EventLoop]
	inline bool
	state  atomic.Int32

	optMu   sync.Mutex
	options map[Option]any

	// touched only on the event loop
	pending [][]byte
	closing bool

	closeFuture *Future
}

func New(t Transport, logger *zap.Logger) *Channel {
	return NewChild(nil, t, logger)
}

// NewChild returns a channel accepted by parent.
func NewChild(parent *Channel, t Transport, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	ch := &Channel{
		id:        id,
		parent:    parent,
		transport: t,
		attrs:     attr.NewMap(),
		options:   make(map[Option]any),
		logger:    logger.With(zap.String("channel", id[:8])),
	}
	ch.pipeline = newPipeline(ch)
	ch.closeFuture = NewFuture(ch)
	return ch
}

func (c *Channel) ID() string            { return c.id }
func (c *Channel) Parent() *Channel      { return c.parent }
func (c *Channel) Pipeline() *Pipeline   { return c.pipeline }
func (c *Channel) Attrs() *attr.Map      { return c.attrs }
func (c *Channel) Logger() *zap.Logger   { return c.logger }
func (c *Channel) EventLoop() *EventLoop { return c.loop.Load() }
func (c *Channel) State() State          { return State(c.state.Load()) }
func (c *Channel) CloseFuture() *Future  { return c.closeFuture }
func (c *Channel) LocalAddr() net.Addr   { return c.transport.LocalAddr() }
func (c *Channel) RemoteAddr() net.Addr  { return c.transport.RemoteAddr() }
func (c *Channel) Transport() Transport  { return c.transport }
func (c *Channel) IsOpen() bool          { return c.State() != StateClosed }
func (c *Channel) IsActive() bool        { return c.State() == StateActive }

func (c *Channel) IsRegistered() bool {
	s := c.State()
	return s == StateRegistered || s == StateActive || s == StateInactive
}

func (c *Channel) String() string {
	return fmt.Sprintf("[id: %s, state: %s]", c.id[:8], c.State())
}

func (c *Channel) setState(s State) { c.state.Store(int32(s)) }

// SetOption records opt and applies it to the transport. Unknown options are
// reported with ok == false.
func (c *Channel) SetOption(opt Option, value any) (bool, error) {
	c.optMu.Lock()
	c.options[opt] = value
	c.optMu.Unlock()
	return c.transport.SetOption(opt, value)
}

func (c *Channel) Option(opt Option) (any, bool) {
	c.optMu.Lock()
	defer c.optMu.Unlock()
	v, ok := c.options[opt]
	return v, ok
}

// execute runs task on the channel's event loop.
func (c *Channel) execute(task func()) error {
	if c.inline {
		task()
		return nil
	}
	l := c.loop.Load()
	if l == nil {
		return errs.ErrIllegalStatef("channel %s not registered", c.id[:8])
	}
	return l.Execute(task)
}

func (c *Channel) submit(fn func() error) *Future {
	f := NewFuture(c)
	if err := c.execute(func() { f.complete(fn()) }); err != nil {
		f.Fail(err)
	}
	return f
}

// Write queues msg through the pipeline from the tail. Nothing reaches the
// transport until Flush.
func (c *Channel) Write(msg any) *Future {
	return c.submit(func() error { return c.pipeline.Write(msg) })
}

func (c *Channel) Flush() *Future {
	return c.submit(c.pipeline.Flush)
}

func (c *Channel) WriteAndFlush(msg any) *Future {
	return c.submit(func() error { return c.pipeline.WriteAndFlush(msg) })
}

func (c *Channel) Close() *Future {
	if c.inline || c.loop.Load() != nil {
		return c.submit(c.pipeline.Close)
	}
	// never registered: nothing runs on a loop yet
	f := NewFuture(c)
	f.complete(c.doClose())
	return f
}

// Bind binds the channel's transport to addr and activates the channel.
func (c *Channel) Bind(addr string) *Future {
	return c.submit(func() error {
		switch st := c.State(); st {
		case StateRegistered:
		case StateClosed:
			return fmt.Errorf("bind %s: %w", addr, errs.ErrChannelClosed)
		default:
			return errs.ErrIllegalStatef("bind on channel in state %s", st)
		}
		if err := c.transport.Bind(c, addr); err != nil {
			return errs.ErrBind(addr, err)
		}
		c.activate()
		return nil
	})
}

// Connect dials remote (optionally from local) off the event loop and
// activates the channel on success.
func (c *Channel) Connect(ctx context.Context, remote, local string) *Future {
	f := NewFuture(c)
	if c.State() != StateRegistered {
		f.Fail(errs.ErrIllegalStatef("connect on channel in state %s", c.State()))
		return f
	}
	go func() {
		err := c.transport.Connect(ctx, c, remote, local)
		if xerr := c.execute(func() {
			if err != nil {
				f.Fail(errs.ErrConnect(remote, err))
				return
			}
			c.activate()
			f.Succeed()
		}); xerr != nil {
			f.Fail(xerr)
		}
	}()
	return f
}

// Receive hands a fragment read by the transport to the pipeline. The
// transport must not reuse p afterwards.
func (c *Channel) Receive(p []byte) {
	if err := c.execute(func() {
		c.pipeline.FireChannelRead(p)
		c.pipeline.FireChannelReadComplete()
	}); err != nil {
		c.logger.Debug("dropped inbound data", zap.Int("bytes", len(p)), zap.Error(err))
	}
}

// TransportFailed reports a read-side failure. A nil err means orderly EOF.
// The channel is closed either way.
func (c *Channel) TransportFailed(err error) {
	_ = c.execute(func() {
		if err != nil && c.IsOpen() && !c.closing {
			c.pipeline.FireExceptionCaught(err)
		}
		_ = c.doClose()
	})
}

// register is run on the event loop by EventLoop.Register.
func (c *Channel) register() error {
	if c.State() != StateUnregistered {
		return errs.ErrIllegalStatef("channel %s already registered", c.id[:8])
	}
	c.setState(StateRegistered)
	c.pipeline.FireChannelRegistered()
	return nil
}

// Activate marks a connected channel active and starts reading. Transports
// call it for accepted children from the child's event loop.
func (c *Channel) Activate() error {
	return c.execute(c.activate)
}

func (c *Channel) activate() {
	if c.State() != StateRegistered {
		return
	}
	c.setState(StateActive)
	c.pipeline.FireChannelActive()
	if c.State() == StateActive {
		c.transport.StartReading(c)
	}
}

func (c *Channel) enqueue(msg any) error {
	if c.closing || !c.IsOpen() {
		return errs.ErrChannelClosed
	}
	switch m := msg.(type) {
	case []byte:
		c.pending = append(c.pending, m)
	case string:
		c.pending = append(c.pending, []byte(m))
	case *buffer.Buffer:
		p, _ := m.ReadBytes(m.ReadableBytes())
		c.pending = append(c.pending, p)
	default:
		return errs.ErrUnsupportedMessagef(msg)
	}
	return nil
}

// flush writes pending messages to the transport in submission order.
func (c *Channel) flush() error {
	if c.closing || !c.IsOpen() {
		return errs.ErrChannelClosed
	}
	for len(c.pending) > 0 {
		p := c.pending[0]
		c.pending[0] = nil
		c.pending = c.pending[1:]
		if err := c.transport.Write(p); err != nil {
			_ = c.doClose()
			return err
		}
	}
	c.pending = nil
	return nil
}

func (c *Channel) doClose() error {
	st := c.State()
	if st == StateClosed || c.closing {
		return nil
	}
	c.closing = true
	err := c.transport.Close()
	c.pending = nil
	if st == StateActive {
		c.setState(StateInactive)
		c.pipeline.FireChannelInactive()
	}
	if st != StateUnregistered {
		c.pipeline.FireChannelUnregistered()
	}
	c.pipeline.teardown()
	c.setState(StateClosed)
	if l := c.loop.Load(); l != nil {
		l.forget(c)
	}
	c.closeFuture.complete(err)
	return err
}
