package channel

import (
	"errors"
	"fmt"

	"github.com/mohitkumar/mnet/errs"
	"go.uber.org/zap"
)

// HandlerError is the failure delivered to ExceptionCaught. Handler names the
// pipeline entry whose callback failed.
type HandlerError struct {
	Handler string
	Err     error
}

func (e *HandlerError) Error() string { return e.Handler + ": " + e.Err.Error() }

func (e *HandlerError) Unwrap() error { return e.Err }

// Context binds a handler to its position in a pipeline. It is handed to
// every callback and is used to pass events on to the neighbouring handlers.
// All methods must be called from the channel's event loop.
type Context struct {
	name     string
	handler  Handler
	inbound  InboundHandler
	outbound OutboundHandler
	pipeline *Pipeline
	prev     *Context
	next     *Context
	removed  bool
}

func newContext(p *Pipeline, name string, h Handler) *Context {
	c := &Context{name: name, handler: h, pipeline: p}
	c.inbound, _ = h.(InboundHandler)
	c.outbound, _ = h.(OutboundHandler)
	return c
}

func (c *Context) Name() string        { return c.name }
func (c *Context) Handler() Handler    { return c.handler }
func (c *Context) Pipeline() *Pipeline { return c.pipeline }
func (c *Context) Channel() *Channel   { return c.pipeline.channel }
func (c *Context) Logger() *zap.Logger { return c.pipeline.logger }

// IsRemoved reports whether the handler has been taken out of the pipeline.
// Events fired from a removed context still reach its former neighbours.
func (c *Context) IsRemoved() bool { return c.removed }

func (c *Context) nextInbound() *Context {
	n := c.next
	for n != nil && n.inbound == nil {
		n = n.next
	}
	return n
}

func (c *Context) prevOutbound() *Context {
	p := c.prev
	for p != nil && p.outbound == nil {
		p = p.prev
	}
	return p
}

// Inbound propagation: each Fire method delivers the event to the next
// inbound handler after this one.

func (c *Context) FireChannelRegistered() {
	c.fireInbound(func(n *Context) error { return n.inbound.ChannelRegistered(n) })
}

func (c *Context) FireChannelActive() {
	c.fireInbound(func(n *Context) error { return n.inbound.ChannelActive(n) })
}

func (c *Context) FireChannelRead(msg any) {
	c.fireInbound(func(n *Context) error { return n.inbound.ChannelRead(n, msg) })
}

func (c *Context) FireChannelReadComplete() {
	c.fireInbound(func(n *Context) error { return n.inbound.ChannelReadComplete(n) })
}

func (c *Context) FireChannelInactive() {
	c.fireInbound(func(n *Context) error { return n.inbound.ChannelInactive(n) })
}

func (c *Context) FireChannelUnregistered() {
	c.fireInbound(func(n *Context) error { return n.inbound.ChannelUnregistered(n) })
}

func (c *Context) FireUserEventTriggered(evt any) {
	c.fireInbound(func(n *Context) error { return n.inbound.UserEventTriggered(n, evt) })
}

func (c *Context) FireExceptionCaught(err error) {
	if c.pipeline.terminated() {
		return
	}
	if n := c.nextInbound(); n != nil {
		n.invokeExceptionCaught(err)
	}
}

func (c *Context) fireInbound(invoke func(n *Context) error) {
	if c.pipeline.terminated() {
		return
	}
	n := c.nextInbound()
	if n == nil {
		return
	}
	if err := safeCall(func() error { return invoke(n) }); err != nil {
		n.invokeExceptionCaught(n.wrap(err))
	}
}

// invokeExceptionCaught delivers err to this context's own handler. A failure
// inside ExceptionCaught is logged rather than dispatched again.
func (c *Context) invokeExceptionCaught(err error) {
	if c.pipeline.terminated() {
		return
	}
	if c.inbound == nil {
		c.FireExceptionCaught(err)
		return
	}
	if cerr := safeCall(func() error { return c.inbound.ExceptionCaught(c, err) }); cerr != nil {
		c.pipeline.logger.Warn("exception caught handler failed",
			zap.String("handler", c.name), zap.Error(cerr), zap.NamedError("cause", err))
	}
}

func (c *Context) wrap(err error) error {
	var he *HandlerError
	if errors.As(err, &he) {
		return err
	}
	return &HandlerError{Handler: c.name, Err: err}
}

// Outbound propagation: each request goes to the previous outbound handler,
// ending at the head which hands it to the transport.

func (c *Context) Write(msg any) error {
	p := c.prevOutbound()
	if p == nil {
		return errs.ErrIllegalStatef("no outbound handler before %q", c.name)
	}
	return safeCall(func() error { return p.outbound.Write(p, msg) })
}

func (c *Context) Flush() error {
	p := c.prevOutbound()
	if p == nil {
		return errs.ErrIllegalStatef("no outbound handler before %q", c.name)
	}
	return safeCall(func() error { return p.outbound.Flush(p) })
}

func (c *Context) WriteAndFlush(msg any) error {
	if err := c.Write(msg); err != nil {
		return err
	}
	return c.Flush()
}

func (c *Context) Close() error {
	p := c.prevOutbound()
	if p == nil {
		return errs.ErrIllegalStatef("no outbound handler before %q", c.name)
	}
	return safeCall(func() error { return p.outbound.Close(p) })
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}
