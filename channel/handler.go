package channel

import "sync/atomic"

// Handler is any value that can be added to a Pipeline. What it observes is
// decided by which of InboundHandler, OutboundHandler, AddedHandler and
// RemovedHandler it implements.
type Handler interface{}

// InboundHandler observes events flowing from the transport toward the application.
// Returning an error delivers it to the same handler's ExceptionCaught.
type InboundHandler interface {
	ChannelRegistered(ctx *Context) error
	ChannelActive(ctx *Context) error
	ChannelRead(ctx *Context, msg any) error
	ChannelReadComplete(ctx *Context) error
	ChannelInactive(ctx *Context) error
	ChannelUnregistered(ctx *Context) error
	UserEventTriggered(ctx *Context, evt any) error
	ExceptionCaught(ctx *Context, err error) error
}

// OutboundHandler observes requests flowing from the application toward the transport.
type OutboundHandler interface {
	Write(ctx *Context, msg any) error
	Flush(ctx *Context) error
	Close(ctx *Context) error
}

type AddedHandler interface {
	HandlerAdded(ctx *Context) error
}

type RemovedHandler interface {
	HandlerRemoved(ctx *Context) error
}

// Sharable marks a stateless handler that may sit in several pipelines at once.
type Sharable interface {
	Sharable()
}

// owned is satisfied by handlers embedding one of the adapters. A handler
// holding per-connection state belongs to exactly one pipeline.
type owned interface {
	claim(p *Pipeline) bool
	release(p *Pipeline)
}

type ownership struct {
	owner atomic.Pointer[Pipeline]
}

func (o *ownership) claim(p *Pipeline) bool { return o.owner.CompareAndSwap(nil, p) }

func (o *ownership) release(p *Pipeline) { o.owner.CompareAndSwap(p, nil) }

// InboundHandlerAdapter forwards every inbound event to the next handler.
// Embed it and override the callbacks of interest.
type InboundHandlerAdapter struct {
	ownership
}

func (*InboundHandlerAdapter) ChannelRegistered(ctx *Context) error {
	ctx.FireChannelRegistered()
	return nil
}

func (*InboundHandlerAdapter) ChannelActive(ctx *Context) error {
	ctx.FireChannelActive()
	return nil
}

func (*InboundHandlerAdapter) ChannelRead(ctx *Context, msg any) error {
	ctx.FireChannelRead(msg)
	return nil
}

func (*InboundHandlerAdapter) ChannelReadComplete(ctx *Context) error {
	ctx.FireChannelReadComplete()
	return nil
}

func (*InboundHandlerAdapter) ChannelInactive(ctx *Context) error {
	ctx.FireChannelInactive()
	return nil
}

func (*InboundHandlerAdapter) ChannelUnregistered(ctx *Context) error {
	ctx.FireChannelUnregistered()
	return nil
}

func (*InboundHandlerAdapter) UserEventTriggered(ctx *Context, evt any) error {
	ctx.FireUserEventTriggered(evt)
	return nil
}

func (*InboundHandlerAdapter) ExceptionCaught(ctx *Context, err error) error {
	ctx.FireExceptionCaught(err)
	return nil
}

// OutboundHandlerAdapter forwards every outbound request to the previous handler.
type OutboundHandlerAdapter struct {
	ownership
}

func (*OutboundHandlerAdapter) Write(ctx *Context, msg any) error { return ctx.Write(msg) }

func (*OutboundHandlerAdapter) Flush(ctx *Context) error { return ctx.Flush() }

func (*OutboundHandlerAdapter) Close(ctx *Context) error { return ctx.Close() }

// DuplexHandlerAdapter forwards events in both directions.
type DuplexHandlerAdapter struct {
	InboundHandlerAdapter
	OutboundHandlerAdapter
	ownership
}

// InboundFunc adapts a read callback into a sharable inbound handler.
type InboundFunc func(ctx *Context, msg any) error

func (f InboundFunc) ChannelRead(ctx *Context, msg any) error { return f(ctx, msg) }

func (InboundFunc) Sharable() {}

func (InboundFunc) ChannelRegistered(ctx *Context) error {
	ctx.FireChannelRegistered()
	return nil
}

func (InboundFunc) ChannelActive(ctx *Context) error {
	ctx.FireChannelActive()
	return nil
}

func (InboundFunc) ChannelReadComplete(ctx *Context) error {
	ctx.FireChannelReadComplete()
	return nil
}

func (InboundFunc) ChannelInactive(ctx *Context) error {
	ctx.FireChannelInactive()
	return nil
}

func (InboundFunc) ChannelUnregistered(ctx *Context) error {
	ctx.FireChannelUnregistered()
	return nil
}

func (InboundFunc) UserEventTriggered(ctx *Context, evt any) error {
	ctx.FireUserEventTriggered(evt)
	return nil
}

func (InboundFunc) ExceptionCaught(ctx *Context, err error) error {
	ctx.FireExceptionCaught(err)
	return nil
}
