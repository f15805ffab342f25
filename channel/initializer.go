package channel

import "go.uber.org/zap"

// Initializer configures a freshly registered channel's pipeline and then
// removes itself. One Initializer may serve many channels; the function must
// build new handler instances for each call.
type Initializer struct {
	init func(ch *Channel) error
}

func NewInitializer(init func(ch *Channel) error) *Initializer {
	return &Initializer{init: init}
}

func (*Initializer) Sharable() {}

func (i *Initializer) ChannelRegistered(ctx *Context) error {
	ch := ctx.Channel()
	err := i.init(ch)
	if rerr := ctx.Pipeline().RemoveHandler(i); rerr != nil {
		ctx.Logger().Debug("initializer already removed", zap.Error(rerr))
	}
	if err != nil {
		ctx.Logger().Warn("failed to initialize channel", zap.Error(err))
		ctx.FireExceptionCaught(ctx.wrap(err))
		_ = ch.doClose()
		return nil
	}
	ctx.FireChannelRegistered()
	return nil
}

func (*Initializer) ChannelActive(ctx *Context) error {
	ctx.FireChannelActive()
	return nil
}

func (*Initializer) ChannelRead(ctx *Context, msg any) error {
	ctx.FireChannelRead(msg)
	return nil
}

func (*Initializer) ChannelReadComplete(ctx *Context) error {
	ctx.FireChannelReadComplete()
	return nil
}

func (*Initializer) ChannelInactive(ctx *Context) error {
	ctx.FireChannelInactive()
	return nil
}

func (*Initializer) ChannelUnregistered(ctx *Context) error {
	ctx.FireChannelUnregistered()
	return nil
}

func (*Initializer) UserEventTriggered(ctx *Context, evt any) error {
	ctx.FireUserEventTriggered(evt)
	return nil
}

func (*Initializer) ExceptionCaught(ctx *Context, err error) error {
	ctx.FireExceptionCaught(err)
	return nil
}
