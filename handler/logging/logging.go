// Package logging provides a pipeline handler that logs every event passing
// through it.
package logging

import (
	"fmt"

	"github.com/mohitkumar/mnet/buffer"
	"github.com/mohitkumar/mnet/channel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Handler logs inbound events and outbound requests, then passes them on
// unchanged. It keeps no per-channel state and may be shared.
type Handler struct {
	logger *zap.Logger
	level  zapcore.Level
}

func New(logger *zap.Logger, level zapcore.Level) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger, level: level}
}

func (*Handler) Sharable() {}

func (h *Handler) log(ctx *channel.Context, event string, fields ...zap.Field) {
	if ce := h.logger.Check(h.level, event); ce != nil {
		ce.Write(append(fields, zap.Stringer("channel", ctx.Channel()))...)
	}
}

func describe(msg any) zap.Field {
	switch m := msg.(type) {
	case []byte:
		return zap.Int("bytes", len(m))
	case *buffer.Buffer:
		return zap.Int("bytes", m.ReadableBytes())
	case string:
		return zap.Int("bytes", len(m))
	default:
		return zap.String("type", fmt.Sprintf("%T", msg))
	}
}

func (h *Handler) ChannelRegistered(ctx *channel.Context) error {
	h.log(ctx, "REGISTERED")
	ctx.FireChannelRegistered()
	return nil
}

func (h *Handler) ChannelActive(ctx *channel.Context) error {
	h.log(ctx, "ACTIVE", zap.Stringer("remote", addr{ctx.Channel()}))
	ctx.FireChannelActive()
	return nil
}

func (h *Handler) ChannelRead(ctx *channel.Context, msg any) error {
	h.log(ctx, "READ", describe(msg))
	ctx.FireChannelRead(msg)
	return nil
}

func (h *Handler) ChannelReadComplete(ctx *channel.Context) error {
	ctx.FireChannelReadComplete()
	return nil
}

func (h *Handler) ChannelInactive(ctx *channel.Context) error {
	h.log(ctx, "INACTIVE")
	ctx.FireChannelInactive()
	return nil
}

func (h *Handler) ChannelUnregistered(ctx *channel.Context) error {
	h.log(ctx, "UNREGISTERED")
	ctx.FireChannelUnregistered()
	return nil
}

func (h *Handler) UserEventTriggered(ctx *channel.Context, evt any) error {
	h.log(ctx, "USER_EVENT", zap.Any("event", evt))
	ctx.FireUserEventTriggered(evt)
	return nil
}

func (h *Handler) ExceptionCaught(ctx *channel.Context, err error) error {
	h.log(ctx, "EXCEPTION", zap.Error(err))
	ctx.FireExceptionCaught(err)
	return nil
}

func (h *Handler) Write(ctx *channel.Context, msg any) error {
	h.log(ctx, "WRITE", describe(msg))
	return ctx.Write(msg)
}

func (h *Handler) Flush(ctx *channel.Context) error {
	h.log(ctx, "FLUSH")
	return ctx.Flush()
}

func (h *Handler) Close(ctx *channel.Context) error {
	h.log(ctx, "CLOSE")
	return ctx.Close()
}

type addr struct{ ch *channel.Channel }

func (a addr) String() string {
	if ra := a.ch.RemoteAddr(); ra != nil {
		return ra.String()
	}
	return "-"
}
