// Package echo implements a ping-pong client and an echo server.
package echo

import (
	"sync/atomic"

	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
	"go.uber.org/zap"
)

// ClientHandler starts the ping-pong traffic by sending a first message on
// activation, then echoes back whatever the server returns.
type ClientHandler struct {
	channel.InboundHandlerAdapter

	firstMessage []byte
	logger       *zap.Logger
	received     atomic.Int64
}

func NewClientHandler(firstMessageSize int, logger *zap.Logger) (*ClientHandler, error) {
	if firstMessageSize <= 0 {
		return nil, errs.ErrInvalidArgumentf("firstMessageSize: %d", firstMessageSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	msg := make([]byte, firstMessageSize)
	for i := range msg {
		msg[i] = byte(i)
	}
	return &ClientHandler{firstMessage: msg, logger: logger}, nil
}

// Received reports how many bytes have come back from the server so far.
func (h *ClientHandler) Received() int64 { return h.received.Load() }

func (h *ClientHandler) ChannelActive(ctx *channel.Context) error {
	if err := ctx.WriteAndFlush(append([]byte(nil), h.firstMessage...)); err != nil {
		return err
	}
	ctx.FireChannelActive()
	return nil
}

func (h *ClientHandler) ChannelRead(ctx *channel.Context, msg any) error {
	p, ok := msg.([]byte)
	if !ok {
		return errs.ErrUnsupportedMessagef(msg)
	}
	h.received.Add(int64(len(p)))
	return ctx.WriteAndFlush(p)
}

func (h *ClientHandler) ExceptionCaught(ctx *channel.Context, err error) error {
	h.logger.Warn("unexpected exception from downstream", zap.Error(err))
	return ctx.Close()
}

// ServerHandler writes every byte it reads back to the peer.
type ServerHandler struct {
	channel.InboundHandlerAdapter
	logger *zap.Logger
}

func NewServerHandler(logger *zap.Logger) *ServerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServerHandler{logger: logger}
}

func (*ServerHandler) Sharable() {}

func (h *ServerHandler) ChannelRead(ctx *channel.Context, msg any) error {
	return ctx.WriteAndFlush(msg)
}

func (h *ServerHandler) ExceptionCaught(ctx *channel.Context, err error) error {
	h.logger.Warn("unexpected exception from downstream", zap.Error(err))
	return ctx.Close()
}
