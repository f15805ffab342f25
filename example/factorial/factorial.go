// Package factorial implements a client that streams the numbers 1..N to a
// server, which replies with the running factorial after each one.
//
// Numbers travel as magic-length frames: 'F', a 4-byte big-endian length and
// the unsigned big-endian magnitude. For example, {'F', 0, 0, 0, 1, 42} is 42.
package factorial

import (
	"context"
	"math/big"

	"github.com/mohitkumar/mnet/buffer"
	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/codec"
	"github.com/mohitkumar/mnet/errs"
	"go.uber.org/zap"
)

const Magic = 'F'

// NumberDecoder decodes magic-length frames into *big.Int.
type NumberDecoder struct {
	frames *codec.MagicLengthDecoder
}

func NewNumberDecoder(maxFrameLength int) *codec.FrameDecoder {
	return codec.NewFrameDecoder(&NumberDecoder{frames: codec.NewMagicLengthDecoder(Magic, maxFrameLength)})
}

func (d *NumberDecoder) Decode(ctx *channel.Context, in *buffer.Buffer) (any, error) {
	frame, err := d.frames.Decode(ctx, in)
	if frame == nil || err != nil {
		return frame, err
	}
	return new(big.Int).SetBytes(frame.([]byte)), nil
}

// NumberEncoder encodes *big.Int and integer values as magic-length frames.
type NumberEncoder struct {
	frames *codec.MagicLengthEncoder
}

func NewNumberEncoder() *codec.EncoderHandler {
	return codec.NewEncoderHandler(&NumberEncoder{frames: codec.NewMagicLengthEncoder(Magic)})
}

func (e *NumberEncoder) Encode(ctx *channel.Context, msg any) (any, error) {
	var n *big.Int
	switch m := msg.(type) {
	case *big.Int:
		n = m
	case int:
		n = big.NewInt(int64(m))
	case int64:
		n = big.NewInt(m)
	default:
		return msg, nil
	}
	if n.Sign() < 0 {
		return nil, errs.ErrInvalidArgumentf("negative number %s", n)
	}
	return e.frames.Encode(ctx, n.Bytes())
}

// ServerHandler keeps the running factorial of one connection, so every
// connection needs its own instance.
type ServerHandler struct {
	channel.InboundHandlerAdapter

	logger         *zap.Logger
	lastMultiplier *big.Int
	factorial      *big.Int
}

func NewServerHandler(logger *zap.Logger) *ServerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServerHandler{logger: logger, lastMultiplier: big.NewInt(1), factorial: big.NewInt(1)}
}

func (h *ServerHandler) ChannelRead(ctx *channel.Context, msg any) error {
	n, ok := msg.(*big.Int)
	if !ok {
		return errs.ErrUnsupportedMessagef(msg)
	}
	h.lastMultiplier = n
	h.factorial.Mul(h.factorial, n)
	return ctx.WriteAndFlush(new(big.Int).Set(h.factorial))
}

func (h *ServerHandler) ChannelInactive(ctx *channel.Context) error {
	h.logger.Info("connection closed",
		zap.Stringer("multiplier", h.lastMultiplier),
		zap.Stringer("factorial", h.factorial))
	ctx.FireChannelInactive()
	return nil
}

func (h *ServerHandler) ExceptionCaught(ctx *channel.Context, err error) error {
	h.logger.Warn("unexpected exception from downstream", zap.Error(err))
	return ctx.Close()
}

// ClientHandler sends 1..count once active and closes the channel after the
// last answer, which is count!.
type ClientHandler struct {
	channel.InboundHandlerAdapter

	logger   *zap.Logger
	count    int
	received int
	answer   chan *big.Int
}

func NewClientHandler(count int, logger *zap.Logger) (*ClientHandler, error) {
	if count <= 0 {
		return nil, errs.ErrInvalidArgumentf("count: %d", count)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientHandler{logger: logger, count: count, answer: make(chan *big.Int, 1)}, nil
}

func (h *ClientHandler) ChannelActive(ctx *channel.Context) error {
	for i := 1; i <= h.count; i++ {
		if err := ctx.Write(big.NewInt(int64(i))); err != nil {
			return err
		}
	}
	if err := ctx.Flush(); err != nil {
		return err
	}
	ctx.FireChannelActive()
	return nil
}

func (h *ClientHandler) ChannelRead(ctx *channel.Context, msg any) error {
	n, ok := msg.(*big.Int)
	if !ok {
		return errs.ErrUnsupportedMessagef(msg)
	}
	h.received++
	if h.received == h.count {
		h.answer <- n
		return ctx.Close()
	}
	return nil
}

func (h *ClientHandler) ExceptionCaught(ctx *channel.Context, err error) error {
	h.logger.Warn("unexpected exception from downstream", zap.Error(err))
	return ctx.Close()
}

// Factorial waits for the final answer.
func (h *ClientHandler) Factorial(ctx context.Context) (*big.Int, error) {
	select {
	case n := <-h.answer:
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InitPipeline installs the codec followed by handler.
func InitPipeline(ch *channel.Channel, maxFrameLength int, handler channel.Handler) error {
	p := ch.Pipeline()
	if err := p.AddLast("decoder", NewNumberDecoder(maxFrameLength)); err != nil {
		return err
	}
	if err := p.AddLast("encoder", NewNumberEncoder()); err != nil {
		return err
	}
	return p.AddLast("handler", handler)
}
