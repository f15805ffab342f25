// Package codec turns a stream of byte fragments into discrete frames and
// back. FrameDecoder owns the cumulation loop; a Decoder strategy decides
// where one frame ends.
package codec

import (
	"github.com/mohitkumar/mnet/buffer"
	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
	"go.uber.org/zap"
)

// Decoder extracts at most one frame from the readable bytes of in.
//
// It returns (nil, nil) when more input is needed. A decoder that returns a
// frame must have advanced in's reader cursor. On malformed input it should
// reset the cursor to where it started and return an error.
type Decoder interface {
	Decode(ctx *channel.Context, in *buffer.Buffer) (any, error)
}

// LastDecoder is implemented by decoders that can make sense of a trailing
// partial frame when the channel goes inactive.
type LastDecoder interface {
	DecodeLast(ctx *channel.Context, in *buffer.Buffer) (any, error)
}

type DecoderFunc func(ctx *channel.Context, in *buffer.Buffer) (any, error)

func (f DecoderFunc) Decode(ctx *channel.Context, in *buffer.Buffer) (any, error) { return f(ctx, in) }

type Option func(*FrameDecoder)

// WithMaxCumulation caps the number of undecoded bytes held for one channel.
// When the cap would be exceeded the cumulation is dropped and a
// FrameTooLongError is raised. Zero means no cap.
func WithMaxCumulation(n int) Option {
	return func(d *FrameDecoder) { d.maxCumulation = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *FrameDecoder) { d.logger = logger }
}

// FrameDecoder accumulates inbound bytes and runs its Decoder over them until
// no further frame can be produced, forwarding every frame downstream in
// order. It holds per-connection state and belongs to a single pipeline.
type FrameDecoder struct {
	channel.InboundHandlerAdapter

	decoder       Decoder
	cumulation    *buffer.Buffer
	maxCumulation int
	logger        *zap.Logger
	decoding      bool
}

func NewFrameDecoder(decoder Decoder, opts ...Option) *FrameDecoder {
	d := &FrameDecoder{decoder: decoder}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Cumulated returns the number of bytes waiting for a complete frame.
func (d *FrameDecoder) Cumulated() int {
	if d.cumulation == nil {
		return 0
	}
	return d.cumulation.ReadableBytes()
}

func (d *FrameDecoder) ChannelRead(ctx *channel.Context, msg any) error {
	var data []byte
	switch m := msg.(type) {
	case []byte:
		data = m
	case *buffer.Buffer:
		data = m.Bytes()
		defer func() { _ = m.Skip(m.ReadableBytes()) }()
	default:
		ctx.FireChannelRead(msg)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	if d.cumulation == nil {
		d.cumulation = buffer.New(len(data))
	}
	if d.maxCumulation > 0 && d.cumulation.ReadableBytes()+len(data) > d.maxCumulation {
		held := d.cumulation.ReadableBytes() + len(data)
		d.cumulation.Clear()
		d.logger.Warn("dropping cumulation over limit",
			zap.Int("bytes", held), zap.Int("max", d.maxCumulation))
		ctx.FireExceptionCaught(errs.NewFrameTooLong(int64(held), d.maxCumulation))
		return nil
	}
	if _, err := d.cumulation.Write(data); err != nil {
		return err
	}
	d.callDecode(ctx, false)
	return nil
}

func (d *FrameDecoder) ChannelInactive(ctx *channel.Context) error {
	if d.cumulation != nil && d.cumulation.IsReadable() {
		d.callDecode(ctx, true)
	}
	d.cumulation = nil
	ctx.FireChannelInactive()
	return nil
}

// HandlerRemoved hands any undecoded bytes to the next handler. While a
// decode pass is running the pass itself forwards them once it notices the
// removal, so that they follow the frame being dispatched.
func (d *FrameDecoder) HandlerRemoved(ctx *channel.Context) error {
	if d.decoding {
		return nil
	}
	d.forwardRemainder(ctx)
	return nil
}

func (d *FrameDecoder) forwardRemainder(ctx *channel.Context) {
	in := d.cumulation
	d.cumulation = nil
	if in == nil || !in.IsReadable() {
		return
	}
	rest, _ := in.ReadBytes(in.ReadableBytes())
	ctx.FireChannelRead(rest)
}

func (d *FrameDecoder) decode(ctx *channel.Context, in *buffer.Buffer, last bool) (any, error) {
	if last {
		if ld, ok := d.decoder.(LastDecoder); ok {
			return ld.DecodeLast(ctx, in)
		}
	}
	return d.decoder.Decode(ctx, in)
}

func (d *FrameDecoder) callDecode(ctx *channel.Context, last bool) {
	in := d.cumulation
	d.decoding = true
	defer func() { d.decoding = false }()

	for in.IsReadable() {
		before := in.ReadableBytes()
		frame, err := d.decode(ctx, in, last)
		consumed := in.ReadableBytes() != before

		if err != nil {
			in.DiscardReadBytes()
			ctx.FireExceptionCaught(err)
			if consumed && !ctx.IsRemoved() {
				continue
			}
			break
		}
		if frame == nil {
			if consumed {
				continue
			}
			break
		}
		if !consumed {
			ctx.FireExceptionCaught(errs.ErrIllegalStatef("%T returned a frame without consuming input", d.decoder))
			break
		}
		ctx.FireChannelRead(frame)
		in.DiscardReadBytes()
		if ctx.IsRemoved() {
			break
		}
	}

	if ctx.IsRemoved() {
		d.decoding = false
		d.forwardRemainder(ctx)
		return
	}
	if !in.IsReadable() {
		in.Clear()
	}
}
