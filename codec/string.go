package codec

import (
	"github.com/mohitkumar/mnet/buffer"
	"github.com/mohitkumar/mnet/channel"
)

// StringDecoder turns decoded frames into strings. Place it after a framing
// decoder; other messages pass through.
type StringDecoder struct {
	channel.InboundHandlerAdapter
}

func NewStringDecoder() *StringDecoder { return &StringDecoder{} }

func (*StringDecoder) Sharable() {}

func (*StringDecoder) ChannelRead(ctx *channel.Context, msg any) error {
	switch m := msg.(type) {
	case []byte:
		ctx.FireChannelRead(string(m))
	case *buffer.Buffer:
		p, _ := m.ReadBytes(m.ReadableBytes())
		ctx.FireChannelRead(string(p))
	default:
		ctx.FireChannelRead(msg)
	}
	return nil
}

// StringEncoder turns outbound strings into byte slices.
func StringEncoder() Encoder {
	return EncoderFunc(func(_ *channel.Context, msg any) (any, error) {
		if s, ok := msg.(string); ok {
			return []byte(s), nil
		}
		return msg, nil
	})
}
