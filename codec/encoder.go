package codec

import (
	"github.com/mohitkumar/mnet/buffer"
	"github.com/mohitkumar/mnet/channel"
)

// Encoder converts an outbound message into the message passed to the next
// outbound handler. Messages it does not understand are returned unchanged.
type Encoder interface {
	Encode(ctx *channel.Context, msg any) (any, error)
}

type EncoderFunc func(ctx *channel.Context, msg any) (any, error)

func (f EncoderFunc) Encode(ctx *channel.Context, msg any) (any, error) { return f(ctx, msg) }

// EncoderHandler runs an Encoder on every write. Encoders must not keep
// per-connection state, so one EncoderHandler can serve many pipelines.
type EncoderHandler struct {
	channel.OutboundHandlerAdapter
	encoder Encoder
}

func NewEncoderHandler(e Encoder) *EncoderHandler {
	return &EncoderHandler{encoder: e}
}

func (*EncoderHandler) Sharable() {}

func (h *EncoderHandler) Write(ctx *channel.Context, msg any) error {
	out, err := h.encoder.Encode(ctx, msg)
	if err != nil {
		return err
	}
	return ctx.Write(out)
}

func asBytes(msg any) ([]byte, bool) {
	switch m := msg.(type) {
	case []byte:
		return m, true
	case string:
		return []byte(m), true
	case *buffer.Buffer:
		p, _ := m.ReadBytes(m.ReadableBytes())
		return p, true
	default:
		return nil, false
	}
}
