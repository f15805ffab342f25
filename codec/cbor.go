package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
)

// CBORDecoder unmarshals each framed []byte into a T and forwards the value.
// Frames that are not valid CBOR for T are reported as malformed and dropped.
type CBORDecoder[T any] struct {
	channel.InboundHandlerAdapter
}

func NewCBORDecoder[T any]() *CBORDecoder[T] { return &CBORDecoder[T]{} }

func (*CBORDecoder[T]) Sharable() {}

func (*CBORDecoder[T]) ChannelRead(ctx *channel.Context, msg any) error {
	p, ok := msg.([]byte)
	if !ok {
		ctx.FireChannelRead(msg)
		return nil
	}
	var v T
	if err := cbor.Unmarshal(p, &v); err != nil {
		return errs.NewMalformedFrame("cbor: %v", err)
	}
	ctx.FireChannelRead(v)
	return nil
}

// CBOREncoder marshals outbound values to CBOR. Byte slices pass through so it
// can sit above a framing encoder that also carries raw payloads.
type CBOREncoder struct {
	mode cbor.EncMode
}

func NewCBOREncoder() (*CBOREncoder, error) {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	return &CBOREncoder{mode: mode}, nil
}

func (e *CBOREncoder) Encode(_ *channel.Context, msg any) (any, error) {
	if p, ok := msg.([]byte); ok {
		return p, nil
	}
	return e.mode.Marshal(msg)
}
