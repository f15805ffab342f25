package codec

import (
	"encoding/binary"

	"github.com/mohitkumar/mnet/buffer"
	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
)

// LengthFieldSize is the size of the big-endian length prefix.
const LengthFieldSize = 4

// DefaultMaxFrameLength is the default ceiling for length-prefixed frames (4MB).
const DefaultMaxFrameLength = 4 * 1024 * 1024

type LengthFieldConfig struct {
	// MaxFrameLength bounds the whole frame, prefix included.
	MaxFrameLength int
	FailFast       bool
	// StripHeader leaves the length prefix out of the emitted frame.
	StripHeader bool
}

func DefaultLengthFieldConfig() LengthFieldConfig {
	return LengthFieldConfig{MaxFrameLength: DefaultMaxFrameLength, FailFast: true, StripHeader: true}
}

// LengthFieldDecoder splits the stream into frames prefixed with a 4-byte
// big-endian payload length.
type LengthFieldDecoder struct {
	strip bool
	guard lengthGuard
}

func NewLengthFieldDecoder(cfg LengthFieldConfig) (*LengthFieldDecoder, error) {
	if cfg.MaxFrameLength <= LengthFieldSize {
		return nil, errs.ErrInvalidArgumentf("max frame length must exceed the %d byte prefix: %d", LengthFieldSize, cfg.MaxFrameLength)
	}
	return &LengthFieldDecoder{
		strip: cfg.StripHeader,
		guard: newLengthGuard(GuardConfig{MaxFrameLength: cfg.MaxFrameLength, FailFast: cfg.FailFast}),
	}, nil
}

func NewLengthFieldFrameDecoder(cfg LengthFieldConfig, opts ...Option) (*FrameDecoder, error) {
	d, err := NewLengthFieldDecoder(cfg)
	if err != nil {
		return nil, err
	}
	return NewFrameDecoder(d, opts...), nil
}

func (d *LengthFieldDecoder) Decode(_ *channel.Context, in *buffer.Buffer) (any, error) {
	if busy, err := d.guard.discarding(in); busy {
		return nil, err
	}
	length, err := in.PeekUint32()
	if err != nil {
		return nil, nil
	}
	frameLength := int64(length) + LengthFieldSize
	if dropped, err := d.guard.declared(in, frameLength); dropped {
		return nil, err
	}
	if int64(in.ReadableBytes()) < frameLength {
		return nil, nil
	}
	if d.strip {
		_ = in.Skip(LengthFieldSize)
		return in.ReadBytes(int(length))
	}
	return in.ReadBytes(int(frameLength))
}

// LengthFieldPrepender is the outbound counterpart of LengthFieldDecoder.
type LengthFieldPrepender struct {
	max int
}

// NewLengthFieldPrepender rejects payloads longer than max; zero means
// DefaultMaxFrameLength minus the prefix.
func NewLengthFieldPrepender(max int) *LengthFieldPrepender {
	if max <= 0 {
		max = DefaultMaxFrameLength - LengthFieldSize
	}
	return &LengthFieldPrepender{max: max}
}

func (p *LengthFieldPrepender) Encode(_ *channel.Context, msg any) (any, error) {
	payload, ok := asBytes(msg)
	if !ok {
		return msg, nil
	}
	if len(payload) > p.max {
		return nil, errs.NewFrameTooLong(int64(len(payload)), p.max)
	}
	out := make([]byte, LengthFieldSize+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[LengthFieldSize:], payload)
	return out, nil
}
