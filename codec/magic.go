package codec

import (
	"encoding/binary"

	"github.com/mohitkumar/mnet/buffer"
	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
)

const magicHeaderSize = 1 + LengthFieldSize

// MagicLengthDecoder reads frames laid out as a one-byte tag, a 4-byte
// big-endian length and the content. A wrong tag leaves the input untouched
// and returns a MalformedFrameError; over-length frames fail fast.
type MagicLengthDecoder struct {
	magic byte
	guard lengthGuard
}

func NewMagicLengthDecoder(magic byte, maxFrameLength int) *MagicLengthDecoder {
	if maxFrameLength <= 0 {
		maxFrameLength = DefaultMaxFrameLength
	}
	return &MagicLengthDecoder{
		magic: magic,
		guard: newLengthGuard(GuardConfig{MaxFrameLength: maxFrameLength, FailFast: true}),
	}
}

func (d *MagicLengthDecoder) Decode(_ *channel.Context, in *buffer.Buffer) (any, error) {
	if busy, err := d.guard.discarding(in); busy {
		return nil, err
	}
	if in.ReadableBytes() < magicHeaderSize {
		return nil, nil
	}
	in.MarkReaderIndex()
	tag, _ := in.ReadByte()
	if tag != d.magic {
		in.ResetReaderIndex()
		return nil, errs.NewMalformedFrame("invalid magic number: %d", tag)
	}
	length, _ := in.ReadUint32()
	if dropped, err := d.guard.declared(in, int64(length)); dropped {
		return nil, err
	}
	if in.ReadableBytes() < int(length) {
		in.ResetReaderIndex()
		return nil, nil
	}
	return in.ReadBytes(int(length))
}

// MagicLengthEncoder writes byte slices in the format MagicLengthDecoder reads.
type MagicLengthEncoder struct {
	magic byte
}

func NewMagicLengthEncoder(magic byte) *MagicLengthEncoder {
	return &MagicLengthEncoder{magic: magic}
}

func (e *MagicLengthEncoder) Encode(_ *channel.Context, msg any) (any, error) {
	payload, ok := asBytes(msg)
	if !ok {
		return msg, nil
	}
	out := make([]byte, magicHeaderSize+len(payload))
	out[0] = e.magic
	binary.BigEndian.PutUint32(out[1:], uint32(len(payload)))
	copy(out[magicHeaderSize:], payload)
	return out, nil
}
