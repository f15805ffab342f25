package codec

import (
	"bytes"

	"github.com/mohitkumar/mnet/buffer"
	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
)

// NulDelimiter returns the single NUL byte delimiter used by Flash XML sockets.
func NulDelimiter() [][]byte {
	return [][]byte{{0}}
}

// LineDelimiter returns "\r\n" and "\n".
func LineDelimiter() [][]byte {
	return [][]byte{{'\r', '\n'}, {'\n'}}
}

type DelimiterConfig struct {
	MaxFrameLength int
	FailFast       bool
	// StripDelimiter leaves the delimiter out of the emitted frame.
	StripDelimiter bool
	Delimiters     [][]byte
}

// DefaultDelimiterConfig fails fast and strips delimiters.
func DefaultDelimiterConfig(maxFrameLength int, delimiters ...[]byte) DelimiterConfig {
	return DelimiterConfig{
		MaxFrameLength: maxFrameLength,
		FailFast:       true,
		StripDelimiter: true,
		Delimiters:     delimiters,
	}
}

// DelimiterDecoder splits the stream on one or more delimiters. When several
// delimiters match, the one that starts earliest wins; among those starting
// at the same offset, the longest wins, so "\r\n" beats "\n".
type DelimiterDecoder struct {
	delimiters [][]byte
	strip      bool
	guard      lengthGuard
}

func NewDelimiterDecoder(cfg DelimiterConfig) (*DelimiterDecoder, error) {
	if cfg.MaxFrameLength <= 0 {
		return nil, errs.ErrInvalidArgumentf("max frame length must be positive: %d", cfg.MaxFrameLength)
	}
	if len(cfg.Delimiters) == 0 {
		return nil, errs.ErrInvalidArgumentf("no delimiters")
	}
	delims := make([][]byte, len(cfg.Delimiters))
	for i, d := range cfg.Delimiters {
		if len(d) == 0 {
			return nil, errs.ErrInvalidArgumentf("empty delimiter at %d", i)
		}
		delims[i] = append([]byte(nil), d...)
	}
	return &DelimiterDecoder{
		delimiters: delims,
		strip:      cfg.StripDelimiter,
		guard:      newLengthGuard(GuardConfig{MaxFrameLength: cfg.MaxFrameLength, FailFast: cfg.FailFast}),
	}, nil
}

// NewDelimiterFrameDecoder wraps a DelimiterDecoder in a FrameDecoder.
func NewDelimiterFrameDecoder(cfg DelimiterConfig, opts ...Option) (*FrameDecoder, error) {
	d, err := NewDelimiterDecoder(cfg)
	if err != nil {
		return nil, err
	}
	return NewFrameDecoder(d, opts...), nil
}

func (d *DelimiterDecoder) Decode(_ *channel.Context, in *buffer.Buffer) (any, error) {
	frameLength, delim := d.indexOf(in)
	if delim == nil {
		return nil, d.guard.unterminated(in, d.partialDelimiter(in))
	}
	if dropped, err := d.guard.terminated(in, frameLength, len(delim)); dropped {
		return nil, err
	}
	if d.strip {
		frame, _ := in.ReadBytes(frameLength)
		_ = in.Skip(len(delim))
		return frame, nil
	}
	return in.ReadBytes(frameLength + len(delim))
}

func (d *DelimiterDecoder) indexOf(in *buffer.Buffer) (int, []byte) {
	best := -1
	var match []byte
	for _, delim := range d.delimiters {
		i := in.IndexOf(delim)
		if i < 0 {
			continue
		}
		if best < 0 || i < best || (i == best && len(delim) > len(match)) {
			best, match = i, delim
		}
	}
	return best, match
}

// partialDelimiter returns the length of the longest readable suffix that is
// a proper prefix of a delimiter.
func (d *DelimiterDecoder) partialDelimiter(in *buffer.Buffer) int {
	p := in.Bytes()
	longest := 0
	for _, delim := range d.delimiters {
		for k := min(len(delim)-1, len(p)); k > longest; k-- {
			if bytes.Equal(p[len(p)-k:], delim[:k]) {
				longest = k
				break
			}
		}
	}
	return longest
}
