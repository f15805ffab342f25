package codec

import (
	"github.com/mohitkumar/mnet/buffer"
	"github.com/mohitkumar/mnet/errs"
)

// GuardConfig bounds the size of a single frame.
//
// With FailFast the FrameTooLongError is raised as soon as the limit is
// crossed and the rest of the frame is dropped silently. Without it the
// decoder keeps dropping until the end of the frame and raises once, with
// the full length.
type GuardConfig struct {
	MaxFrameLength int
	FailFast       bool
}

// lengthGuard tracks one over-length frame at a time. Every over-length frame
// produces exactly one error, and none of its content is ever delivered.
type lengthGuard struct {
	max      int
	failFast bool

	discardingTooLongFrame bool
	tooLongFrameLength     int64
	bytesToDiscard         int64
}

func newLengthGuard(cfg GuardConfig) lengthGuard {
	return lengthGuard{max: cfg.MaxFrameLength, failFast: cfg.FailFast}
}

func (g *lengthGuard) fail(length int64) error {
	return errs.NewFrameTooLong(length, g.max)
}

// unterminated is called when no frame boundary is in the readable bytes.
// The last partial bytes may be the start of a boundary; they are not
// counted against the limit and are never dropped here. Once the remaining
// bytes exceed the limit they are dropped and the guard keeps dropping until
// a boundary shows up.
func (g *lengthGuard) unterminated(in *buffer.Buffer, partial int) error {
	n := in.ReadableBytes() - partial
	if g.discardingTooLongFrame {
		g.tooLongFrameLength += int64(n)
		_ = in.Skip(n)
		return nil
	}
	if n <= g.max {
		return nil
	}
	g.tooLongFrameLength = int64(n)
	g.discardingTooLongFrame = true
	_ = in.Skip(n)
	if g.failFast {
		return g.fail(g.tooLongFrameLength)
	}
	return nil
}

// terminated is called when a frame of frameLength bytes followed by a
// boundary of boundaryLength bytes is readable. It reports whether the frame
// was dropped.
func (g *lengthGuard) terminated(in *buffer.Buffer, frameLength, boundaryLength int) (bool, error) {
	if g.discardingTooLongFrame {
		total := g.tooLongFrameLength + int64(frameLength)
		g.discardingTooLongFrame = false
		g.tooLongFrameLength = 0
		_ = in.Skip(frameLength + boundaryLength)
		if !g.failFast {
			return true, g.fail(total)
		}
		return true, nil
	}
	if frameLength > g.max {
		_ = in.Skip(frameLength + boundaryLength)
		return true, g.fail(int64(frameLength))
	}
	return false, nil
}

// discarding drains the remainder of a known-length frame that is being
// dropped. It reports whether the guard is still busy with that frame.
func (g *lengthGuard) discarding(in *buffer.Buffer) (bool, error) {
	if !g.discardingTooLongFrame {
		return false, nil
	}
	n := int64(in.ReadableBytes())
	if n > g.bytesToDiscard {
		n = g.bytesToDiscard
	}
	_ = in.Skip(int(n))
	g.bytesToDiscard -= n
	return true, g.failIfNecessary(false)
}

// declared is called once the full length of the next frame is known. If it
// is over the limit the frame is dropped, across as many reads as needed.
func (g *lengthGuard) declared(in *buffer.Buffer, frameLength int64) (bool, error) {
	if frameLength <= int64(g.max) {
		return false, nil
	}
	g.discardingTooLongFrame = true
	g.tooLongFrameLength = frameLength
	readable := int64(in.ReadableBytes())
	if frameLength <= readable {
		_ = in.Skip(int(frameLength))
		g.bytesToDiscard = 0
	} else {
		_ = in.Skip(int(readable))
		g.bytesToDiscard = frameLength - readable
	}
	return true, g.failIfNecessary(true)
}

func (g *lengthGuard) failIfNecessary(first bool) error {
	if g.bytesToDiscard == 0 {
		length := g.tooLongFrameLength
		g.tooLongFrameLength = 0
		g.discardingTooLongFrame = false
		if !g.failFast || first {
			return g.fail(length)
		}
		return nil
	}
	if g.failFast && first {
		return g.fail(g.tooLongFrameLength)
	}
	return nil
}
