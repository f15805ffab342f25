// Package errs provides shared errors for mnet, grouped by layer (buffer, codec, pipeline, channel, bootstrap).
// Check errors with errors.Is(err, errs.ErrX); typed errors carry details and match their sentinel via Is.
package errs

import (
	"errors"
	"fmt"
)

// Buffer errors (cursor bounds, capacity ceiling).

var ErrIndexOutOfRange = errors.New("index out of range")

func ErrReadOutOfRange(want, readable int) error {
	return fmt.Errorf("read %d bytes, only %d readable: %w", want, readable, ErrIndexOutOfRange)
}

func ErrIndexOutOfRangef(index, lo, hi int) error {
	return fmt.Errorf("index %d outside [%d, %d]: %w", index, lo, hi, ErrIndexOutOfRange)
}

func ErrCapacityExceeded(need, max int) error {
	return fmt.Errorf("capacity %d exceeds max capacity %d: %w", need, max, ErrIndexOutOfRange)
}

// Codec errors (over-length frames, corrupted input).

var (
	ErrFrameTooLong       = errors.New("frame too long")
	ErrMalformedFrame     = errors.New("malformed frame")
	ErrUnsupportedMessage = errors.New("unsupported message type")
)

// FrameTooLongError reports a frame that exceeded the configured ceiling.
// Length is the observed (or declared) length in bytes.
type FrameTooLongError struct {
	Length int64
	Max    int
}

func (e *FrameTooLongError) Error() string {
	return fmt.Sprintf("frame length %d exceeds %d", e.Length, e.Max)
}

func (e *FrameTooLongError) Is(target error) bool { return target == ErrFrameTooLong }

func NewFrameTooLong(length int64, max int) error {
	return &FrameTooLongError{Length: length, Max: max}
}

// MalformedFrameError reports input that does not follow the wire format.
type MalformedFrameError struct {
	Reason string
}

func (e *MalformedFrameError) Error() string { return "malformed frame: " + e.Reason }

func (e *MalformedFrameError) Is(target error) bool { return target == ErrMalformedFrame }

func NewMalformedFrame(format string, args ...any) error {
	return &MalformedFrameError{Reason: fmt.Sprintf(format, args...)}
}

func ErrUnsupportedMessagef(msg any) error {
	return fmt.Errorf("%T: %w", msg, ErrUnsupportedMessage)
}

// Pipeline configuration errors. Raised from mutation calls only, never from dispatch.

var (
	ErrDuplicateName   = errors.New("duplicate handler name")
	ErrHandlerNotFound = errors.New("handler not found")
	ErrHandlerOwned    = errors.New("handler already owned by another pipeline")
)

func ErrDuplicateNamef(name string) error {
	return fmt.Errorf("%q: %w", name, ErrDuplicateName)
}

func ErrHandlerNotFoundf(name string) error {
	return fmt.Errorf("%q: %w", name, ErrHandlerNotFound)
}

func ErrHandlerOwnedf(name string) error {
	return fmt.Errorf("%q: %w", name, ErrHandlerOwned)
}

// Attribute registry errors.

var ErrDuplicateKey = errors.New("attribute key already exists")

func ErrDuplicateKeyf(name string) error {
	return fmt.Errorf("%q: %w", name, ErrDuplicateKey)
}

// Channel / event loop / bootstrap errors.

var (
	ErrIllegalState      = errors.New("illegal state")
	ErrChannelClosed     = errors.New("channel closed")
	ErrEventLoopShutdown = errors.New("event loop shut down")
	ErrInvalidArgument   = errors.New("invalid argument")
)

func ErrIllegalStatef(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrIllegalState)
}

func ErrInvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

func ErrBind(addr string, err error) error { return fmt.Errorf("bind %s: %w", addr, err) }

func ErrConnect(addr string, err error) error { return fmt.Errorf("connect %s: %w", addr, err) }
