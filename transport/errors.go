package transport

import "errors"

var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrClosed       = errors.New("transport: connection closed")
	ErrUnsupported  = errors.New("transport: operation not supported")
)
