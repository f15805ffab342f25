package channel

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
)

// EmbeddedChannel runs a pipeline synchronously in the calling goroutine with
// an in-memory transport. Messages that reach the tail are queued for
// ReadInbound, bytes that reach the head for ReadOutbound, and exceptions
// that nobody handled for CheckException.
type EmbeddedChannel struct {
	*Channel
	transport *embeddedTransport
	inbound   []any
}

func NewEmbeddedChannel(handlers ...Handler) (*EmbeddedChannel, error) {
	return NewEmbeddedChannelWithLogger(zap.NewNop(), handlers...)
}

func NewEmbeddedChannelWithLogger(logger *zap.Logger, handlers ...Handler) (*EmbeddedChannel, error) {
	t := &embeddedTransport{}
	e := &EmbeddedChannel{Channel: New(t, logger), transport: t}
	e.inline = true
	e.pipeline.recordErrors = true
	e.pipeline.inboundSink = func(msg any) { e.inbound = append(e.inbound, msg) }
	for _, h := range handlers {
		if err := e.pipeline.AddLast("", h); err != nil {
			return nil, err
		}
	}
	if err := e.register(); err != nil {
		return nil, err
	}
	e.activate()
	return e, nil
}

// WriteInbound fires each message into the pipeline from the head and
// reports whether anything reached the tail.
func (e *EmbeddedChannel) WriteInbound(msgs ...any) bool {
	for _, m := range msgs {
		e.pipeline.FireChannelRead(m)
	}
	e.pipeline.FireChannelReadComplete()
	return len(e.inbound) > 0
}

// ReadInbound pops the oldest message that reached the tail, or nil.
func (e *EmbeddedChannel) ReadInbound() any {
	if len(e.inbound) == 0 {
		return nil
	}
	m := e.inbound[0]
	e.inbound = e.inbound[1:]
	return m
}

// WriteOutbound writes and flushes each message from the tail and reports
// whether any bytes reached the transport.
func (e *EmbeddedChannel) WriteOutbound(msgs ...any) (bool, error) {
	for _, m := range msgs {
		if err := e.pipeline.Write(m); err != nil {
			return false, err
		}
	}
	if err := e.pipeline.Flush(); err != nil {
		return false, err
	}
	return len(e.transport.written) > 0, nil
}

// ReadOutbound pops the oldest byte slice written to the transport, or nil.
func (e *EmbeddedChannel) ReadOutbound() []byte {
	if len(e.transport.written) == 0 {
		return nil
	}
	p := e.transport.written[0]
	e.transport.written = e.transport.written[1:]
	return p
}

func (e *EmbeddedChannel) InboundLen() int { return len(e.inbound) }

// CheckException returns the exceptions that reached the tail since the last
// call, joined, or nil.
func (e *EmbeddedChannel) CheckException() error {
	return errors.Join(e.pipeline.takeUnhandled()...)
}

// Finish closes the channel and reports whether unread inbound messages or
// outbound bytes remain.
func (e *EmbeddedChannel) Finish() bool {
	_ = e.doClose()
	return len(e.inbound) > 0 || len(e.transport.written) > 0
}

type embeddedAddr struct{}

func (embeddedAddr) Network() string { return "embedded" }
func (embeddedAddr) String() string  { return "embedded" }

type embeddedTransport struct {
	written [][]byte
	closed  bool
}

func (t *embeddedTransport) Bind(*Channel, string) error { return nil }

func (t *embeddedTransport) Connect(context.Context, *Channel, string, string) error { return nil }

func (t *embeddedTransport) StartReading(*Channel) {}

func (t *embeddedTransport) Write(p []byte) error {
	if t.closed {
		return net.ErrClosed
	}
	t.written = append(t.written, p)
	return nil
}

func (t *embeddedTransport) Close() error {
	t.closed = true
	return nil
}

func (t *embeddedTransport) LocalAddr() net.Addr  { return embeddedAddr{} }
func (t *embeddedTransport) RemoteAddr() net.Addr { return embeddedAddr{} }

func (t *embeddedTransport) SetOption(Option, any) (bool, error) { return false, nil }
