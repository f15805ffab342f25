package channel

import (
	"context"
	"sync"
)

// Future is the one-shot result of an asynchronous channel operation.
type Future struct {
	channel *Channel
	done    chan struct{}

	mu        sync.Mutex
	completed bool
	err       error
	listeners []func(*Future)
}

func NewFuture(ch *Channel) *Future {
	return &Future{channel: ch, done: make(chan struct{})}
}

// SucceededFuture returns an already completed future.
func SucceededFuture(ch *Channel) *Future {
	f := NewFuture(ch)
	f.Succeed()
	return f
}

func FailedFuture(ch *Channel, err error) *Future {
	f := NewFuture(ch)
	f.Fail(err)
	return f
}

func (f *Future) Channel() *Channel { return f.channel }

func (f *Future) Succeed() bool { return f.complete(nil) }

func (f *Future) Fail(err error) bool { return f.complete(err) }

func (f *Future) complete(err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.err = err
	listeners := f.listeners
	f.listeners = nil
	close(f.done)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(f)
	}
	return true
}

func (f *Future) Done() <-chan struct{} { return f.done }

func (f *Future) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the failure, or nil if the future succeeded or is still pending.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Await blocks until the future completes or ctx ends.
func (f *Future) Await(ctx context.Context) error {
	select {
	case <-f.done:
		return f.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddListener runs fn once the future completes; immediately if it already has.
func (f *Future) AddListener(fn func(*Future)) {
	f.mu.Lock()
	if !f.completed {
		f.listeners = append(f.listeners, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	fn(f)
}

// CloseOnFailure is a listener that closes the future's channel when the operation failed.
func CloseOnFailure(f *Future) {
	if f.Err() != nil && f.channel != nil {
		f.channel.Close()
	}
}
