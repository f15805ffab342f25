package channel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/mohitkumar/mnet/errs"
	"go.uber.org/zap"
)

// EventLoop runs tasks one at a time, in submission order, on a single
// goroutine. Channels registered with a loop stay on it for their whole life.
type EventLoop struct {
	name   string
	logger *zap.Logger

	mu       sync.Mutex
	tasks    []func()
	shutdown bool
	wake     chan struct{}
	done     chan struct{}

	// touched only on the loop goroutine
	channels map[*Channel]struct{}
}

func NewEventLoop(name string, logger *zap.Logger) *EventLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &EventLoop{
		name:     name,
		logger:   logger.With(zap.String("loop", name)),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		channels: make(map[*Channel]struct{}),
	}
	go l.run()
	return l
}

func (l *EventLoop) Name() string { return l.name }

// Execute queues task. It never blocks and fails only after Shutdown.
func (l *EventLoop) Execute(task func()) error {
	l.mu.Lock()
	if l.shutdown {
		l.mu.Unlock()
		return errs.ErrEventLoopShutdown
	}
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Submit queues fn and returns a future completed with its result.
func (l *EventLoop) Submit(fn func() error) *Future {
	f := NewFuture(nil)
	if err := l.Execute(func() { f.complete(fn()) }); err != nil {
		f.Fail(err)
	}
	return f
}

// Register binds ch to this loop and fires ChannelRegistered on it.
func (l *EventLoop) Register(ch *Channel) *Future {
	f := NewFuture(ch)
	if !ch.loop.CompareAndSwap(nil, l) {
		f.Fail(errs.ErrIllegalStatef("channel %s already registered", ch.id[:8]))
		return f
	}
	if err := l.Execute(func() {
		if err := ch.register(); err != nil {
			f.Fail(err)
			return
		}
		if !ch.IsOpen() {
			f.Fail(fmt.Errorf("channel %s closed during registration: %w", ch.id[:8], errs.ErrChannelClosed))
			return
		}
		l.channels[ch] = struct{}{}
		f.Succeed()
	}); err != nil {
		ch.loop.Store(nil)
		f.Fail(err)
	}
	return f
}

func (l *EventLoop) forget(ch *Channel) { delete(l.channels, ch) }

func (l *EventLoop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		stop := l.shutdown && len(batch) == 0
		l.mu.Unlock()
		if stop {
			return
		}
		if len(batch) == 0 {
			<-l.wake
			continue
		}
		for _, task := range batch {
			l.runTask(task)
		}
	}
}

func (l *EventLoop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	task()
}

// Shutdown closes every channel registered with the loop, drains queued
// tasks and stops the loop goroutine.
func (l *EventLoop) Shutdown(ctx context.Context) error {
	closed := make(chan struct{})
	if err := l.Execute(func() {
		for ch := range l.channels {
			_ = ch.doClose()
		}
		close(closed)
	}); err != nil {
		return nil
	}
	select {
	case <-closed:
	case <-ctx.Done():
		return ctx.Err()
	}
	l.mu.Lock()
	l.shutdown = true
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EventLoopGroup is a fixed pool of event loops handed out round-robin.
type EventLoopGroup struct {
	loops []*EventLoop
	next  atomic.Uint64
}

// NewEventLoopGroup starts n loops; n <= 0 means one per CPU.
func NewEventLoopGroup(n int, logger *zap.Logger) *EventLoopGroup {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	g := &EventLoopGroup{loops: make([]*EventLoop, n)}
	for i := range g.loops {
		g.loops[i] = NewEventLoop(fmt.Sprintf("loop-%d", i), logger)
	}
	return g
}

func (g *EventLoopGroup) Next() *EventLoop {
	i := g.next.Add(1) - 1
	return g.loops[i%uint64(len(g.loops))]
}

func (g *EventLoopGroup) Len() int { return len(g.loops) }

func (g *EventLoopGroup) Register(ch *Channel) *Future { return g.Next().Register(ch) }

func (g *EventLoopGroup) Shutdown(ctx context.Context) error {
	var errList []error
	for _, l := range g.loops {
		if err := l.Shutdown(ctx); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
