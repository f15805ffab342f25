package channel

import (
	"fmt"
	"reflect"

	"github.com/mohitkumar/mnet/errs"
	"go.uber.org/zap"
)

const (
	headName = "head"
	tailName = "tail"
)

// Pipeline is the ordered chain of handlers attached to one channel. Entries
// are kept in a doubly-linked list between a fixed head (transport side) and
// tail (application side). Names are unique within a pipeline.
//
// A pipeline is owned by its channel's event loop; mutation and dispatch are
// not safe from other goroutines.
type Pipeline struct {
	channel *Channel
	head    *Context
	tail    *Context
	names   map[string]*Context
	seq     int
	logger  *zap.Logger

	// set by EmbeddedChannel
	inboundSink  func(msg any)
	recordErrors bool
	unhandled    []error
}

func newPipeline(ch *Channel) *Pipeline {
	p := &Pipeline{
		channel: ch,
		names:   make(map[string]*Context),
		logger:  ch.logger,
	}
	p.head = newContext(p, headName, &headHandler{})
	p.tail = newContext(p, tailName, &tailHandler{})
	p.head.next = p.tail
	p.tail.prev = p.head
	return p
}

func (p *Pipeline) Channel() *Channel { return p.channel }

func (p *Pipeline) terminated() bool { return p.channel.State() == StateClosed }

func (p *Pipeline) AddFirst(name string, h Handler) error {
	return p.insert(name, h, p.head)
}

func (p *Pipeline) AddLast(name string, h Handler) error {
	return p.insert(name, h, p.tail.prev)
}

func (p *Pipeline) AddBefore(base, name string, h Handler) error {
	b, ok := p.names[base]
	if !ok {
		return errs.ErrHandlerNotFoundf(base)
	}
	return p.insert(name, h, b.prev)
}

func (p *Pipeline) AddAfter(base, name string, h Handler) error {
	b, ok := p.names[base]
	if !ok {
		return errs.ErrHandlerNotFoundf(base)
	}
	return p.insert(name, h, b)
}

// insert links a new entry right after prev. On any error the pipeline is unchanged.
func (p *Pipeline) insert(name string, h Handler, prev *Context) error {
	name, err := p.checkNew(name, h, "")
	if err != nil {
		return err
	}
	if err := p.claim(name, h); err != nil {
		return err
	}
	return p.added(p.link(name, h, prev))
}

// checkNew validates a handler and its name, generating one when empty.
// reuse is a name that is about to be freed and may be taken again.
func (p *Pipeline) checkNew(name string, h Handler, reuse string) (string, error) {
	if h == nil {
		return "", errs.ErrInvalidArgumentf("nil handler")
	}
	if name == "" {
		name = p.generateName(h)
	}
	if name == headName || name == tailName {
		return "", errs.ErrDuplicateNamef(name)
	}
	if _, ok := p.names[name]; ok && name != reuse {
		return "", errs.ErrDuplicateNamef(name)
	}
	return name, nil
}

func (p *Pipeline) link(name string, h Handler, prev *Context) *Context {
	c := newContext(p, name, h)
	c.prev = prev
	c.next = prev.next
	prev.next.prev = c
	prev.next = c
	p.names[name] = c
	return c
}

func (p *Pipeline) added(c *Context) error {
	a, ok := c.handler.(AddedHandler)
	if !ok {
		return nil
	}
	if err := safeCall(func() error { return a.HandlerAdded(c) }); err != nil {
		p.unlink(c)
		p.release(c.handler)
		return fmt.Errorf("handler %q added: %w", c.name, err)
	}
	return nil
}

func (p *Pipeline) claim(name string, h Handler) error {
	if _, ok := h.(Sharable); ok {
		return nil
	}
	if o, ok := h.(owned); ok && !o.claim(p) {
		return errs.ErrHandlerOwnedf(name)
	}
	return nil
}

func (p *Pipeline) release(h Handler) {
	if _, ok := h.(Sharable); ok {
		return
	}
	if o, ok := h.(owned); ok {
		o.release(p)
	}
}

func (p *Pipeline) generateName(h Handler) string {
	t := reflect.TypeOf(h)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	base := t.Name()
	if base == "" {
		base = "handler"
	}
	for {
		name := fmt.Sprintf("%s#%d", base, p.seq)
		p.seq++
		if _, ok := p.names[name]; !ok {
			return name
		}
	}
}

// Remove takes the named handler out of the pipeline and returns it.
func (p *Pipeline) Remove(name string) (Handler, error) {
	c, ok := p.names[name]
	if !ok {
		return nil, errs.ErrHandlerNotFoundf(name)
	}
	p.remove(c)
	return c.handler, nil
}

func (p *Pipeline) RemoveHandler(h Handler) error {
	c := p.ContextOf(h)
	if c == nil {
		return errs.ErrHandlerNotFoundf(fmt.Sprintf("%T", h))
	}
	p.remove(c)
	return nil
}

// Replace swaps the handler registered under oldName for h, registered as
// newName, keeping its position.
func (p *Pipeline) Replace(oldName, newName string, h Handler) (Handler, error) {
	old, ok := p.names[oldName]
	if !ok {
		return nil, errs.ErrHandlerNotFoundf(oldName)
	}
	newName, err := p.checkNew(newName, h, oldName)
	if err != nil {
		return nil, err
	}
	if err := p.claim(newName, h); err != nil {
		return nil, err
	}
	// the new handler goes in next to the old one so a failing HandlerAdded
	// leaves the pipeline as it was
	c := p.link(newName, h, old)
	if err := p.added(c); err != nil {
		p.names[oldName] = old
		return nil, err
	}
	p.remove(old)
	p.names[newName] = c
	return old.handler, nil
}

func (p *Pipeline) remove(c *Context) {
	p.unlink(c)
	if r, ok := c.handler.(RemovedHandler); ok {
		if err := safeCall(func() error { return r.HandlerRemoved(c) }); err != nil {
			p.logger.Warn("handler removed callback failed", zap.String("handler", c.name), zap.Error(err))
		}
	}
	p.release(c.handler)
}

// unlink detaches c from its neighbours. c keeps its own links so an event
// that is passing through it continues to the rest of the chain.
func (p *Pipeline) unlink(c *Context) {
	c.prev.next = c.next
	c.next.prev = c.prev
	delete(p.names, c.name)
	c.removed = true
}

// teardown removes every handler, tail side first.
func (p *Pipeline) teardown() {
	for c := p.tail.prev; c != p.head; c = p.tail.prev {
		p.remove(c)
	}
}

func (p *Pipeline) Get(name string) Handler {
	if c, ok := p.names[name]; ok {
		return c.handler
	}
	return nil
}

func (p *Pipeline) Context(name string) *Context {
	return p.names[name]
}

func (p *Pipeline) ContextOf(h Handler) *Context {
	for c := p.head.next; c != p.tail; c = c.next {
		if sameHandler(c.handler, h) {
			return c
		}
	}
	return nil
}

func sameHandler(a, b Handler) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	if ta.Kind() == reflect.Func {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return false
}

// Names lists handler names from head to tail.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.names))
	for c := p.head.next; c != p.tail; c = c.next {
		names = append(names, c.name)
	}
	return names
}

func (p *Pipeline) Len() int { return len(p.names) }

func (p *Pipeline) First() Handler {
	if c := p.head.next; c != p.tail {
		return c.handler
	}
	return nil
}

func (p *Pipeline) Last() Handler {
	if c := p.tail.prev; c != p.head {
		return c.handler
	}
	return nil
}

// Inbound events enter at the head.

func (p *Pipeline) FireChannelRegistered()        { p.head.FireChannelRegistered() }
func (p *Pipeline) FireChannelActive()            { p.head.FireChannelActive() }
func (p *Pipeline) FireChannelRead(msg any)       { p.head.FireChannelRead(msg) }
func (p *Pipeline) FireChannelReadComplete()      { p.head.FireChannelReadComplete() }
func (p *Pipeline) FireChannelInactive()          { p.head.FireChannelInactive() }
func (p *Pipeline) FireChannelUnregistered()      { p.head.FireChannelUnregistered() }
func (p *Pipeline) FireUserEventTriggered(e any)  { p.head.FireUserEventTriggered(e) }
func (p *Pipeline) FireExceptionCaught(err error) { p.head.FireExceptionCaught(err) }

// Outbound requests enter at the tail.

func (p *Pipeline) Write(msg any) error         { return p.tail.Write(msg) }
func (p *Pipeline) Flush() error                { return p.tail.Flush() }
func (p *Pipeline) WriteAndFlush(msg any) error { return p.tail.WriteAndFlush(msg) }
func (p *Pipeline) Close() error                { return p.tail.Close() }

func (p *Pipeline) takeUnhandled() []error {
	out := p.unhandled
	p.unhandled = nil
	return out
}

// headHandler hands outbound requests to the channel's transport.
type headHandler struct{}

func (*headHandler) Write(ctx *Context, msg any) error { return ctx.Channel().enqueue(msg) }

func (*headHandler) Flush(ctx *Context) error { return ctx.Channel().flush() }

func (*headHandler) Close(ctx *Context) error { return ctx.Channel().doClose() }

// tailHandler terminates inbound propagation. Whatever reaches it was not
// consumed by the application.
type tailHandler struct{}

func (*tailHandler) ChannelRegistered(*Context) error   { return nil }
func (*tailHandler) ChannelActive(*Context) error       { return nil }
func (*tailHandler) ChannelReadComplete(*Context) error { return nil }
func (*tailHandler) ChannelInactive(*Context) error     { return nil }
func (*tailHandler) ChannelUnregistered(*Context) error { return nil }

func (*tailHandler) ChannelRead(ctx *Context, msg any) error {
	p := ctx.pipeline
	if p.inboundSink != nil {
		p.inboundSink(msg)
		return nil
	}
	p.logger.Debug("discarded inbound message that reached the tail", zap.String("type", fmt.Sprintf("%T", msg)))
	return nil
}

func (*tailHandler) UserEventTriggered(ctx *Context, evt any) error {
	ctx.pipeline.logger.Debug("discarded user event that reached the tail", zap.Any("event", evt))
	return nil
}

func (*tailHandler) ExceptionCaught(ctx *Context, err error) error {
	p := ctx.pipeline
	if p.recordErrors {
		p.unhandled = append(p.unhandled, err)
		return nil
	}
	p.logger.Warn("exception reached the tail of the pipeline; add an exception handler", zap.Error(err))
	return nil
}
