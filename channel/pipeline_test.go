package channel

import (
	"errors"
	"testing"

	"github.com/mohitkumar/mnet/errs"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	DuplexHandlerAdapter
	name string
	log  *[]string
}

func newRecorder(name string, log *[]string) *recorder {
	return &recorder{name: name, log: log}
}

func (r *recorder) record(event string) { *r.log = append(*r.log, event+":"+r.name) }

func (r *recorder) ChannelRegistered(ctx *Context) error {
	r.record("registered")
	ctx.FireChannelRegistered()
	return nil
}

func (r *recorder) ChannelActive(ctx *Context) error {
	r.record("active")
	ctx.FireChannelActive()
	return nil
}

func (r *recorder) ChannelInactive(ctx *Context) error {
	r.record("inactive")
	ctx.FireChannelInactive()
	return nil
}

func (r *recorder) ChannelUnregistered(ctx *Context) error {
	r.record("unregistered")
	ctx.FireChannelUnregistered()
	return nil
}

func (r *recorder) ChannelRead(ctx *Context, msg any) error {
	r.record("read")
	ctx.FireChannelRead(msg)
	return nil
}

func (r *recorder) Write(ctx *Context, msg any) error {
	r.record("write")
	return ctx.Write(msg)
}

func (r *recorder) HandlerRemoved(*Context) error {
	r.record("removed")
	return nil
}

func newTestChannel(t *testing.T) *EmbeddedChannel {
	t.Helper()
	ch, err := NewEmbeddedChannel()
	require.NoError(t, err)
	return ch
}

func addRecorders(t *testing.T, p *Pipeline, log *[]string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, p.AddLast(n, newRecorder(n, log)))
	}
}

func TestPipelineInboundOrder(t *testing.T) {
	var log []string
	ch := newTestChannel(t)
	addRecorders(t, ch.Pipeline(), &log, "A", "B", "C")

	require.True(t, ch.WriteInbound("msg"))
	require.Equal(t, []string{"read:A", "read:B", "read:C"}, log)
	require.Equal(t, "msg", ch.ReadInbound())
	require.Nil(t, ch.ReadInbound())
}

func TestPipelineOutboundOrder(t *testing.T) {
	var log []string
	ch := newTestChannel(t)
	addRecorders(t, ch.Pipeline(), &log, "A", "B", "C")

	ok, err := ch.WriteOutbound("msg")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"write:C", "write:B", "write:A"}, log)
	require.Equal(t, []byte("msg"), ch.ReadOutbound())

	log = log[:0]
	require.NoError(t, ch.Pipeline().Context("C").Write("again"))
	require.Equal(t, []string{"write:B", "write:A"}, log, "a write from a context starts at the handler before it")
}

func TestPipelineAddPositions(t *testing.T) {
	var log []string
	ch := newTestChannel(t)
	p := ch.Pipeline()
	require.NoError(t, p.AddLast("B", newRecorder("B", &log)))
	require.NoError(t, p.AddFirst("A", newRecorder("A", &log)))
	require.NoError(t, p.AddLast("D", newRecorder("D", &log)))
	require.NoError(t, p.AddBefore("D", "C", newRecorder("C", &log)))
	require.NoError(t, p.AddAfter("D", "E", newRecorder("E", &log)))

	require.Equal(t, []string{"A", "B", "C", "D", "E"}, p.Names())
	require.Equal(t, 5, p.Len())
	require.Equal(t, p.Get("A"), p.First())
	require.Equal(t, p.Get("E"), p.Last())

	err := p.AddBefore("missing", "X", newRecorder("X", &log))
	require.ErrorIs(t, err, errs.ErrHandlerNotFound)
}

func TestPipelineDuplicateNameLeavesPipelineUnchanged(t *testing.T) {
	var log []string
	ch := newTestChannel(t)
	p := ch.Pipeline()
	addRecorders(t, p, &log, "A", "B")

	dup := newRecorder("B2", &log)
	require.ErrorIs(t, p.AddLast("B", dup), errs.ErrDuplicateName)
	require.ErrorIs(t, p.AddFirst("head", dup), errs.ErrDuplicateName)
	require.Equal(t, []string{"A", "B"}, p.Names())

	// the rejected handler was never claimed
	other := newTestChannel(t)
	require.NoError(t, other.Pipeline().AddLast("B", dup))
}

func TestPipelineGeneratedNames(t *testing.T) {
	var log []string
	ch := newTestChannel(t)
	p := ch.Pipeline()
	require.NoError(t, p.AddLast("", newRecorder("x", &log)))
	require.NoError(t, p.AddLast("", newRecorder("y", &log)))
	require.Equal(t, []string{"recorder#0", "recorder#1"}, p.Names())
	require.ErrorIs(t, p.AddLast("n", nil), errs.ErrInvalidArgument)
}

func TestPipelineRemoveAndReplace(t *testing.T) {
	var log []string
	ch := newTestChannel(t)
	p := ch.Pipeline()
	addRecorders(t, p, &log, "A", "B", "C")

	h, err := p.Remove("B")
	require.NoError(t, err)
	require.Equal(t, "B", h.(*recorder).name)
	require.Equal(t, []string{"removed:B"}, log)
	require.Equal(t, []string{"A", "C"}, p.Names())

	_, err = p.Remove("B")
	require.ErrorIs(t, err, errs.ErrHandlerNotFound)

	old, err := p.Replace("A", "Z", newRecorder("Z", &log))
	require.NoError(t, err)
	require.Equal(t, "A", old.(*recorder).name)
	require.Equal(t, []string{"Z", "C"}, p.Names())

	_, err = p.Replace("Z", "C", newRecorder("C2", &log))
	require.ErrorIs(t, err, errs.ErrDuplicateName)
	require.Equal(t, []string{"Z", "C"}, p.Names())

	c := p.Get("C")
	require.NoError(t, p.RemoveHandler(c))
	require.Equal(t, []string{"Z"}, p.Names())
	require.ErrorIs(t, p.RemoveHandler(c), errs.ErrHandlerNotFound)
}

type failingAdd struct {
	InboundHandlerAdapter
}

func (*failingAdd) HandlerAdded(*Context) error { return errors.New("cannot start") }

func TestPipelineReplaceKeepsOldHandlerWhenAddFails(t *testing.T) {
	var log []string
	ch := newTestChannel(t)
	p := ch.Pipeline()
	addRecorders(t, p, &log, "A", "B")
	a := p.Get("A")

	_, err := p.Replace("A", "Z", &failingAdd{})
	require.Error(t, err)
	require.Equal(t, []string{"A", "B"}, p.Names())
	require.Same(t, a, p.Get("A"))

	_, err = p.Replace("A", "A", &failingAdd{})
	require.Error(t, err)
	require.Equal(t, []string{"A", "B"}, p.Names())
	require.Same(t, a, p.Get("A"))

	log = log[:0]
	ch.WriteInbound("x")
	require.Equal(t, []string{"read:A", "read:B"}, log)

	old, err := p.Replace("A", "A", newRecorder("A2", &log))
	require.NoError(t, err)
	require.Same(t, a, old)
	require.Equal(t, []string{"A", "B"}, p.Names())
	require.Equal(t, "A2", p.Get("A").(*recorder).name)
}

func TestPipelineSingleOwnership(t *testing.T) {
	var log []string
	first := newTestChannel(t)
	second := newTestChannel(t)
	h := newRecorder("A", &log)

	require.NoError(t, first.Pipeline().AddLast("A", h))
	require.ErrorIs(t, second.Pipeline().AddLast("A", h), errs.ErrHandlerOwned)
	require.ErrorIs(t, first.Pipeline().AddLast("A2", h), errs.ErrHandlerOwned)

	_, err := first.Pipeline().Remove("A")
	require.NoError(t, err)
	require.NoError(t, second.Pipeline().AddLast("A", h))
}

func TestPipelineSharableHandler(t *testing.T) {
	var reads int
	shared := InboundFunc(func(ctx *Context, msg any) error {
		reads++
		ctx.FireChannelRead(msg)
		return nil
	})
	first, err := NewEmbeddedChannel(shared)
	require.NoError(t, err)
	second, err := NewEmbeddedChannel(shared)
	require.NoError(t, err)

	first.WriteInbound(1)
	second.WriteInbound(2)
	require.Equal(t, 2, reads)
}

type failingReader struct {
	InboundHandlerAdapter
	err   error
	panic bool
}

func (f *failingReader) ChannelRead(*Context, any) error {
	if f.panic {
		panic("boom")
	}
	return f.err
}

type catcher struct {
	InboundHandlerAdapter
	caught []error
}

func (c *catcher) ExceptionCaught(_ *Context, err error) error {
	c.caught = append(c.caught, err)
	return nil
}

func TestPipelineHandlerErrorBecomesException(t *testing.T) {
	cause := errors.New("bad input")
	ch := newTestChannel(t)
	require.NoError(t, ch.Pipeline().AddLast("reader", &failingReader{err: cause}))

	ch.WriteInbound("x")
	err := ch.CheckException()
	require.ErrorIs(t, err, cause)

	var he *HandlerError
	require.ErrorAs(t, err, &he)
	require.Equal(t, "reader", he.Handler)
	require.NoError(t, ch.CheckException(), "exceptions are reported once")
	require.True(t, ch.IsOpen())
}

func TestPipelineExceptionCaughtByLaterHandler(t *testing.T) {
	c := &catcher{}
	ch, err := NewEmbeddedChannel(&failingReader{panic: true}, c)
	require.NoError(t, err)

	ch.WriteInbound("x")
	require.Len(t, c.caught, 1)
	require.Contains(t, c.caught[0].Error(), "handler panic: boom")
	require.NoError(t, ch.CheckException())
}

type selfRemover struct {
	InboundHandlerAdapter
	seen int
}

func (s *selfRemover) ChannelRead(ctx *Context, msg any) error {
	s.seen++
	if _, err := ctx.Pipeline().Remove(ctx.Name()); err != nil {
		return err
	}
	ctx.FireChannelRead(msg)
	return nil
}

func TestPipelineRemoveDuringDispatch(t *testing.T) {
	s := &selfRemover{}
	ch, err := NewEmbeddedChannel(s)
	require.NoError(t, err)

	ch.WriteInbound("first", "second")
	require.Equal(t, 1, s.seen)
	require.Equal(t, "first", ch.ReadInbound())
	require.Equal(t, "second", ch.ReadInbound())
	require.Empty(t, ch.Pipeline().Names())
}

func TestChannelLifecycleEvents(t *testing.T) {
	var log []string
	ch, err := NewEmbeddedChannel(newRecorder("A", &log))
	require.NoError(t, err)
	require.Equal(t, StateActive, ch.State())
	require.Equal(t, []string{"registered:A", "active:A"}, log)

	log = log[:0]
	require.False(t, ch.Finish())
	require.Equal(t, StateClosed, ch.State())
	require.Equal(t, []string{"inactive:A", "unregistered:A", "removed:A"}, log)
	require.True(t, ch.CloseFuture().IsDone())
}

func TestClosedChannelDropsEvents(t *testing.T) {
	var log []string
	ch, err := NewEmbeddedChannel(newRecorder("A", &log))
	require.NoError(t, err)
	ch.Finish()
	log = log[:0]

	require.False(t, ch.WriteInbound("late"))
	ch.Pipeline().FireExceptionCaught(errors.New("late"))
	require.Empty(t, log)
	require.NoError(t, ch.CheckException())

	_, err = ch.WriteOutbound("late")
	require.ErrorIs(t, err, errs.ErrChannelClosed)
}

func TestChannelRejectsUnsupportedOutbound(t *testing.T) {
	ch := newTestChannel(t)
	_, err := ch.WriteOutbound(42)
	require.ErrorIs(t, err, errs.ErrUnsupportedMessage)
}

func TestInitializerRemovesItself(t *testing.T) {
	var log []string
	init := NewInitializer(func(ch *Channel) error {
		return ch.Pipeline().AddLast("A", newRecorder("A", &log))
	})
	ch, err := NewEmbeddedChannel(init)
	require.NoError(t, err)

	require.Equal(t, []string{"A"}, ch.Pipeline().Names())
	require.Equal(t, []string{"registered:A", "active:A"}, log)
}

func TestInitializerFailureClosesChannel(t *testing.T) {
	cause := errors.New("cannot build pipeline")
	ch, err := NewEmbeddedChannel(NewInitializer(func(*Channel) error { return cause }))
	require.NoError(t, err)

	require.False(t, ch.IsOpen())
	require.True(t, ch.CloseFuture().IsDone())
}
