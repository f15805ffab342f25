// Package bootstrap wires a channel to an event loop group, applies its
// options, installs its initializer and binds or connects it.
package bootstrap

import (
	"context"

	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
	"go.uber.org/zap"
)

// Bootstrap collects the settings for one channel. Setters return the
// Bootstrap so calls can be chained; nothing is checked until Bind or Connect.
type Bootstrap struct {
	logger *zap.Logger

	group       *channel.EventLoopGroup
	ch          *channel.Channel
	initializer channel.Handler
	options     map[channel.Option]any
	optionOrder []channel.Option
	localAddr   string
	remoteAddr  string
}

func New(logger *zap.Logger) *Bootstrap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrap{logger: logger, options: make(map[channel.Option]any)}
}

func (b *Bootstrap) Group(g *channel.EventLoopGroup) *Bootstrap {
	b.group = g
	return b
}

func (b *Bootstrap) Channel(ch *channel.Channel) *Bootstrap {
	b.ch = ch
	return b
}

// Option sets a channel option, applied in the order first set. A nil value
// removes the option.
func (b *Bootstrap) Option(opt channel.Option, value any) *Bootstrap {
	if value == nil {
		if _, ok := b.options[opt]; ok {
			delete(b.options, opt)
			for i, o := range b.optionOrder {
				if o == opt {
					b.optionOrder = append(b.optionOrder[:i], b.optionOrder[i+1:]...)
					break
				}
			}
		}
		return b
	}
	if _, ok := b.options[opt]; !ok {
		b.optionOrder = append(b.optionOrder, opt)
	}
	b.options[opt] = value
	return b
}

// Initializer sets the handler added to the pipeline before registration,
// typically a *channel.Initializer.
func (b *Bootstrap) Initializer(h channel.Handler) *Bootstrap {
	b.initializer = h
	return b
}

func (b *Bootstrap) LocalAddr(addr string) *Bootstrap {
	b.localAddr = addr
	return b
}

func (b *Bootstrap) RemoteAddr(addr string) *Bootstrap {
	b.remoteAddr = addr
	return b
}

// Bind registers the channel and binds it to the local address. The channel
// is closed if binding fails.
func (b *Bootstrap) Bind(ctx context.Context) *channel.Future {
	if err := b.validate(); err != nil {
		return channel.FailedFuture(b.ch, err)
	}
	if b.localAddr == "" {
		return channel.FailedFuture(b.ch, errs.ErrIllegalStatef("local address not set"))
	}
	if err := b.init(ctx); err != nil {
		return channel.FailedFuture(b.ch, err)
	}
	f := b.ch.Bind(b.localAddr)
	f.AddListener(channel.CloseOnFailure)
	return f
}

// Connect registers the channel and connects it to the remote address, from
// the local address when one is set. The channel is closed if connecting fails.
func (b *Bootstrap) Connect(ctx context.Context) *channel.Future {
	if err := b.validate(); err != nil {
		return channel.FailedFuture(b.ch, err)
	}
	if b.remoteAddr == "" {
		return channel.FailedFuture(b.ch, errs.ErrIllegalStatef("remote address not set"))
	}
	if err := b.init(ctx); err != nil {
		return channel.FailedFuture(b.ch, err)
	}
	f := b.ch.Connect(ctx, b.remoteAddr, b.localAddr)
	f.AddListener(channel.CloseOnFailure)
	return f
}

// Shutdown stops the event loop group, closing every channel on it.
func (b *Bootstrap) Shutdown(ctx context.Context) error {
	if b.group == nil {
		return nil
	}
	return b.group.Shutdown(ctx)
}

func (b *Bootstrap) validate() error {
	switch {
	case b.group == nil:
		return errs.ErrIllegalStatef("event loop group not set")
	case b.ch == nil:
		return errs.ErrIllegalStatef("channel not set")
	case b.initializer == nil:
		return errs.ErrIllegalStatef("initializer not set")
	}
	return nil
}

func (b *Bootstrap) init(ctx context.Context) error {
	ch := b.ch
	if ch.IsActive() {
		return errs.ErrIllegalStatef("channel already active: %s", ch)
	}
	if ch.IsRegistered() {
		return errs.ErrIllegalStatef("channel already registered: %s", ch)
	}
	if !ch.IsOpen() {
		return errs.ErrChannelClosed
	}

	if err := ch.Pipeline().AddLast("", b.initializer); err != nil {
		return err
	}
	for _, opt := range b.optionOrder {
		ok, err := ch.SetOption(opt, b.options[opt])
		if err != nil {
			b.logger.Warn("failed to set a channel option",
				zap.Stringer("channel", ch), zap.String("option", string(opt)), zap.Error(err))
		} else if !ok {
			b.logger.Warn("unknown channel option", zap.String("option", string(opt)), zap.Any("value", b.options[opt]))
		}
	}
	if err := b.group.Register(ch).Await(ctx); err != nil {
		// also drops the initializer with the rest of the pipeline
		_ = ch.Close()
		return err
	}
	return nil
}
