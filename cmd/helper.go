package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohitkumar/mnet/bootstrap"
	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/config"
	wiretap "github.com/mohitkumar/mnet/handler/logging"
	"github.com/mohitkumar/mnet/logging"
	"github.com/mohitkumar/mnet/transport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 5 * time.Second

// CommandHelper owns what every example command needs: the resolved config,
// a logger and the event loop group.
type CommandHelper struct {
	config.Config
	logger *zap.Logger
	group  *channel.EventLoopGroup
}

func NewCommandHelper(c config.Config) (*CommandHelper, error) {
	logger, err := logging.New(c.Log)
	if err != nil {
		return nil, err
	}
	return &CommandHelper{
		Config: c,
		logger: logger,
		group:  channel.NewEventLoopGroup(c.Loops, logger),
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withWiretap prepends a debug-level event logger to initPipeline.
func (h *CommandHelper) withWiretap(initPipeline func(ch *channel.Channel) error) *channel.Initializer {
	tap := wiretap.New(h.logger, zapcore.DebugLevel)
	return channel.NewInitializer(func(ch *channel.Channel) error {
		if err := ch.Pipeline().AddLast("wiretap", tap); err != nil {
			return err
		}
		return initPipeline(ch)
	})
}

// Serve binds a server on the configured address and blocks until ctx is
// done or the server channel closes.
func (h *CommandHelper) Serve(ctx context.Context, childInit func(ch *channel.Channel) error) error {
	srv := channel.New(transport.NewServer(transport.ServerConfig{
		ChildGroup:       h.group,
		ChildInitializer: h.withWiretap(childInit),
		ChildOptions:     h.Child.Options(),
		Logger:           h.logger,
	}), h.logger)

	b := bootstrap.New(h.logger).
		Group(h.group).
		Channel(srv).
		Initializer(wiretap.New(h.logger, zapcore.DebugLevel)).
		LocalAddr(h.Addr)
	defer h.shutdown(b)

	if err := b.Bind(ctx).Await(ctx); err != nil {
		return err
	}
	h.logger.Info("listening", zap.Stringer("addr", srv.LocalAddr()))

	select {
	case <-ctx.Done():
	case <-srv.CloseFuture().Done():
	}
	return nil
}

// Dial connects a client channel to the configured address.
func (h *CommandHelper) Dial(ctx context.Context, initPipeline func(ch *channel.Channel) error) (*channel.Channel, *bootstrap.Bootstrap, error) {
	ch := channel.New(transport.NewSocket(h.logger), h.logger)
	b := bootstrap.New(h.logger).
		Group(h.group).
		Channel(ch).
		Initializer(h.withWiretap(initPipeline)).
		RemoteAddr(h.Addr)
	for opt, v := range h.Child.Options() {
		b.Option(opt, v)
	}
	if err := b.Connect(ctx).Await(ctx); err != nil {
		h.shutdown(b)
		return nil, nil, err
	}
	return ch, b, nil
}

func (h *CommandHelper) shutdown(b *bootstrap.Bootstrap) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.Shutdown(ctx); err != nil {
		h.logger.Warn("shutdown", zap.Error(err))
	}
	_ = h.logger.Sync()
}
