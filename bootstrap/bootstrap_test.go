package bootstrap

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
	"github.com/mohitkumar/mnet/testutil"
	"github.com/mohitkumar/mnet/transport"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func noopInitializer() channel.Handler {
	return channel.NewInitializer(func(*channel.Channel) error { return nil })
}

func TestBootstrapValidation(t *testing.T) {
	g := testutil.NewGroup(t, 1)
	ctx := testutil.Context(t)

	tests := []struct {
		name string
		b    *Bootstrap
		want string
	}{
		{
			name: "no group",
			b:    New(nil).Channel(channel.New(transport.NewSocket(nil), nil)).Initializer(noopInitializer()).LocalAddr("127.0.0.1:0"),
			want: "event loop group not set",
		},
		{
			name: "no channel",
			b:    New(nil).Group(g).Initializer(noopInitializer()).LocalAddr("127.0.0.1:0"),
			want: "channel not set",
		},
		{
			name: "no initializer",
			b:    New(nil).Group(g).Channel(channel.New(transport.NewSocket(nil), nil)).LocalAddr("127.0.0.1:0"),
			want: "initializer not set",
		},
		{
			name: "no local address",
			b:    New(nil).Group(g).Channel(channel.New(transport.NewSocket(nil), nil)).Initializer(noopInitializer()),
			want: "local address not set",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.b.Bind(ctx).Err()
			require.ErrorIs(t, err, errs.ErrIllegalState)
			require.Contains(t, err.Error(), tt.want)
		})
	}

	err := New(nil).Group(g).Channel(channel.New(transport.NewSocket(nil), nil)).Initializer(noopInitializer()).Connect(ctx).Err()
	require.ErrorIs(t, err, errs.ErrIllegalState)
	require.Contains(t, err.Error(), "remote address not set")
}

func TestBootstrapRejectsUsedChannels(t *testing.T) {
	g := testutil.NewGroup(t, 1)
	ctx := testutil.Context(t)

	registered := channel.New(transport.NewSocket(nil), nil)
	testutil.Await(t, g.Register(registered))
	err := New(nil).Group(g).Channel(registered).Initializer(noopInitializer()).RemoteAddr("127.0.0.1:1").Connect(ctx).Err()
	require.ErrorIs(t, err, errs.ErrIllegalState)

	closed := channel.New(transport.NewSocket(nil), nil)
	testutil.Await(t, closed.Close())
	err = New(nil).Group(g).Channel(closed).Initializer(noopInitializer()).RemoteAddr("127.0.0.1:1").Connect(ctx).Err()
	require.ErrorIs(t, err, errs.ErrChannelClosed)
}

func TestBootstrapBindAndConnect(t *testing.T) {
	g := testutil.NewGroup(t, 2)
	ctx := testutil.Context(t)

	server := channel.New(transport.NewServer(transport.ServerConfig{
		ChildGroup: g,
		ChildInitializer: channel.NewInitializer(func(ch *channel.Channel) error {
			return ch.Pipeline().AddLast("echo", channel.InboundFunc(func(ctx *channel.Context, msg any) error {
				return ctx.WriteAndFlush(msg)
			}))
		}),
	}), nil)
	sb := New(testutil.NewLogger(t)).Group(g).Channel(server).Initializer(noopInitializer()).LocalAddr("127.0.0.1:0")
	require.NoError(t, sb.Bind(ctx).Await(ctx))
	require.True(t, server.IsActive())
	require.Empty(t, server.Pipeline().Names(), "the initializer removes itself")

	got := testutil.NewCollector()
	client := channel.New(transport.NewSocket(nil), nil)
	cb := New(testutil.NewLogger(t)).
		Group(g).
		Channel(client).
		Option(channel.OptionTCPNoDelay, true).
		Option(channel.OptionReadBufferSize, 512).
		Initializer(channel.NewInitializer(func(ch *channel.Channel) error {
			return ch.Pipeline().AddLast("collect", got.Handler())
		})).
		RemoteAddr(server.LocalAddr().String())
	require.NoError(t, cb.Connect(ctx).Await(ctx))

	v, ok := client.Option(channel.OptionReadBufferSize)
	require.True(t, ok)
	require.Equal(t, 512, v)

	testutil.Await(t, client.WriteAndFlush("hello"))
	require.Equal(t, []byte("hello"), got.NextBytes(t, 5))

	require.NoError(t, cb.Shutdown(ctx))
	require.False(t, client.IsOpen())
	require.False(t, server.IsOpen())
}

func TestBootstrapClosesChannelWhenBindFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	g := testutil.NewGroup(t, 1)
	ctx := testutil.Context(t)
	ch := channel.New(transport.NewServer(transport.ServerConfig{}), nil)

	err = New(nil).Group(g).Channel(ch).Initializer(noopInitializer()).LocalAddr(ln.Addr().String()).Bind(ctx).Await(ctx)
	require.Error(t, err)
	require.NoError(t, ch.CloseFuture().Await(ctx))
	require.False(t, ch.IsOpen())
}

func TestBootstrapWarnsOnUnknownOption(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	g := testutil.NewGroup(t, 1)
	ctx := testutil.Context(t)

	ch := channel.New(transport.NewServer(transport.ServerConfig{}), nil)
	b := New(zap.New(core)).
		Group(g).
		Channel(ch).
		Option(channel.OptionKeepAlive, true).
		Option(channel.OptionLinger, 1).
		Option(channel.OptionLinger, nil).
		Initializer(noopInitializer()).
		LocalAddr("127.0.0.1:0")
	require.NoError(t, b.Bind(ctx).Await(ctx))

	require.Equal(t, []channel.Option{channel.OptionKeepAlive}, b.optionOrder)
	entries := logs.FilterMessage("unknown channel option").All()
	require.Len(t, entries, 1)
	require.Equal(t, string(channel.OptionKeepAlive), entries[0].ContextMap()["option"])
}

func TestBootstrapBindFailsWhenInitializerFails(t *testing.T) {
	g := testutil.NewGroup(t, 1)
	ctx := testutil.Context(t)

	boom := errors.New("boom")
	ch := channel.New(transport.NewServer(transport.ServerConfig{}), nil)
	err := New(nil).
		Group(g).
		Channel(ch).
		Initializer(channel.NewInitializer(func(*channel.Channel) error { return boom })).
		LocalAddr("127.0.0.1:0").
		Bind(ctx).
		Await(ctx)
	require.ErrorIs(t, err, errs.ErrChannelClosed)
	require.False(t, ch.IsOpen())
	require.Nil(t, ch.LocalAddr(), "no listener is opened")
}

func TestBootstrapClosesChannelWhenRegisterFails(t *testing.T) {
	g := channel.NewEventLoopGroup(1, nil)
	require.NoError(t, g.Shutdown(context.Background()))
	ctx := testutil.Context(t)

	ch := channel.New(transport.NewSocket(nil), nil)
	err := New(nil).Group(g).Channel(ch).Initializer(noopInitializer()).RemoteAddr("127.0.0.1:1").Connect(ctx).Await(ctx)
	require.ErrorIs(t, err, errs.ErrEventLoopShutdown)
	require.False(t, ch.IsOpen())
	require.Empty(t, ch.Pipeline().Names())
}
