package echo

import (
	"errors"
	"testing"
	"time"

	"github.com/mohitkumar/mnet/channel"
	"github.com/mohitkumar/mnet/errs"
	"github.com/mohitkumar/mnet/testutil"
	"github.com/stretchr/testify/require"
)

func TestClientHandlerRejectsEmptyMessage(t *testing.T) {
	_, err := NewClientHandler(0, nil)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestClientHandlerSendsFirstMessage(t *testing.T) {
	h, err := NewClientHandler(4, nil)
	require.NoError(t, err)
	ch, err := channel.NewEmbeddedChannel(h)
	require.NoError(t, err)

	require.Equal(t, []byte{0, 1, 2, 3}, ch.ReadOutbound())

	ch.WriteInbound([]byte("pong"))
	require.Equal(t, []byte("pong"), ch.ReadOutbound())
	require.EqualValues(t, 4, h.Received())
}

func TestServerHandlerClosesOnException(t *testing.T) {
	ch, err := channel.NewEmbeddedChannel(NewServerHandler(nil))
	require.NoError(t, err)
	ch.WriteInbound([]byte("hi"))
	require.Equal(t, []byte("hi"), ch.ReadOutbound())

	ch.Pipeline().FireExceptionCaught(errors.New("reset by peer"))
	require.False(t, ch.IsOpen())
}

func TestEchoPingPongOverTCP(t *testing.T) {
	srv := testutil.StartTestServer(t, func(ch *channel.Channel) error {
		return ch.Pipeline().AddLast("echo", NewServerHandler(nil))
	})

	client, err := NewClientHandler(256, testutil.NewLogger(t))
	require.NoError(t, err)
	testutil.Connect(t, srv.Group, srv.Addr, func(ch *channel.Channel) error {
		return ch.Pipeline().AddLast("echo", client)
	})

	require.Eventually(t, func() bool { return client.Received() >= 256*4 }, testutil.DefaultTimeout, 10*time.Millisecond)
}
