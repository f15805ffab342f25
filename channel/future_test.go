package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFutureCompletesOnce(t *testing.T) {
	f := NewFuture(nil)
	require.False(t, f.IsDone())
	require.True(t, f.Fail(errors.New("first")))
	require.False(t, f.Succeed())
	require.True(t, f.IsDone())
	require.EqualError(t, f.Err(), "first")
}

func TestFutureListeners(t *testing.T) {
	f := NewFuture(nil)
	var calls []string
	f.AddListener(func(*Future) { calls = append(calls, "before") })
	f.Succeed()
	f.AddListener(func(*Future) { calls = append(calls, "after") })
	require.Equal(t, []string{"before", "after"}, calls)
}

func TestFutureAwaitHonoursContext(t *testing.T) {
	f := NewFuture(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, f.Await(ctx), context.DeadlineExceeded)

	go f.Succeed()
	require.NoError(t, f.Await(testContext(t)))
}

func TestCloseOnFailure(t *testing.T) {
	ch := newTestChannel(t)
	f := FailedFuture(ch.Channel, errors.New("bind failed"))
	f.AddListener(CloseOnFailure)
	require.False(t, ch.IsOpen())

	ok := newTestChannel(t)
	SucceededFuture(ok.Channel).AddListener(CloseOnFailure)
	require.True(t, ok.IsOpen())
}
