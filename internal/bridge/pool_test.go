package bridge

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoReturnsResult(t *testing.T) {
	p := NewPool(2)
	defer p.Shutdown()

	got, err := Do(context.Background(), p, func() (int, error) {
		return 41 + 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestShutdownDrainsInFlightWork(t *testing.T) {
	p := NewPool(2)

	var completed atomic.Int32
	futures := make([]*Future[int], 0, 5)
	for i := 0; i < 5; i++ {
		f, err := Submit(p, func() (int, error) {
			time.Sleep(20 * time.Millisecond)
			completed.Add(1)
			return 0, nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}

	p.Shutdown()

	require.Equal(t, int32(5), completed.Load())
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}
}

func TestSubmitAfterShutdownRejected(t *testing.T) {
	p := NewPool(1)
	p.Shutdown()

	_, err := Submit(p, func() (int, error) { return 0, nil })
	require.ErrorIs(t, err, ErrShutdown)

	_, err = Do(context.Background(), p, func() (int, error) { return 0, nil })
	require.ErrorIs(t, err, ErrShutdown)
}

func TestShutdownIsIdempotent(t *testing.T) {
	p := NewPool(1)
	p.Shutdown()
	p.Shutdown()
}

func TestAbandonedWaitDoesNotCancelTask(t *testing.T) {
	p := NewPool(1)
	defer p.Shutdown()

	started := make(chan struct{})
	var completed atomic.Bool

	f, err := Submit(p, func() (int, error) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		completed.Store(true)
		return 7, nil
	})
	require.NoError(t, err)

	<-started
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The task keeps running after the caller walked away.
	got, err := f.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, got)
	require.True(t, completed.Load())
}

func TestNilPoolRunsInline(t *testing.T) {
	got, err := Do(context.Background(), nil, func() (string, error) {
		return "inline", nil
	})
	require.NoError(t, err)
	require.Equal(t, "inline", got)
}
