package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestTokenSweeper_RunsOnEveryTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	calls := make(chan int64, 4)
	var n atomic.Int64

	sweep := func(context.Context) (int64, error) {
		c := n.Add(1)
		calls <- c
		if c == 1 {
			return 0, errors.New("db error: boom")
		}
		return 3, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewTokenSweeper(sweep, time.Hour, clock, discardLogger())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	for want := int64(1); want <= 2; want++ {
		clock.Advance(time.Hour)
		select {
		case got := <-calls:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("sweep %d did not run", want)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

func TestTokenSweeper_NoTickNoSweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls atomic.Int64
	sweep := func(context.Context) (int64, error) {
		calls.Add(1)
		return 0, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewTokenSweeper(sweep, time.Hour, clock, discardLogger())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(59 * time.Minute)
	cancel()
	<-done

	require.Zero(t, calls.Load())
}
