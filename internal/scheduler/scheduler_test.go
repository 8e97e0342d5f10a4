package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(Options{Spec: "every day"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNextHonoursLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	s, err := New(Options{Spec: "30 2 * * *", Location: ist}, zerolog.Nop())
	require.NoError(t, err)

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) // 05:30 IST
	next := s.Next(from)
	want := time.Date(2025, 3, 11, 2, 30, 0, 0, ist)
	assert.True(t, next.Equal(want), "got %s want %s", next, want)
}

func TestRunOnStartThenCancel(t *testing.T) {
	s, err := New(Options{Spec: "0 0 1 1 *", RunOnStart: true}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			calls.Add(1)
			cancel()
			return errors.New("logged, not fatal")
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	assert.Equal(t, int32(1), calls.Load())
}
