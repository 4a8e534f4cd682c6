package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverPanic(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		defer RecoverPanic(ctx, "test-panic")
		panic("boom")
	})
}

func TestSafeGo(t *testing.T) {
	ctx := context.Background()

	done := make(chan struct{})
	SafeGo(ctx, "test-panic-goroutine", func() {
		defer close(done)
		panic("intentional panic")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
}

func TestSafeRun(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, SafeRun(ctx, "ok", func() error { return nil }))

	sentinel := errors.New("failed")
	assert.ErrorIs(t, SafeRun(ctx, "error", func() error { return sentinel }), sentinel)

	err := SafeRun(ctx, "panic", func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in task panic: boom")
}
