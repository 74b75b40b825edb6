package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWaitAllRunsEveryFunc(t *testing.T) {
	var calls int32
	var g Group
	for _, name := range []string{"a", "b", "c"} {
		g.AddFunc(name, func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
	}
	require.NoError(t, g.RunWaitAll(context.Background()))
	assert.EqualValues(t, 3, calls)
}

func TestRunWaitAllDoesNotCancelSiblings(t *testing.T) {
	errFail := errors.New("fail")
	var slowFinished int32
	var g Group
	g.AddFunc("fast", func(ctx context.Context) error {
		return errFail
	})
	g.AddFunc("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
			atomic.StoreInt32(&slowFinished, 1)
			return nil
		}
	})

	err := g.RunWaitAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errFail)
	assert.Equal(t, "fast: fail", err.Error())
	assert.EqualValues(t, 1, slowFinished)
}

func TestRunWaitAllAggregatesInAddOrder(t *testing.T) {
	var g Group
	g.AddFunc("first", func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return errors.New("one")
	})
	g.AddFunc("ok", func(ctx context.Context) error { return nil })
	g.AddFunc("second", func(ctx context.Context) error {
		return errors.New("two")
	})

	err := g.RunWaitAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, "first: one\nsecond: two", err.Error())
}

func TestRunWaitAllPassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var g Group
	g.AddFunc("cancelled", func(ctx context.Context) error {
		return ctx.Err()
	})
	err := g.RunWaitAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWaitAllEmpty(t *testing.T) {
	var g Group
	assert.NoError(t, g.RunWaitAll(context.Background()))
}
