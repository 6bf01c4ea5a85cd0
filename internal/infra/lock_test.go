package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSingleFlight(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	release, err := l.Acquire(ctx, "reconcile", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "reconcile", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	_, err = l.Acquire(ctx, "other", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	_, err = l.Acquire(ctx, "reconcile", time.Minute)
	assert.NoError(t, err)
}

func TestLocalLockerExpiredHoldIsReplaced(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	_, err := l.Acquire(ctx, "job", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	_, err = l.Acquire(ctx, "job", time.Minute)
	assert.NoError(t, err)
}

func TestNewLockerWithoutRedisIsLocal(t *testing.T) {
	_, ok := NewLocker(nil).(*LocalLocker)
	assert.True(t, ok)
	assert.Nil(t, NewRedisClient("", "", 0))
}
