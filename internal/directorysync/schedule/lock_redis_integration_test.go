//go:build integration

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirsync/pkg/testutil/containers"
)

func TestRedisLocker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	a := NewRedisLocker(rc.Client)
	b := NewRedisLocker(rc.Client)

	unlock, ok, err := a.TryLock(ctx, "dirsync:test", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx, "dirsync:test", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder is rejected")

	require.NoError(t, unlock(ctx))
	unlockB, ok, err := b.TryLock(ctx, "dirsync:test", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, unlock(ctx), "stale unlock never deletes another holder's key")
	_, ok, err = a.TryLock(ctx, "dirsync:test", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, unlockB(ctx))
}

func TestRedisLockerExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	l := NewRedisLocker(rc.Client)

	_, ok, err := l.TryLock(ctx, "dirsync:ttl", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, err := l.TryLock(ctx, "dirsync:ttl", time.Minute)
		return err == nil && ok
	}, 5*time.Second, 50*time.Millisecond)
}
