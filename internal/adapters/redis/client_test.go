package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/internal/testsupport"
	"tiergate/pkg/errors"
)

func TestLock_Exclusive(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	ctx := context.Background()

	first, err := client.AcquireLock(ctx, "session:s1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "session:s1", first.Key())

	_, err = client.AcquireLock(ctx, "session:s1", time.Minute)
	assert.ErrorIs(t, err, errors.ErrLockNotAcquired)

	require.NoError(t, client.ReleaseLock(ctx, first))

	second, err := client.AcquireLock(ctx, "session:s1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, client.ReleaseLock(ctx, second))
}

func TestLock_StaleReleaseKeepsNewHolder(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	ctx := context.Background()

	stale, err := client.AcquireLock(ctx, "session:s2", 50*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	holder, err := client.AcquireLock(ctx, "session:s2", time.Minute)
	require.NoError(t, err)

	require.NoError(t, client.ReleaseLock(ctx, stale))

	_, err = client.AcquireLock(ctx, "session:s2", time.Minute)
	assert.ErrorIs(t, err, errors.ErrLockNotAcquired)
	require.NoError(t, client.ReleaseLock(ctx, holder))
}
