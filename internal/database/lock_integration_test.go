//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sultanlodh/Stream/internal/database"
	"github.com/sultanlodh/Stream/internal/testsupport/mysqltest"
)

func TestWithLockExcludesSecondHolder(t *testing.T) {
	srv := mysqltest.Start(t)
	ctx := context.Background()
	opts := database.LockOptions{PingInterval: 50 * time.Millisecond}

	var ran, contended bool
	err := database.WithLock(ctx, srv.Conns.Writer, "stream-processor", opts, func(ctx context.Context) {
		ran = true
		err := database.WithLock(ctx, srv.Conns.Writer, "stream-processor", opts, func(context.Context) {
			t.Error("second holder must not run")
		})
		contended = assert.ErrorIs(t, err, database.ErrLockNotAcquired)
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, contended)

	err = database.WithLock(ctx, srv.Conns.Writer, "stream-processor", opts, func(context.Context) { ran = false })
	require.NoError(t, err)
	assert.False(t, ran, "lock is released after the first holder returns")
}
