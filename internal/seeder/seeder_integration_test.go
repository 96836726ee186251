//go:build integration

package seeder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/entity"
	"github.com/sultanlodh/Stream/internal/seeder"
	"github.com/sultanlodh/Stream/internal/testsupport/mysqltest"
)

func TestSeedIsIdempotent(t *testing.T) {
	srv := mysqltest.Start(t)
	s := seeder.New(srv.Conns, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.All(ctx))
	require.NoError(t, s.All(ctx))

	orders, err := srv.Conns.Reader.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seeder.SampleOrders()), orders)

	statuses, err := srv.Conns.Reader.NewSelect().Model((*entity.OrderStatusEvent)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seeder.SampleStatuses()), statuses)

	pivots, err := srv.Conns.Reader.NewSelect().Model((*entity.OrderPivot)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pivots)
}

func TestReplicaUserGrantsReplication(t *testing.T) {
	srv := mysqltest.Start(t)
	s := seeder.New(srv.Conns, zap.NewNop())
	ctx := context.Background()

	replica := config.Replica{User: "replica", Password: "replica", Host: "%"}
	require.NoError(t, s.ReplicaUser(ctx, replica))
	require.NoError(t, s.ReplicaUser(ctx, replica))

	rows, err := srv.Conns.Writer.QueryContext(ctx, "SHOW GRANTS FOR 'replica'@'%'")
	require.NoError(t, err)
	defer rows.Close()

	var grants []string
	for rows.Next() {
		var g string
		require.NoError(t, rows.Scan(&g))
		grants = append(grants, g)
	}
	require.NoError(t, rows.Err())
	require.NotEmpty(t, grants)
	assert.Contains(t, grants[0], "REPLICATION SLAVE")
	assert.Contains(t, grants[0], "REPLICATION CLIENT")
}
