//go:build integration

package migration_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sultanlodh/Stream/internal/entity"
	"github.com/sultanlodh/Stream/internal/testsupport/mysqltest"
)

func TestSchemaConstraints(t *testing.T) {
	srv := mysqltest.Start(t)
	db := srv.Conns.Writer
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "INSERT INTO table1 (orderId, orderItem, customerName, orderDate) VALUES (1, 'Laptop', 'Alice', '2024-05-01')")
	require.NoError(t, err)

	t.Run("status for unknown order violates the foreign key", func(t *testing.T) {
		_, err := db.ExecContext(ctx, "INSERT INTO table2 (orderId, orderStatus, addDate) VALUES (99, 1, '2024-05-01')")
		assert.Error(t, err)
	})

	t.Run("status outside 1..5 violates the check", func(t *testing.T) {
		for _, status := range []int{0, 6} {
			_, err := db.ExecContext(ctx, "INSERT INTO table2 (orderId, orderStatus, addDate) VALUES (1, ?, '2024-05-01')", status)
			assert.Error(t, err, "status %d", status)
		}
	})

	t.Run("repeated status rows are allowed", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := db.ExecContext(ctx, "INSERT INTO table2 (orderId, orderStatus, addDate) VALUES (1, 2, '2024-05-02')")
			assert.NoError(t, err)
		}
	})

	t.Run("duplicate order id violates the primary key", func(t *testing.T) {
		_, err := db.ExecContext(ctx, "INSERT INTO table1 (orderId, orderItem) VALUES (1, 'Phone')")
		assert.Error(t, err)
	})

	t.Run("duplicate pivot order id violates the unique key", func(t *testing.T) {
		_, err := db.ExecContext(ctx, "INSERT INTO table3 (orderId) VALUES (1)")
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, "INSERT INTO table3 (orderId) VALUES (1)")
		assert.Error(t, err)
	})

	t.Run("pivot statuses default to unset", func(t *testing.T) {
		var pivot entity.OrderPivot
		require.NoError(t, db.NewSelect().Model(&pivot).Where("orderId = ?", 1).Scan(ctx))
		for _, s := range entity.AllStatuses() {
			assert.False(t, pivot.Reached(s))
		}
		assert.Equal(t, entity.StatusUnset, pivot.OrderStatus5)
	})
}
