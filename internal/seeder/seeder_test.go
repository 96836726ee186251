package seeder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sultanlodh/Stream/internal/config"
)

func TestSampleStatusesReferenceSeededOrders(t *testing.T) {
	orders := map[int64]bool{}
	for _, o := range SampleOrders() {
		orders[o.OrderID] = true
	}
	require.NotEmpty(t, orders)

	for _, s := range SampleStatuses() {
		assert.True(t, orders[s.OrderID], "status %d references order %d", s.ID, s.OrderID)
		assert.True(t, s.OrderStatus.Valid())
	}
}

func TestReplicaUserRejectsUnsafeAccounts(t *testing.T) {
	s := &Seeder{}
	cases := map[string]config.Replica{
		"empty user":      {User: "", Password: "x", Host: "%"},
		"quoted user":     {User: "rep'lica", Password: "x", Host: "%"},
		"host with space": {User: "replica", Password: "x", Host: "10.0.0.1 OR 1"},
		"empty password":  {User: "replica", Password: "", Host: "%"},
	}
	for name, replica := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.ReplicaUser(context.Background(), replica))
		})
	}
}
