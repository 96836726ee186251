package pivot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/messaging"
	servicepivot "github.com/sultanlodh/Stream/internal/service/pivot"
)

type fakeRefresher struct {
	ids []int64
	err error
}

func (f *fakeRefresher) Refresh(_ context.Context, orderID int64) error {
	f.ids = append(f.ids, orderID)
	return f.err
}

func message(t *testing.T, event servicepivot.PivotChangedEvent) messaging.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return messaging.Message{Key: event.Key(), Value: payload}
}

func TestHandlerRefreshesOrder(t *testing.T) {
	refresher := &fakeRefresher{}
	handler := NewHandler(refresher, zap.NewNop())

	err := handler(context.Background(), message(t, servicepivot.PivotChangedEvent{OrderID: 7, Action: "insert", Source: "table2"}))

	require.NoError(t, err)
	assert.Equal(t, []int64{7}, refresher.ids)
}

func TestHandlerPropagatesRefreshError(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("db down")}
	handler := NewHandler(refresher, zap.NewNop())

	err := handler(context.Background(), message(t, servicepivot.PivotChangedEvent{OrderID: 3}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh order 3")
}

func TestHandlerDropsMalformedPayload(t *testing.T) {
	refresher := &fakeRefresher{}
	handler := NewHandler(refresher, zap.NewNop())

	err := handler(context.Background(), messaging.Message{Value: []byte("{not json")})

	require.NoError(t, err)
	assert.Empty(t, refresher.ids)
}
