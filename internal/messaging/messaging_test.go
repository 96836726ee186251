package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/config"
)

func TestHeadersRoundTrip(t *testing.T) {
	assert.Nil(t, toKafkaHeaders(nil))
	assert.Nil(t, fromKafkaHeaders(nil))

	in := map[string]string{"event": "pivot.changed", "source": "table2"}
	assert.Equal(t, in, fromKafkaHeaders(toKafkaHeaders(in)))
	assert.Equal(t, map[string]string{"a": "1"}, fromKafkaHeaders([]kafka.Header{{Key: "a", Value: []byte("1")}}))
}

func TestNewClientDisabledIsNoop(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Messaging: config.Messaging{Enabled: false, Kafka: config.Kafka{Topic: "orders.pivot.changes"}}}

	client, err := NewClient(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "orders.pivot.changes", client.Topic())
	assert.NoError(t, client.Publish(context.Background(), Message{Value: []byte("x")}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, client.Consume(ctx, nil), context.DeadlineExceeded)
}

func TestNewClientUnknownDriver(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Messaging: config.Messaging{Enabled: true, Driver: "nats"}}

	_, err := NewClient(lc, cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestHandleWithRetryRedeliversUntilSuccess(t *testing.T) {
	calls := 0
	handler := func(context.Context, Message) error {
		calls++
		if calls < 3 {
			return errors.New("cache unavailable")
		}
		return nil
	}

	err := handleWithRetry(context.Background(), handler, Message{Offset: 42}, zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetryStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(context.Context, Message) error {
		calls++
		cancel()
		return errors.New("db down")
	}

	err := handleWithRetry(ctx, handler, Message{}, zap.NewNop())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
