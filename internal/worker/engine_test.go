package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/messaging"
)

type feedClient struct {
	msgs []messaging.Message
}

func (f *feedClient) Publish(context.Context, ...messaging.Message) error { return nil }

func (f *feedClient) Consume(ctx context.Context, handler messaging.Handler) error {
	for _, msg := range f.msgs {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *feedClient) Topic() string { return "stream.pivot" }

func enabledConfig() config.Config {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers = config.Worker{Enabled: true, Concurrency: 1}
	return cfg
}

func TestDispatchRoutesByEventHeader(t *testing.T) {
	var got []string
	engine := NewEngine(Params{
		Client: &feedClient{},
		Logger: zap.NewNop(),
		Config: enabledConfig(),
		Registrations: []HandlerRegistration{
			{Event: "pivot.changed", Handler: func(_ context.Context, msg messaging.Message) error {
				got = append(got, string(msg.Key))
				return nil
			}},
			{Event: "", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})

	require.NoError(t, engine.Dispatch(context.Background(), messaging.Message{Key: []byte("a"), Headers: map[string]string{EventHeader: "pivot.changed"}}))
	require.NoError(t, engine.Dispatch(context.Background(), messaging.Message{Key: []byte("b"), Headers: map[string]string{EventHeader: "other"}}))
	require.NoError(t, engine.Dispatch(context.Background(), messaging.Message{Key: []byte("c")}))

	assert.Equal(t, []string{"a"}, got)
}

func TestEngineConsumesUntilStopped(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	client := &feedClient{msgs: []messaging.Message{
		{Key: []byte("1"), Headers: map[string]string{EventHeader: "pivot.changed"}},
		{Key: []byte("2"), Headers: map[string]string{EventHeader: "pivot.changed"}},
	}}
	engine := NewEngine(Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: enabledConfig(),
		Registrations: []HandlerRegistration{{Event: "pivot.changed", Handler: func(_ context.Context, msg messaging.Message) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, string(msg.Key))
			return nil
		}}},
	})

	require.NoError(t, engine.Start(context.Background()))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, engine.Stop(ctx))
}

func TestEngineDisabled(t *testing.T) {
	engine := NewEngine(Params{Client: &feedClient{}, Logger: zap.NewNop(), Config: config.Config{}})

	require.NoError(t, engine.Start(context.Background()))
	assert.Nil(t, engine.cancel)
	require.NoError(t, engine.Stop(context.Background()))
}
