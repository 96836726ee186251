package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/binlog"
	"github.com/sultanlodh/Stream/internal/position"
	"github.com/sultanlodh/Stream/internal/service/pivot"
)

var master = position.Position{File: "mysql-bin.000004", Pos: 157}

type scriptedSource struct {
	events  []binlog.Event
	err     error
	drained func()

	opened position.Position
	closed bool
}

func (s *scriptedSource) Open(_ context.Context, from position.Position) (position.Position, error) {
	if from.IsZero() {
		from = master
	}
	s.opened = from
	return from, nil
}

func (s *scriptedSource) Next(ctx context.Context) (binlog.Event, error) {
	if len(s.events) > 0 {
		ev := s.events[0]
		s.events = s.events[1:]
		return ev, nil
	}
	if s.err != nil {
		return binlog.Event{}, s.err
	}
	if s.drained != nil {
		s.drained()
	}
	<-ctx.Done()
	return binlog.Event{}, ctx.Err()
}

func (s *scriptedSource) Close() { s.closed = true }

type memStore struct {
	mu    sync.Mutex
	pos   position.Position
	found bool
	saves []position.Position
}

func (m *memStore) Load(context.Context) (position.Position, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos, m.found, nil
}

func (m *memStore) Save(_ context.Context, p position.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos, m.found = p, true
	m.saves = append(m.saves, p)
	return nil
}

func (m *memStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos, m.found = position.Position{}, false
	return nil
}

type fakeApplier struct {
	applied []binlog.Change
	failOn  string
}

func (a *fakeApplier) Apply(_ context.Context, c binlog.Change) (pivot.Result, error) {
	if c.Table == a.failOn {
		return pivot.Result{}, errors.New("duplicate entry")
	}
	a.applied = append(a.applied, c)
	return pivot.Result{Table: c.Table, Action: c.Action, Handled: c.Table != "other", Affected: 1}, nil
}

func at(pos uint32) position.Position {
	return position.Position{File: "mysql-bin.000004", Pos: pos}
}

func changeEvent(table string, pos uint32) binlog.Event {
	return binlog.Event{
		Change: &binlog.Change{
			Schema:    "inventory",
			Table:     table,
			Action:    binlog.ActionInsert,
			Rows:      []binlog.Row{{"orderId": int32(1)}},
			Position:  at(pos),
			Timestamp: time.Now().Add(-time.Second),
		},
		Position: at(pos),
	}
}

func commitEvent(pos uint32) binlog.Event {
	return binlog.Event{Commit: true, Position: at(pos)}
}

func newTestProcessor(t *testing.T, src Source, app Applier, store position.Store, opts Options) (*Processor, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	opts.MeterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	p, err := New(src, app, store, zap.NewNop(), opts)
	require.NoError(t, err)
	return p, reader
}

func counter(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func runUntilDrained(t *testing.T, p *Processor, src *scriptedSource) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src.drained = cancel

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("processor did not stop")
		return nil
	}
}

func TestRunAppliesChangesAndCheckpointsOnCommit(t *testing.T) {
	src := &scriptedSource{events: []binlog.Event{
		changeEvent("table1", 300),
		changeEvent("table2", 400),
		commitEvent(431),
		changeEvent("other", 500),
		commitEvent(560),
	}}
	store := &memStore{pos: at(200), found: true}
	app := &fakeApplier{}
	p, reader := newTestProcessor(t, src, app, store, Options{})

	err := runUntilDrained(t, p, src)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, at(200), src.opened)
	assert.True(t, src.closed)
	assert.Len(t, app.applied, 3)
	assert.Equal(t, []position.Position{at(431), at(560)}, store.saves)

	st := p.Status()
	assert.False(t, st.Running)
	assert.Equal(t, at(560), st.Position)
	assert.Equal(t, uint64(2), st.Applied)
	assert.Equal(t, uint64(2), st.Checkpoints)
	assert.Empty(t, st.LastError)

	assert.Equal(t, int64(2), counter(t, reader, "stream_changes_applied_total"))
	assert.Equal(t, int64(2), counter(t, reader, "stream_checkpoints_total"))
	assert.Equal(t, int64(0), counter(t, reader, "stream_changes_failed_total"))
}

func TestRunWithoutCheckpointStartsAtMaster(t *testing.T) {
	src := &scriptedSource{}
	store := &memStore{}
	p, _ := newTestProcessor(t, src, &fakeApplier{}, store, Options{})

	err := runUntilDrained(t, p, src)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, master, src.opened)
	assert.Equal(t, []position.Position{master}, store.saves)
}

func TestRunStopsOnApplyFailure(t *testing.T) {
	src := &scriptedSource{events: []binlog.Event{
		changeEvent("table1", 300),
		commitEvent(331),
		changeEvent("table2", 400),
		commitEvent(431),
	}}
	store := &memStore{pos: at(200), found: true}
	p, reader := newTestProcessor(t, src, &fakeApplier{failOn: "table2"}, store, Options{})

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply table2 insert")

	assert.Equal(t, []position.Position{at(331)}, store.saves, "the failed transaction must be replayed")
	st := p.Status()
	assert.False(t, st.Running)
	assert.Equal(t, uint64(1), st.Failed)
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, int64(1), counter(t, reader, "stream_changes_failed_total"))
}

func TestRunSkipsFailedChangesWhenConfigured(t *testing.T) {
	src := &scriptedSource{events: []binlog.Event{
		changeEvent("table2", 400),
		commitEvent(431),
	}}
	store := &memStore{pos: at(200), found: true}
	p, _ := newTestProcessor(t, src, &fakeApplier{failOn: "table2"}, store, Options{SkipFailed: true})

	err := runUntilDrained(t, p, src)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []position.Position{at(431)}, store.saves)
	assert.Equal(t, uint64(1), p.Status().Failed)
}

func TestRunReturnsSourceErrors(t *testing.T) {
	src := &scriptedSource{err: errors.New("connection reset")}
	p, _ := newTestProcessor(t, src, &fakeApplier{}, &memStore{pos: at(200), found: true}, Options{})

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, p.Status().LastError, "connection reset")
	assert.True(t, src.closed)
}

func TestWatchReportsRunningState(t *testing.T) {
	src := &scriptedSource{}
	p, _ := newTestProcessor(t, src, &fakeApplier{}, &memStore{pos: at(200), found: true}, Options{})

	var mu sync.Mutex
	var states []bool
	p.Watch(func(running bool) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, running)
	})

	_ = runUntilDrained(t, p, src)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true, false}, states)
}
