// Package processor drives the binlog stream into the pivot projection and keeps the
// checkpoint.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/binlog"
	"github.com/sultanlodh/Stream/internal/position"
	"github.com/sultanlodh/Stream/internal/service/pivot"
)

// Source yields binlog events from a start position.
type Source interface {
	Open(ctx context.Context, from position.Position) (position.Position, error)
	Next(ctx context.Context) (binlog.Event, error)
	Close()
}

// Applier projects one change.
type Applier interface {
	Apply(ctx context.Context, change binlog.Change) (pivot.Result, error)
}

// Status is a snapshot of the processor state.
type Status struct {
	Running     bool              `json:"running"`
	Since       time.Time         `json:"since,omitempty"`
	Position    position.Position `json:"position"`
	LastCommit  time.Time         `json:"lastCommit,omitempty"`
	LastError   string            `json:"lastError,omitempty"`
	Applied     uint64            `json:"applied"`
	Failed      uint64            `json:"failed"`
	Checkpoints uint64            `json:"checkpoints"`
}

// Options tunes a Processor.
type Options struct {
	// SkipFailed logs and skips changes that fail to apply instead of stopping.
	SkipFailed    bool
	MeterProvider metric.MeterProvider
}

// Processor reads changes, applies them, and checkpoints after each commit.
type Processor struct {
	source  Source
	applier Applier
	store   position.Store
	logger  *zap.Logger
	metrics *metrics
	opts    Options
	now     func() time.Time

	mu       sync.RWMutex
	status   Status
	watchers []func(running bool)
}

// New builds a Processor.
func New(source Source, applier Applier, store position.Store, logger *zap.Logger, opts Options) (*Processor, error) {
	m, err := newMetrics(opts.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("processor metrics: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		source:  source,
		applier: applier,
		store:   store,
		logger:  logger,
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}, nil
}

// Run processes events until ctx is done or an error occurs. It always returns a
// non-nil error; ctx.Err() on shutdown.
func (p *Processor) Run(ctx context.Context) error {
	from, found, err := p.store.Load(ctx)
	if err != nil {
		return p.fail(fmt.Errorf("load checkpoint: %w", err))
	}
	if found {
		p.logger.Info("resuming from checkpoint", zap.Stringer("position", from))
	} else {
		p.logger.Info("no checkpoint; starting from the current master position")
	}

	start, err := p.source.Open(ctx, from)
	if err != nil {
		return p.fail(fmt.Errorf("open binlog: %w", err))
	}
	defer p.source.Close()

	if !found {
		if err := p.store.Save(ctx, start); err != nil {
			return p.fail(fmt.Errorf("save initial checkpoint: %w", err))
		}
	}

	p.setRunning(true, start)
	defer p.setRunning(false, position.Position{})

	for {
		ev, err := p.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return p.fail(fmt.Errorf("read binlog: %w", err))
		}

		switch {
		case ev.Change != nil:
			if err := p.apply(ctx, *ev.Change); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return p.fail(err)
			}
		case ev.Commit:
			if err := p.store.Save(ctx, ev.Position); err != nil {
				return p.fail(fmt.Errorf("save checkpoint %s: %w", ev.Position, err))
			}
			p.metrics.recordCheckpoint(ctx)
			p.mu.Lock()
			p.status.Position = ev.Position
			p.status.LastCommit = p.now().UTC()
			p.status.Checkpoints++
			p.mu.Unlock()
		}
	}
}

func (p *Processor) apply(ctx context.Context, change binlog.Change) error {
	res, err := p.applier.Apply(ctx, change)
	if err != nil {
		p.metrics.recordFailed(ctx, change.Table, string(change.Action))
		p.mu.Lock()
		p.status.Failed++
		p.mu.Unlock()

		if p.opts.SkipFailed && !errors.Is(err, context.Canceled) {
			p.logger.Error("skipping change that failed to apply",
				zap.String("table", change.Table),
				zap.String("action", string(change.Action)),
				zap.Stringer("position", change.Position),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("apply %s %s at %s: %w", change.Table, change.Action, change.Position, err)
	}
	if !res.Handled {
		return nil
	}

	lag := -1.0
	if !change.Timestamp.IsZero() {
		lag = p.now().Sub(change.Timestamp).Seconds()
	}
	p.metrics.recordApplied(ctx, change.Table, string(change.Action), lag)
	p.mu.Lock()
	p.status.Applied++
	p.mu.Unlock()

	p.logger.Debug("change applied",
		zap.String("table", change.Table),
		zap.String("action", string(change.Action)),
		zap.Int64s("orders", res.Orders),
		zap.Int64("affected", res.Affected),
	)
	return nil
}

// Status returns a snapshot of the processor state.
func (p *Processor) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Watch registers fn to be called whenever the processor starts or stops running.
func (p *Processor) Watch(fn func(running bool)) {
	p.mu.Lock()
	p.watchers = append(p.watchers, fn)
	running := p.status.Running
	p.mu.Unlock()
	fn(running)
}

func (p *Processor) setRunning(running bool, at position.Position) {
	p.mu.Lock()
	p.status.Running = running
	if running {
		p.status.Since = p.now().UTC()
		p.status.Position = at
		p.status.LastError = ""
	}
	watchers := append([]func(bool){}, p.watchers...)
	p.mu.Unlock()

	for _, fn := range watchers {
		fn(running)
	}
}

func (p *Processor) fail(err error) error {
	p.mu.Lock()
	p.status.LastError = err.Error()
	p.mu.Unlock()
	return err
}
