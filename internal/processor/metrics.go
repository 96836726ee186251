package processor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/sultanlodh/Stream/processor"

type metrics struct {
	applied     metric.Int64Counter
	failed      metric.Int64Counter
	checkpoints metric.Int64Counter
	lag         metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	applied, err := meter.Int64Counter("stream_changes_applied_total",
		metric.WithDescription("Row changes projected onto the pivot table."))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("stream_changes_failed_total",
		metric.WithDescription("Row changes that could not be projected."))
	if err != nil {
		return nil, err
	}
	checkpoints, err := meter.Int64Counter("stream_checkpoints_total",
		metric.WithDescription("Binlog positions saved after a committed transaction."))
	if err != nil {
		return nil, err
	}
	lag, err := meter.Float64Histogram("stream_change_lag_seconds",
		metric.WithDescription("Delay between a change being written to the binlog and applied."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &metrics{applied: applied, failed: failed, checkpoints: checkpoints, lag: lag}, nil
}

func changeAttrs(table, action string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("action", action),
	)
}

func (m *metrics) recordApplied(ctx context.Context, table, action string, lagSeconds float64) {
	m.applied.Add(ctx, 1, changeAttrs(table, action))
	if lagSeconds >= 0 {
		m.lag.Record(ctx, lagSeconds, changeAttrs(table, action))
	}
}

func (m *metrics) recordFailed(ctx context.Context, table, action string) {
	m.failed.Add(ctx, 1, changeAttrs(table, action))
}

func (m *metrics) recordCheckpoint(ctx context.Context) {
	m.checkpoints.Add(ctx, 1)
}
