package processor

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/binlog"
	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/database"
	"github.com/sultanlodh/Stream/internal/observability"
	"github.com/sultanlodh/Stream/internal/position"
	"github.com/sultanlodh/Stream/internal/service/pivot"
)

// Module wires the processor and runs it under supervision for the app lifetime.
var Module = fx.Options(
	fx.Provide(NewFromConfig, NewSupervisorFromConfig),
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, sup *Supervisor, logger *zap.Logger) {
		if !cfg.Processor.Enabled {
			logger.Info("processor disabled")
			return
		}
		lc.Append(fx.Hook{
			OnStart: sup.Start,
			OnStop:  sup.Stop,
		})
	}),
)

// NewFromConfig builds the Processor over the binlog stream and pivot service.
func NewFromConfig(cfg config.Config, stream *binlog.Stream, svc *pivot.Service, store position.Store, obs *observability.Manager, logger *zap.Logger) (*Processor, error) {
	return New(stream, svc, store, logger.Named("processor"), Options{
		SkipFailed:    cfg.Processor.SkipFailed,
		MeterProvider: obs.MeterProvider(),
	})
}

// NewSupervisorFromConfig guards the processor with the writer connection's named lock.
func NewSupervisorFromConfig(cfg config.Config, p *Processor, conns *database.Connections, logger *zap.Logger) *Supervisor {
	return NewSupervisor(p, conns.Writer, cfg.Processor, logger.Named("supervisor"))
}
