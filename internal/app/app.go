package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"github.com/sultanlodh/Stream/internal/binlog"
	"github.com/sultanlodh/Stream/internal/cache"
	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/database"
	"github.com/sultanlodh/Stream/internal/logger"
	"github.com/sultanlodh/Stream/internal/messaging"
	"github.com/sultanlodh/Stream/internal/observability"
	"github.com/sultanlodh/Stream/internal/position"
	"github.com/sultanlodh/Stream/internal/processor"
	repositoryorder "github.com/sultanlodh/Stream/internal/repository/order"
	repositorypivot "github.com/sultanlodh/Stream/internal/repository/pivot"
	grpcserver "github.com/sultanlodh/Stream/internal/server/grpc"
	httpserver "github.com/sultanlodh/Stream/internal/server/http"
	servicepivot "github.com/sultanlodh/Stream/internal/service/pivot"
	transporthttp "github.com/sultanlodh/Stream/internal/transport/http"
	"github.com/sultanlodh/Stream/internal/worker"
	workerpivot "github.com/sultanlodh/Stream/internal/worker/pivot"
)

// Base is the minimum needed by one-shot CLI commands.
var Base = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
	fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
		fl := &fxevent.ZapLogger{Logger: l.Named("fx")}
		fl.UseLogLevel(zap.DebugLevel)
		return fl
	}),
)

// Core provides the modules shared by the processor and the worker.
var Core = fx.Options(
	Base,
	cache.Module,
	messaging.Module,
	observability.Module,
	position.Module,
	repositoryorder.Module,
	repositorypivot.Module,
	servicepivot.Module,
	binlog.Module,
)

// Processor runs the binlog projection together with its HTTP and gRPC probes.
var Processor = fx.Options(
	Core,
	processor.Module,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
	fx.Invoke(func(hs *health.Server, p *processor.Processor) {
		grpcserver.BindHealth(hs, p)
	}),
)

// Worker consumes the pivot change feed.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerpivot.Module,
)

// Module is the default application wiring.
var Module = Processor
