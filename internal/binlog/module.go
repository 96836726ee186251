package binlog

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sultanlodh/Stream/internal/config"
	"github.com/sultanlodh/Stream/internal/database"
)

// Module provides the binlog stream to Fx.
var Module = fx.Provide(New)

// New builds a stream for the configured source, resolving column names through the
// reader connection when the binlog lacks them.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) *Stream {
	return NewStream(cfg.Binlog, NewSchemaColumnLoader(conns.Reader), logger)
}
