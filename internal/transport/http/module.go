package http

import (
	"go.uber.org/fx"

	pivottransport "github.com/sultanlodh/Stream/internal/transport/http/pivot"
	statustransport "github.com/sultanlodh/Stream/internal/transport/http/status"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	pivottransport.Module,
	statustransport.Module,
)
