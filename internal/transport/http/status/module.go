package status

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/sultanlodh/Stream/internal/processor"
)

// Module wires readiness and checkpoint endpoints.
var Module = fx.Options(
	fx.Provide(func(p *processor.Processor) *Handler { return NewHandler(p) }),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
