package pivot

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	pivotsvc "github.com/sultanlodh/Stream/internal/service/pivot"
)

// Module wires HTTP pivot handlers.
var Module = fx.Options(
	fx.Provide(func(svc *pivotsvc.Service) *Handler { return NewHandler(svc) }),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
