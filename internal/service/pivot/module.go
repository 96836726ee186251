package pivot

import (
	"go.uber.org/fx"

	orderrepo "github.com/sultanlodh/Stream/internal/repository/order"
	pivotrepo "github.com/sultanlodh/Stream/internal/repository/pivot"
)

// Module provides the pivot service to Fx.
var Module = fx.Provide(
	func(r *pivotrepo.Repository) Repository { return r },
	func(r *orderrepo.Repository) OrderReader { return r },
	NewService,
)
