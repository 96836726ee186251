package pivot

import "go.uber.org/fx"

// Module provides the pivot repository to Fx.
var Module = fx.Provide(NewRepository)
