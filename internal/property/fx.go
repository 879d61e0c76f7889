package property

import "go.uber.org/fx"

var Module = fx.Module("property",
	fx.Provide(NewValidator),
)
