package capacity

import "go.uber.org/fx"

var Module = fx.Module("capacity.service",
	fx.Provide(New),
)
