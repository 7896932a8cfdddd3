package verification

import "go.uber.org/fx"

// Module exposes the payment verification service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
