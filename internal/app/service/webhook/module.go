package webhook

import "go.uber.org/fx"

// Module exposes the webhook reconciler and health monitor via Fx.
var Module = fx.Options(
	fx.Provide(NewReconciler),
	fx.Provide(NewMonitor),
)
