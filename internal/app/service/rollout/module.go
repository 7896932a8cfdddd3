package rollout

import (
	"time"

	"go.uber.org/fx"
)

const defaultDecisionTTL = 5 * time.Minute

// Module exposes the rollout service via Fx.
var Module = fx.Options(
	fx.Provide(func() *Cache { return NewCache(defaultDecisionTTL) }),
	fx.Provide(NewService),
)
