package rollout

import (
	"hash/fnv"

	"github.com/samber/lo"
	"go.uber.org/zap"

	cfgpkg "github.com/prepstack/billing/pkg/config"
)

// Service answers the two gating questions of the payment flow: is the
// feature globally enabled, and is this user in the rollout cohort. Cohort
// membership is an allowlist check plus a stable percentage bucket over the
// user ID; decisions are cached for the cache's TTL.
type Service struct {
	cfg   *cfgpkg.Config
	cache *Cache
	log   *zap.SugaredLogger
}

func NewService(cfg *cfgpkg.Config, cache *Cache, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, cache: cache, log: log}
}

func (s *Service) Enabled() bool {
	return s.cfg.Payments.Enabled
}

func (s *Service) UserInRollout(userID, email string) bool {
	// Allowlist admission depends on the email, which can differ between
	// calls for the same user, so it is checked on every call and never
	// cached. Only the bucket decision, a pure function of the user ID,
	// goes through the cache.
	p := s.cfg.Payments
	if lo.Contains(p.RolloutAllowlist, userID) || lo.Contains(p.RolloutAllowlist, email) {
		return true
	}
	if in, ok := s.cache.Get(userID); ok {
		return in
	}
	in := s.decide(userID)
	s.cache.Set(userID, in)
	return in
}

func (s *Service) decide(userID string) bool {
	p := s.cfg.Payments
	if p.RolloutPercent >= 100 {
		return true
	}
	if p.RolloutPercent <= 0 {
		return false
	}
	return bucket(userID) < p.RolloutPercent
}

// bucket maps a user ID to a stable 0..99 slot.
func bucket(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % 100)
}
