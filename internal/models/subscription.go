package models

import (
	"time"

	"github.com/prepstack/billing/pkg/types"
)

// Subscription mirrors the gateway's view of a user's entitlement. It lives
// under the user's namespace and is the single source of truth for "is this
// user entitled". Writes are merges: a webhook replay reapplying the same
// status is a no-op in effect. Cancellation is a status transition, the
// document is never deleted.
type Subscription struct {
	SubscriptionID   string                   `firestore:"subscription_id" json:"subscription_id"`
	PlanID           string                   `firestore:"plan_id" json:"plan_id"`
	Status           string                   `firestore:"status" json:"status"`
	StatusMapped     types.SubscriptionStatus `firestore:"status_mapped" json:"status_mapped"`
	CurrentPeriodEnd time.Time                `firestore:"current_period_end" json:"current_period_end"`
	EndedAt          *time.Time               `firestore:"ended_at,omitempty" json:"ended_at,omitempty"`
	UpdatedAt        time.Time                `firestore:"updated_at" json:"updated_at"`
}

func (s *Subscription) Active() bool {
	return s != nil && s.StatusMapped == types.SubscriptionStatusActive
}
