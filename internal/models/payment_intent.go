package models

import "time"

type PaymentIntentStatus string

const (
	PaymentIntentStatusPending   PaymentIntentStatus = "pending"
	PaymentIntentStatusCompleted PaymentIntentStatus = "completed"
	PaymentIntentStatusFailed    PaymentIntentStatus = "failed"
)

// PaymentIntent records that a subscription creation was attempted. It is
// keyed by the gateway subscription ID and is distinct from the gateway's own
// view of the subscription: an intent exists as soon as creation succeeds,
// while activation only arrives later through the webhook.
//
// Status moves pending -> completed exactly once and never regresses.
type PaymentIntent struct {
	SubscriptionID string              `firestore:"subscription_id" json:"subscription_id"`
	UserID         string              `firestore:"user_id" json:"user_id"`
	PlanID         string              `firestore:"plan_id" json:"plan_id"`
	Status         PaymentIntentStatus `firestore:"status" json:"status"`
	ReturnURL      string              `firestore:"return_url,omitempty" json:"return_url,omitempty"`
	ShortURL       string              `firestore:"short_url,omitempty" json:"short_url,omitempty"`
	Metadata       map[string]string   `firestore:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt      time.Time           `firestore:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `firestore:"updated_at" json:"updated_at"`
}
