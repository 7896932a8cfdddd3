package models

import "time"

// Payment is the per-user record of a captured charge, written by the webhook
// path when a subscription.charged-class event arrives. The verification
// endpoint only ever reads these, it never fabricates them.
type Payment struct {
	PaymentID      string    `firestore:"payment_id" json:"payment_id"`
	SubscriptionID string    `firestore:"subscription_id" json:"subscription_id"`
	Amount         int64     `firestore:"amount" json:"amount"`
	Currency       string    `firestore:"currency" json:"currency"`
	Status         string    `firestore:"status" json:"status"`
	Method         string    `firestore:"method,omitempty" json:"method,omitempty"`
	CapturedAt     time.Time `firestore:"captured_at" json:"captured_at"`
}
