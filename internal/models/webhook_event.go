package models

import "time"

// WebhookEvent is the append-only audit/dedup record for gateway webhook
// deliveries, keyed by the gateway event ID. A given event ID is applied at
// most once; the record doubles as the data source for health metrics.
//
// Processed is only set after all downstream writes succeed. A crash in
// between leaves Processed=false and relies on gateway redelivery; downstream
// writes are merges, so reprocessing is safe.
type WebhookEvent struct {
	EventID          string     `firestore:"event_id" json:"event_id"`
	EventType        string     `firestore:"event_type" json:"event_type"`
	SubscriptionID   string     `firestore:"subscription_id,omitempty" json:"subscription_id,omitempty"`
	ReceivedAt       time.Time  `firestore:"received_at" json:"received_at"`
	ProcessedAt      *time.Time `firestore:"processed_at,omitempty" json:"processed_at,omitempty"`
	Processed        bool       `firestore:"processed" json:"processed"`
	GatewayCreatedAt time.Time  `firestore:"gateway_created_at" json:"gateway_created_at"`
	Payload          string     `firestore:"payload,omitempty" json:"payload,omitempty"`
}
