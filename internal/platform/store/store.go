package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"

	"github.com/prepstack/billing/internal/models"
)

var (
	ErrNotFound      = errors.New("store: document not found")
	ErrAlreadyExists = errors.New("store: document already exists")
)

// Store is the durable document store behind the billing pipeline. All
// coordination between the client-verify path and the webhook path happens
// through it; every mutation is a single-document conditional or merge write.
type Store interface {
	// Payment intents, keyed by gateway subscription ID.
	GetPaymentIntent(ctx context.Context, subscriptionID string) (*models.PaymentIntent, error)
	CreatePaymentIntent(ctx context.Context, intent *models.PaymentIntent) error
	// CompletePaymentIntent moves an intent to completed. The transition is
	// monotonic: an already-completed intent is left untouched. If the intent
	// document is missing (creation persisted the gateway call but not the
	// intent) and seed is non-nil, the merge write materializes it.
	CompletePaymentIntent(ctx context.Context, subscriptionID string, seed *models.PaymentIntent) error
	CountPaymentIntentsSince(ctx context.Context, userID string, since time.Time) (int, error)

	// Per-user subscription documents (merge semantics, never deleted).
	GetSubscription(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error)
	UpsertSubscription(ctx context.Context, userID string, sub *models.Subscription) error

	// Per-user captured payments, written by the webhook path only.
	GetPayment(ctx context.Context, userID, paymentID string) (*models.Payment, error)
	UpsertPayment(ctx context.Context, userID string, p *models.Payment) error

	// Webhook dedup/audit records, keyed by gateway event ID.
	GetWebhookEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error)
	CreateWebhookEvent(ctx context.Context, ev *models.WebhookEvent) error
	MarkWebhookEventProcessed(ctx context.Context, eventID string, at time.Time) error
	ListWebhookEventsSince(ctx context.Context, since time.Time) ([]*models.WebhookEvent, error)
	DeleteWebhookEventsBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)

	// Ping probes writability, used by the health endpoint.
	Ping(ctx context.Context) error
}

var Module = fx.Options(
	fx.Provide(func(fs *FirestoreStore) Store { return fs }),
	fx.Provide(NewFirestoreStore),
)
