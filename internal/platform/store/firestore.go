package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/prepstack/billing/internal/models"
)

const (
	collPaymentIntents = "payment_intents"
	collUsers          = "users"
	collSubscriptions  = "subscriptions"
	collPayments       = "payments"
	collWebhookEvents  = "webhook_events"
	collHealthChecks   = "health_checks"
)

// FirestoreStore implements Store on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) intentDoc(subscriptionID string) *firestore.DocumentRef {
	return s.client.Collection(collPaymentIntents).Doc(subscriptionID)
}

func (s *FirestoreStore) subscriptionDoc(userID, subscriptionID string) *firestore.DocumentRef {
	return s.client.Collection(collUsers).Doc(userID).Collection(collSubscriptions).Doc(subscriptionID)
}

func (s *FirestoreStore) paymentDoc(userID, paymentID string) *firestore.DocumentRef {
	return s.client.Collection(collUsers).Doc(userID).Collection(collPayments).Doc(paymentID)
}

func (s *FirestoreStore) eventDoc(eventID string) *firestore.DocumentRef {
	return s.client.Collection(collWebhookEvents).Doc(eventID)
}

func (s *FirestoreStore) GetPaymentIntent(ctx context.Context, subscriptionID string) (*models.PaymentIntent, error) {
	snap, err := s.intentDoc(subscriptionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	var intent models.PaymentIntent
	if err := snap.DataTo(&intent); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}
	return &intent, nil
}

func (s *FirestoreStore) CreatePaymentIntent(ctx context.Context, intent *models.PaymentIntent) error {
	// Create is a conditional write: exactly one intent per subscription ID.
	if _, err := s.intentDoc(intent.SubscriptionID).Create(ctx, intent); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	return nil
}

func (s *FirestoreStore) CompletePaymentIntent(ctx context.Context, subscriptionID string, seed *models.PaymentIntent) error {
	doc := s.intentDoc(subscriptionID)
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		now := time.Now()
		if err == nil && snap.Exists() {
			var intent models.PaymentIntent
			if derr := snap.DataTo(&intent); derr != nil {
				return derr
			}
			if intent.Status == models.PaymentIntentStatusCompleted {
				// Already terminal, keep the write path idempotent.
				return nil
			}
			return tx.Set(doc, map[string]interface{}{
				"status":     models.PaymentIntentStatusCompleted,
				"updated_at": now,
			}, firestore.MergeAll)
		}
		if seed == nil {
			return ErrNotFound
		}
		// Intent never made it to the store at creation time; the webhook is
		// keyed by the gateway's own subscription ID, so it can reconcile the
		// gap here.
		created := *seed
		created.SubscriptionID = subscriptionID
		created.Status = models.PaymentIntentStatusCompleted
		if created.CreatedAt.IsZero() {
			created.CreatedAt = now
		}
		created.UpdatedAt = now
		return tx.Set(doc, &created)
	})
	if err != nil {
		if err == ErrNotFound {
			return err
		}
		return fmt.Errorf("failed to complete payment intent: %w", err)
	}
	return nil
}

func (s *FirestoreStore) CountPaymentIntentsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	iter := s.client.Collection(collPaymentIntents).
		Where("user_id", "==", userID).
		Where("created_at", ">=", since).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to count payment intents: %w", err)
		}
		count++
	}
	return count, nil
}

func (s *FirestoreStore) GetSubscription(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	snap, err := s.subscriptionDoc(userID, subscriptionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	var sub models.Subscription
	if err := snap.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}
	return &sub, nil
}

func (s *FirestoreStore) ListSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error) {
	iter := s.client.Collection(collUsers).Doc(userID).Collection(collSubscriptions).Documents(ctx)
	defer iter.Stop()

	var subs []*models.Subscription
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}
		var sub models.Subscription
		if err := snap.DataTo(&sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		subs = append(subs, &sub)
	}
	return subs, nil
}

func (s *FirestoreStore) UpsertSubscription(ctx context.Context, userID string, sub *models.Subscription) error {
	data := map[string]interface{}{
		"subscription_id": sub.SubscriptionID,
		"updated_at":      time.Now(),
	}
	// Only populated fields participate in the merge so an out-of-order event
	// cannot blank fields a previous event already wrote.
	if sub.Status != "" {
		data["status"] = sub.Status
	}
	if sub.StatusMapped != "" {
		data["status_mapped"] = sub.StatusMapped
	}
	if sub.PlanID != "" {
		data["plan_id"] = sub.PlanID
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		data["current_period_end"] = sub.CurrentPeriodEnd
	}
	if sub.EndedAt != nil {
		data["ended_at"] = *sub.EndedAt
	}
	if _, err := s.subscriptionDoc(userID, sub.SubscriptionID).Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetPayment(ctx context.Context, userID, paymentID string) (*models.Payment, error) {
	snap, err := s.paymentDoc(userID, paymentID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	var p models.Payment
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode payment: %w", err)
	}
	return &p, nil
}

func (s *FirestoreStore) UpsertPayment(ctx context.Context, userID string, p *models.Payment) error {
	if _, err := s.paymentDoc(userID, p.PaymentID).Set(ctx, p, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to upsert payment: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetWebhookEvent(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	snap, err := s.eventDoc(eventID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	var ev models.WebhookEvent
	if err := snap.DataTo(&ev); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	return &ev, nil
}

func (s *FirestoreStore) CreateWebhookEvent(ctx context.Context, ev *models.WebhookEvent) error {
	if _, err := s.eventDoc(ev.EventID).Create(ctx, ev); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create webhook event: %w", err)
	}
	return nil
}

func (s *FirestoreStore) MarkWebhookEventProcessed(ctx context.Context, eventID string, at time.Time) error {
	if _, err := s.eventDoc(eventID).Set(ctx, map[string]interface{}{
		"processed":    true,
		"processed_at": at,
	}, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListWebhookEventsSince(ctx context.Context, since time.Time) ([]*models.WebhookEvent, error) {
	iter := s.client.Collection(collWebhookEvents).
		Where("received_at", ">=", since).
		Documents(ctx)
	defer iter.Stop()

	var events []*models.WebhookEvent
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list webhook events: %w", err)
		}
		var ev models.WebhookEvent
		if err := snap.DataTo(&ev); err != nil {
			return nil, fmt.Errorf("failed to decode webhook event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, nil
}

func (s *FirestoreStore) DeleteWebhookEventsBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	iter := s.client.Collection(collWebhookEvents).
		Where("received_at", "<", cutoff).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to scan webhook events for cleanup: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			// Best-effort batch: report what was deleted so far.
			return deleted, fmt.Errorf("failed to delete webhook event: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection(collHealthChecks).Doc("probe").Set(ctx, map[string]interface{}{
		"checked_at": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("store write probe failed: %w", err)
	}
	return nil
}
