package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/prepstack/billing/internal/models"
	rzp "github.com/prepstack/billing/internal/platform/razorpay"
	"github.com/prepstack/billing/internal/platform/store"
	cfgpkg "github.com/prepstack/billing/pkg/config"
	"github.com/prepstack/billing/pkg/logctx"
	"github.com/prepstack/billing/pkg/metrics"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// Reconciler applies gateway webhook events to the canonical subscription
// state. Delivery is at-least-once and unordered; the dedup record makes
// replays cheap, and every downstream write is a merge so reprocessing after
// a crash is safe regardless (the dedup gate is an optimization, not the
// correctness mechanism).
type Reconciler struct {
	cfg   *cfgpkg.Config
	log   *zap.SugaredLogger
	store store.Store
}

func NewReconciler(cfg *cfgpkg.Config, log *zap.SugaredLogger, st store.Store) *Reconciler {
	return &Reconciler{cfg: cfg, log: log, store: st}
}

// Handle verifies, dedups and applies one webhook delivery. eventID comes
// from the gateway's event-id header; when absent the body hash stands in so
// dedup still has a stable key.
func (r *Reconciler) Handle(ctx context.Context, body []byte, signature, eventID string) error {
	log := logctx.FromCtx(ctx, r.log)
	started := time.Now()

	// Authenticity gate: nothing is parsed or persisted on a bad signature,
	// not even the dedup record.
	if !rzp.VerifyWebhookSignature(body, signature, r.cfg.Razorpay.WebhookSecret) {
		log.Warnw("webhook signature verification failed", "event_id", eventID)
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		return ErrInvalidSignature
	}

	var event gatewayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if eventID == "" {
		sum := sha256.Sum256(body)
		eventID = hex.EncodeToString(sum[:])
	}

	// Dedup gate.
	existing, err := r.store.GetWebhookEvent(ctx, eventID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check webhook dedup record: %w", err)
	}
	if existing != nil && existing.Processed {
		log.Infow("webhook replay ignored", "event_id", eventID, "event_type", event.Event)
		metrics.WebhookEvents.WithLabelValues(event.Event, "duplicate").Inc()
		return nil
	}
	if existing == nil {
		record := &models.WebhookEvent{
			EventID:          eventID,
			EventType:        event.Event,
			SubscriptionID:   event.Payload.Subscription.Entity.ID,
			ReceivedAt:       time.Now(),
			Processed:        false,
			GatewayCreatedAt: time.Unix(event.CreatedAt, 0),
			Payload:          string(body),
		}
		if err := r.store.CreateWebhookEvent(ctx, record); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("failed to record webhook event: %w", err)
		}
	}

	if err := r.apply(ctx, &event); err != nil {
		// Leave the record unprocessed; gateway redelivery re-enters the
		// dedup gate and the merge writes make reprocessing safe.
		log.Errorw("webhook processing failed",
			"event_id", eventID, "event_type", event.Event, "error", err.Error())
		metrics.WebhookEvents.WithLabelValues(event.Event, "error").Inc()
		return err
	}

	if err := r.store.MarkWebhookEventProcessed(ctx, eventID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}

	metrics.WebhookEvents.WithLabelValues(event.Event, "processed").Inc()
	metrics.WebhookProcessingMs.Observe(float64(time.Since(started).Milliseconds()))
	log.Infow("webhook processed", "event_id", eventID, "event_type", event.Event,
		"subscription_id", event.Payload.Subscription.Entity.ID)
	return nil
}

func (r *Reconciler) apply(ctx context.Context, event *gatewayEvent) error {
	sub := event.Payload.Subscription.Entity
	pay := event.Payload.Payment.Entity
	class := classify(event.Event)

	userID, err := r.resolveUser(ctx, sub)
	if err != nil {
		return err
	}
	if userID == "" {
		// Nothing to attribute the event to; acknowledge it rather than
		// forcing endless redelivery.
		logctx.FromCtx(ctx, r.log).Warnw("webhook event has no resolvable user",
			"event_type", event.Event, "subscription_id", sub.ID)
		return nil
	}

	// Any payload carrying a captured payment materializes the per-user
	// payment record the verification endpoint looks for.
	if pay.ID != "" {
		payment := &models.Payment{
			PaymentID:      pay.ID,
			SubscriptionID: sub.ID,
			Amount:         pay.Amount,
			Currency:       pay.Currency,
			Status:         pay.Status,
			Method:         pay.Method,
			CapturedAt:     time.Unix(pay.CreatedAt, 0),
		}
		if err := r.store.UpsertPayment(ctx, userID, payment); err != nil {
			return err
		}
	}

	switch class {
	case classActivated, classCharged:
		if sub.ID == "" {
			return nil
		}
		update := &models.Subscription{
			SubscriptionID: sub.ID,
			PlanID:         sub.PlanID,
			Status:         sub.Status,
			StatusMapped:   class.mappedStatus(),
		}
		if sub.CurrentEnd > 0 {
			update.CurrentPeriodEnd = time.Unix(sub.CurrentEnd, 0)
		}
		if err := r.store.UpsertSubscription(ctx, userID, update); err != nil {
			return err
		}
		seed := &models.PaymentIntent{
			SubscriptionID: sub.ID,
			UserID:         userID,
			PlanID:         sub.PlanID,
			ShortURL:       sub.ShortURL,
		}
		if err := r.store.CompletePaymentIntent(ctx, sub.ID, seed); err != nil {
			return err
		}
	case classCancelled:
		if sub.ID == "" {
			return nil
		}
		update := &models.Subscription{
			SubscriptionID: sub.ID,
			PlanID:         sub.PlanID,
			Status:         sub.Status,
			StatusMapped:   class.mappedStatus(),
		}
		endedAt := time.Now()
		if sub.EndedAt != nil {
			endedAt = time.Unix(*sub.EndedAt, 0)
		}
		update.EndedAt = &endedAt
		if err := r.store.UpsertSubscription(ctx, userID, update); err != nil {
			return err
		}
	}
	return nil
}

// resolveUser attributes an event to a user: the notes we attach at creation
// carry the user ID; failing that, the payment intent keyed by the gateway's
// subscription ID is consulted.
func (r *Reconciler) resolveUser(ctx context.Context, sub subscriptionEntity) (string, error) {
	if uid := sub.Notes.str("user_id"); uid != "" {
		return uid, nil
	}
	if sub.ID == "" {
		return "", nil
	}
	intent, err := r.store.GetPaymentIntent(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve user from payment intent: %w", err)
	}
	return intent.UserID, nil
}
