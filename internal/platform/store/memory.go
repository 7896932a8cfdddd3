package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prepstack/billing/internal/models"
)

// MemoryStore is an in-memory Store used by tests and local development. It
// mirrors the merge/conditional-write semantics of the Firestore
// implementation, including the monotonic intent transition.
type MemoryStore struct {
	mu sync.RWMutex

	intents       map[string]*models.PaymentIntent
	subscriptions map[string]map[string]*models.Subscription
	payments      map[string]map[string]*models.Payment
	events        map[string]*models.WebhookEvent

	writes int

	// FailPing and FailWrites inject faults for health/error-path tests.
	FailPing   bool
	FailWrites bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents:       make(map[string]*models.PaymentIntent),
		subscriptions: make(map[string]map[string]*models.Subscription),
		payments:      make(map[string]map[string]*models.Payment),
		events:        make(map[string]*models.WebhookEvent),
	}
}

var errInjectedWrite = errors.New("store: injected write failure")

// Writes reports the number of mutating operations applied, letting tests
// assert that a replayed event produced no additional downstream writes.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *MemoryStore) GetPaymentIntent(_ context.Context, subscriptionID string) (*models.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[subscriptionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *intent
	return &cp, nil
}

func (s *MemoryStore) CreatePaymentIntent(_ context.Context, intent *models.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errInjectedWrite
	}
	if _, ok := s.intents[intent.SubscriptionID]; ok {
		return ErrAlreadyExists
	}
	cp := *intent
	s.intents[intent.SubscriptionID] = &cp
	s.writes++
	return nil
}

func (s *MemoryStore) CompletePaymentIntent(_ context.Context, subscriptionID string, seed *models.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errInjectedWrite
	}
	now := time.Now()
	if intent, ok := s.intents[subscriptionID]; ok {
		if intent.Status == models.PaymentIntentStatusCompleted {
			return nil
		}
		intent.Status = models.PaymentIntentStatusCompleted
		intent.UpdatedAt = now
		s.writes++
		return nil
	}
	if seed == nil {
		return ErrNotFound
	}
	created := *seed
	created.SubscriptionID = subscriptionID
	created.Status = models.PaymentIntentStatusCompleted
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now
	s.intents[subscriptionID] = &created
	s.writes++
	return nil
}

func (s *MemoryStore) CountPaymentIntentsSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, intent := range s.intents {
		if intent.UserID == userID && !intent.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) GetSubscription(_ context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[userID][subscriptionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) ListSubscriptions(_ context.Context, userID string) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var subs []*models.Subscription
	for _, sub := range s.subscriptions[userID] {
		cp := *sub
		subs = append(subs, &cp)
	}
	return subs, nil
}

func (s *MemoryStore) UpsertSubscription(_ context.Context, userID string, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errInjectedWrite
	}
	if s.subscriptions[userID] == nil {
		s.subscriptions[userID] = make(map[string]*models.Subscription)
	}
	existing, ok := s.subscriptions[userID][sub.SubscriptionID]
	if !ok {
		existing = &models.Subscription{SubscriptionID: sub.SubscriptionID}
		s.subscriptions[userID][sub.SubscriptionID] = existing
	}
	// Field-level merge, matching Firestore MergeAll over populated fields.
	if sub.Status != "" {
		existing.Status = sub.Status
	}
	if sub.StatusMapped != "" {
		existing.StatusMapped = sub.StatusMapped
	}
	if sub.PlanID != "" {
		existing.PlanID = sub.PlanID
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
	}
	if sub.EndedAt != nil {
		at := *sub.EndedAt
		existing.EndedAt = &at
	}
	existing.UpdatedAt = time.Now()
	s.writes++
	return nil
}

func (s *MemoryStore) GetPayment(_ context.Context, userID, paymentID string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[userID][paymentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpsertPayment(_ context.Context, userID string, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errInjectedWrite
	}
	if s.payments[userID] == nil {
		s.payments[userID] = make(map[string]*models.Payment)
	}
	cp := *p
	s.payments[userID][p.PaymentID] = &cp
	s.writes++
	return nil
}

func (s *MemoryStore) GetWebhookEvent(_ context.Context, eventID string) (*models.WebhookEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (s *MemoryStore) CreateWebhookEvent(_ context.Context, ev *models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errInjectedWrite
	}
	if _, ok := s.events[ev.EventID]; ok {
		return ErrAlreadyExists
	}
	cp := *ev
	s.events[ev.EventID] = &cp
	s.writes++
	return nil
}

func (s *MemoryStore) MarkWebhookEventProcessed(_ context.Context, eventID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errInjectedWrite
	}
	ev, ok := s.events[eventID]
	if !ok {
		return ErrNotFound
	}
	ev.Processed = true
	ev.ProcessedAt = &at
	s.writes++
	return nil
}

func (s *MemoryStore) ListWebhookEventsSince(_ context.Context, since time.Time) ([]*models.WebhookEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []*models.WebhookEvent
	for _, ev := range s.events {
		if !ev.ReceivedAt.Before(since) {
			cp := *ev
			events = append(events, &cp)
		}
	}
	return events, nil
}

func (s *MemoryStore) DeleteWebhookEventsBefore(_ context.Context, cutoff time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, ev := range s.events {
		if deleted >= limit {
			break
		}
		if ev.ReceivedAt.Before(cutoff) {
			delete(s.events, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	if s.FailPing {
		return errors.New("store: injected ping failure")
	}
	return nil
}
