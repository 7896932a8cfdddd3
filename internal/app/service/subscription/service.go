package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/prepstack/billing/internal/app/service/rollout"
	"github.com/prepstack/billing/internal/models"
	rzp "github.com/prepstack/billing/internal/platform/razorpay"
	"github.com/prepstack/billing/internal/platform/store"
	cfgpkg "github.com/prepstack/billing/pkg/config"
	"github.com/prepstack/billing/pkg/logctx"
	"github.com/prepstack/billing/pkg/metrics"
	"github.com/prepstack/billing/pkg/types"
)

const defaultTotalCount = 12

type Service struct {
	cfg     *cfgpkg.Config
	log     *zap.SugaredLogger
	store   store.Store
	gateway rzp.Gateway
	rollout *rollout.Service
}

func NewService(cfg *cfgpkg.Config, log *zap.SugaredLogger, st store.Store, gw rzp.Gateway, ro *rollout.Service) *Service {
	return &Service{cfg: cfg, log: log, store: st, gateway: gw, rollout: ro}
}

type CreateSubscriptionRequest struct {
	PlanID         string            `json:"planId"`
	TotalCount     int               `json:"totalCount,omitempty"`
	CustomerNotify *bool             `json:"customerNotify,omitempty"`
	ReturnURL      string            `json:"returnUrl,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type CreateSubscriptionResult struct {
	SubscriptionID string `json:"subscriptionId"`
	Status         string `json:"status"`
	ShortURL       string `json:"shortUrl"`
	CurrentStart   int64  `json:"currentStart"`
	CurrentEnd     int64  `json:"currentEnd"`
	PlanID         string `json:"planId"`
	ReturnURL      string `json:"returnUrl"`
	CallbackURL    string `json:"callbackUrl"`
}

// CreateSubscription runs the creation gates in order and stops at the first
// failure with no side effects. A gateway subscription and its payment intent
// are only ever created together; if the intent write fails after the gateway
// call succeeded, the inconsistency is logged and left for the webhook path
// to reconcile (the webhook is keyed by the gateway's subscription ID and
// does not depend on the intent existing).
func (s *Service) CreateSubscription(ctx context.Context, user types.UserIdentity, req *CreateSubscriptionRequest) (*CreateSubscriptionResult, error) {
	log := logctx.FromCtx(ctx, s.log)

	if !s.rollout.Enabled() {
		return nil, ErrPaymentsDisabled
	}
	if !s.rollout.UserInRollout(user.UID, user.Email) {
		return nil, ErrNotInRollout
	}
	if req.PlanID == "" {
		return nil, ErrMissingPlanID
	}

	base, err := url.Parse(s.cfg.AppBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		log.Errorw("app base URL missing or unparseable", "app_base_url", s.cfg.AppBaseURL)
		return nil, ErrServerMisconfigured
	}

	returnURL, err := ResolveReturnURL(req.ReturnURL, base)
	if err != nil {
		return nil, err
	}
	if returnURL == "" {
		returnURL = base.JoinPath(s.cfg.Payments.DefaultReturnPath).String()
	}

	if s.cfg.GetPlanByID(req.PlanID) == nil {
		metrics.SubscriptionCreations.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidPlanID
	}

	if err := s.checkCreationRate(ctx, user.UID); err != nil {
		if errors.Is(err, ErrTooManyAttempts) {
			metrics.SubscriptionCreations.WithLabelValues("rate_limited").Inc()
		}
		return nil, err
	}

	customerID, err := s.gateway.EnsureCustomer(ctx, user.Name, user.Email, user.UID)
	if err != nil {
		metrics.SubscriptionCreations.WithLabelValues("gateway_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	now := time.Now()
	notes := map[string]interface{}{
		"user_id":    user.UID,
		"return_url": returnURL,
		"created_at": now.Format(time.RFC3339),
	}
	for k, v := range req.Metadata {
		notes[k] = v
	}

	totalCount := req.TotalCount
	if totalCount <= 0 {
		totalCount = defaultTotalCount
	}
	notify := true
	if req.CustomerNotify != nil {
		notify = *req.CustomerNotify
	}

	gwSub, err := s.gateway.CreateSubscription(ctx, rzp.CreateSubscriptionParams{
		PlanID:         req.PlanID,
		CustomerID:     customerID,
		TotalCount:     totalCount,
		CustomerNotify: notify,
		Notes:          notes,
	})
	if err != nil {
		metrics.SubscriptionCreations.WithLabelValues("gateway_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	intent := &models.PaymentIntent{
		SubscriptionID: gwSub.ID,
		UserID:         user.UID,
		PlanID:         req.PlanID,
		Status:         models.PaymentIntentStatusPending,
		ReturnURL:      returnURL,
		ShortURL:       gwSub.ShortURL,
		Metadata:       req.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreatePaymentIntent(ctx, intent); err != nil {
		// The gateway subscription already exists; the webhook path will
		// reconcile the missing intent. Never fail the request here.
		log.Errorw("payment intent persistence failed after gateway create",
			"subscription_id", gwSub.ID, "user_id", user.UID, "error", err.Error())
	}

	metrics.SubscriptionCreations.WithLabelValues("created").Inc()
	log.Infow("subscription created",
		"subscription_id", gwSub.ID, "plan_id", req.PlanID, "user_id", user.UID)

	return &CreateSubscriptionResult{
		SubscriptionID: gwSub.ID,
		Status:         gwSub.Status,
		ShortURL:       gwSub.ShortURL,
		CurrentStart:   gwSub.CurrentStart,
		CurrentEnd:     gwSub.CurrentEnd,
		PlanID:         req.PlanID,
		ReturnURL:      returnURL,
		CallbackURL:    callbackURL(base, gwSub.ID),
	}, nil
}

func callbackURL(base *url.URL, subscriptionID string) string {
	u := base.JoinPath("/billing/callback")
	q := url.Values{}
	q.Set("subscription_id", subscriptionID)
	u.RawQuery = q.Encode()
	return u.String()
}

type CancelResult struct {
	SubscriptionID string `json:"subscriptionId"`
	Status         string `json:"status"`
	EndedAt        *int64 `json:"endedAt,omitempty"`
	Message        string `json:"message"`
}

// Cancel cancels the user's subscription at the gateway and mirrors the
// resulting status locally. The local write is a read-your-writes
// accommodation; the webhook remains the authoritative writer and will apply
// the same state again.
func (s *Service) Cancel(ctx context.Context, user types.UserIdentity, subscriptionID string, cancelAtCycleEnd bool) (*CancelResult, error) {
	log := logctx.FromCtx(ctx, s.log)

	if !s.rollout.Enabled() {
		return nil, ErrPaymentsDisabled
	}
	if subscriptionID == "" {
		return nil, ErrMissingSubscriptionID
	}

	// Ownership check: only a subscription under this user's namespace counts.
	if _, err := s.store.GetSubscription(ctx, user.UID, subscriptionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	gwSub, err := s.gateway.CancelSubscription(ctx, subscriptionID, cancelAtCycleEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	update := &models.Subscription{
		SubscriptionID: subscriptionID,
		Status:         gwSub.Status,
		StatusMapped:   types.MapGatewayStatus(gwSub.Status),
	}
	var endedAtMs *int64
	if gwSub.EndedAt != nil {
		at := time.Unix(*gwSub.EndedAt, 0)
		update.EndedAt = &at
		ms := at.UnixMilli()
		endedAtMs = &ms
	}
	if err := s.store.UpsertSubscription(ctx, user.UID, update); err != nil {
		// Optimistic mirror only; the cancellation webhook writes the same state.
		log.Errorw("failed to mirror cancellation locally",
			"subscription_id", subscriptionID, "error", err.Error())
	}

	log.Infow("subscription cancelled",
		"subscription_id", subscriptionID, "at_cycle_end", cancelAtCycleEnd, "status", gwSub.Status)

	message := "subscription cancelled"
	if cancelAtCycleEnd {
		message = "subscription will be cancelled at the end of the current billing cycle"
	}
	return &CancelResult{
		SubscriptionID: subscriptionID,
		Status:         gwSub.Status,
		EndedAt:        endedAtMs,
		Message:        message,
	}, nil
}

type CurrentSubscription struct {
	SubscriptionID   string                   `json:"subscriptionId"`
	PlanID           string                   `json:"planId"`
	Status           string                   `json:"status"`
	StatusMapped     types.SubscriptionStatus `json:"statusMapped"`
	CurrentPeriodEnd int64                    `json:"currentPeriodEnd,omitempty"`
	EndedAt          *int64                   `json:"endedAt,omitempty"`
}

// Current returns the user's most relevant subscription: an active one if any
// exists, otherwise the most recently updated. A nil result with nil error
// means the user has never subscribed.
func (s *Service) Current(ctx context.Context, user types.UserIdentity) (*CurrentSubscription, error) {
	subs, err := s.store.ListSubscriptions(ctx, user.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil
	}
	best := subs[0]
	for _, sub := range subs[1:] {
		if sub.Active() && !best.Active() {
			best = sub
			continue
		}
		if sub.Active() == best.Active() && sub.UpdatedAt.After(best.UpdatedAt) {
			best = sub
		}
	}
	out := &CurrentSubscription{
		SubscriptionID: best.SubscriptionID,
		PlanID:         best.PlanID,
		Status:         best.Status,
		StatusMapped:   best.StatusMapped,
	}
	if !best.CurrentPeriodEnd.IsZero() {
		out.CurrentPeriodEnd = best.CurrentPeriodEnd.UnixMilli()
	}
	if best.EndedAt != nil {
		ms := best.EndedAt.UnixMilli()
		out.EndedAt = &ms
	}
	return out, nil
}
