package verification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	rzp "github.com/prepstack/billing/internal/platform/razorpay"
	"github.com/prepstack/billing/internal/platform/store"
	cfgpkg "github.com/prepstack/billing/pkg/config"
	"github.com/prepstack/billing/pkg/logctx"
	"github.com/prepstack/billing/pkg/metrics"
	"github.com/prepstack/billing/pkg/types"
)

var (
	ErrMissingFields    = errors.New("paymentId and subscriptionId are required")
	ErrInvalidSignature = errors.New("invalid payment signature")
)

// Service answers the client's "is my payment verified yet" poll after it
// returns from hosted checkout. It races the webhook path by design: it only
// observes payment/subscription state the webhook wrote and never creates
// either record itself, so it cannot win the race by fabricating state. Its
// single write is the monotonic completion marker on the payment intent.
type Service struct {
	cfg   *cfgpkg.Config
	log   *zap.SugaredLogger
	store store.Store
}

func NewService(cfg *cfgpkg.Config, log *zap.SugaredLogger, st store.Store) *Service {
	return &Service{cfg: cfg, log: log, store: st}
}

type VerifyRequest struct {
	PaymentID      string `json:"paymentId"`
	SubscriptionID string `json:"subscriptionId"`
	Signature      string `json:"signature,omitempty"`
}

type VerifiedSubscription struct {
	SubscriptionID   string                   `json:"subscriptionId"`
	Status           string                   `json:"status"`
	StatusMapped     types.SubscriptionStatus `json:"statusMapped"`
	PlanID           string                   `json:"planId"`
	CurrentPeriodEnd int64                    `json:"currentPeriodEnd,omitempty"`
}

type VerifiedPayment struct {
	PaymentID  string `json:"paymentId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	CapturedAt int64  `json:"capturedAt,omitempty"`
}

type VerifyResult struct {
	Verified     bool                  `json:"verified"`
	Status       string                `json:"status"`
	Subscription *VerifiedSubscription `json:"subscription,omitempty"`
	Payment      *VerifiedPayment      `json:"payment,omitempty"`
}

// Verify checks the optional proof-of-possession signature, then reads the
// user's payment and subscription records. Absence of either is not an error;
// it means the webhook has not landed yet and the client should poll again.
func (s *Service) Verify(ctx context.Context, user types.UserIdentity, req *VerifyRequest) (*VerifyResult, error) {
	log := logctx.FromCtx(ctx, s.log)

	if req.PaymentID == "" || req.SubscriptionID == "" {
		return nil, ErrMissingFields
	}

	if req.Signature != "" {
		if !rzp.VerifyPaymentSignature(req.SubscriptionID, req.PaymentID, req.Signature, s.cfg.Razorpay.KeySecret) {
			// Reject before any reads so the endpoint cannot be used as an
			// existence oracle without proof of possession.
			log.Warnw("payment signature mismatch",
				"subscription_id", req.SubscriptionID, "payment_id", req.PaymentID, "user_id", user.UID)
			metrics.PaymentVerifications.WithLabelValues("invalid_signature").Inc()
			return nil, ErrInvalidSignature
		}
	}

	payment, err := s.store.GetPayment(ctx, user.UID, req.PaymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.PaymentVerifications.WithLabelValues("pending").Inc()
			return &VerifyResult{Verified: false, Status: "pending"}, nil
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}

	sub, err := s.store.GetSubscription(ctx, user.UID, req.SubscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.PaymentVerifications.WithLabelValues("pending").Inc()
			return &VerifyResult{Verified: false, Status: "pending"}, nil
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	// Both records exist: the payment went through. Mark the intent
	// completed; the transition is monotonic so a webhook or an earlier poll
	// having done it already is a no-op.
	if err := s.store.CompletePaymentIntent(ctx, req.SubscriptionID, nil); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to complete payment intent: %w", err)
	}

	metrics.PaymentVerifications.WithLabelValues("verified").Inc()

	out := &VerifyResult{
		Verified: true,
		Status:   "success",
		Subscription: &VerifiedSubscription{
			SubscriptionID: sub.SubscriptionID,
			Status:         sub.Status,
			StatusMapped:   sub.StatusMapped,
			PlanID:         sub.PlanID,
		},
		Payment: &VerifiedPayment{
			PaymentID: payment.PaymentID,
			Amount:    payment.Amount,
			Currency:  payment.Currency,
			Status:    payment.Status,
		},
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		out.Subscription.CurrentPeriodEnd = sub.CurrentPeriodEnd.UnixMilli()
	}
	if !payment.CapturedAt.IsZero() {
		out.Payment.CapturedAt = payment.CapturedAt.UnixMilli()
	}
	return out, nil
}
