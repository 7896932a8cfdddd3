package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prepstack/billing/internal/models"
	rzp "github.com/prepstack/billing/internal/platform/razorpay"
	"github.com/prepstack/billing/internal/platform/store"
	cfgpkg "github.com/prepstack/billing/pkg/config"
	"github.com/prepstack/billing/pkg/types"
)

const keySecret = "test_key_secret"

func newTestService(st store.Store) *Service {
	cfg := &cfgpkg.Config{Razorpay: cfgpkg.RazorpayConfig{KeySecret: keySecret}}
	return NewService(cfg, zap.NewNop().Sugar(), st)
}

func user() types.UserIdentity {
	return types.UserIdentity{UID: "user_1", Email: "u1@example.com"}
}

func seedReconciledState(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	require.NoError(t, st.UpsertPayment(context.Background(), "user_1", &models.Payment{
		PaymentID:      "pay_1",
		SubscriptionID: "sub_1",
		Amount:         49900,
		Currency:       "INR",
		Status:         "captured",
		CapturedAt:     time.Now(),
	}))
	require.NoError(t, st.UpsertSubscription(context.Background(), "user_1", &models.Subscription{
		SubscriptionID:   "sub_1",
		PlanID:           "plan_monthly",
		Status:           "active",
		StatusMapped:     types.SubscriptionStatusActive,
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour),
	}))
}

func TestVerify_MissingFields(t *testing.T) {
	svc := newTestService(store.NewMemoryStore())

	_, err := svc.Verify(context.Background(), user(), &VerifyRequest{PaymentID: "pay_1"})
	require.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.Verify(context.Background(), user(), &VerifyRequest{SubscriptionID: "sub_1"})
	require.ErrorIs(t, err, ErrMissingFields)
}

func TestVerify_PendingWhenWebhookHasNotLanded(t *testing.T) {
	svc := newTestService(store.NewMemoryStore())

	res, err := svc.Verify(context.Background(), user(), &VerifyRequest{PaymentID: "pay_1", SubscriptionID: "sub_1"})
	require.NoError(t, err)
	require.False(t, res.Verified)
	require.Equal(t, "pending", res.Status)
	require.Nil(t, res.Subscription)
	require.Nil(t, res.Payment)
}

func TestVerify_PendingWhenOnlyPaymentExists(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.UpsertPayment(context.Background(), "user_1", &models.Payment{PaymentID: "pay_1"}))
	svc := newTestService(st)

	res, err := svc.Verify(context.Background(), user(), &VerifyRequest{PaymentID: "pay_1", SubscriptionID: "sub_1"})
	require.NoError(t, err)
	require.False(t, res.Verified)
}

func TestVerify_SucceedsAndCompletesIntent(t *testing.T) {
	st := store.NewMemoryStore()
	seedReconciledState(t, st)
	require.NoError(t, st.CreatePaymentIntent(context.Background(), &models.PaymentIntent{
		SubscriptionID: "sub_1",
		UserID:         "user_1",
		Status:         models.PaymentIntentStatusPending,
		CreatedAt:      time.Now(),
	}))
	svc := newTestService(st)

	res, err := svc.Verify(context.Background(), user(), &VerifyRequest{PaymentID: "pay_1", SubscriptionID: "sub_1"})
	require.NoError(t, err)
	require.True(t, res.Verified)
	require.Equal(t, "success", res.Status)
	require.Equal(t, "sub_1", res.Subscription.SubscriptionID)
	require.Equal(t, types.SubscriptionStatusActive, res.Subscription.StatusMapped)
	require.Equal(t, int64(49900), res.Payment.Amount)

	intent, err := st.GetPaymentIntent(context.Background(), "sub_1")
	require.NoError(t, err)
	require.Equal(t, models.PaymentIntentStatusCompleted, intent.Status)
}

func TestVerify_SucceedsWithoutIntentRecord(t *testing.T) {
	st := store.NewMemoryStore()
	seedReconciledState(t, st)
	svc := newTestService(st)

	res, err := svc.Verify(context.Background(), user(), &VerifyRequest{PaymentID: "pay_1", SubscriptionID: "sub_1"})
	require.NoError(t, err)
	require.True(t, res.Verified)
}

func TestVerify_OtherUsersRecordsStayInvisible(t *testing.T) {
	st := store.NewMemoryStore()
	seedReconciledState(t, st)
	svc := newTestService(st)

	res, err := svc.Verify(context.Background(), types.UserIdentity{UID: "user_2"}, &VerifyRequest{PaymentID: "pay_1", SubscriptionID: "sub_1"})
	require.NoError(t, err)
	require.False(t, res.Verified)
	require.Equal(t, "pending", res.Status)
}

func TestVerify_ValidSignatureAccepted(t *testing.T) {
	st := store.NewMemoryStore()
	seedReconciledState(t, st)
	svc := newTestService(st)

	sig := rzp.SignPayload([]byte("sub_1|pay_1"), keySecret)
	res, err := svc.Verify(context.Background(), user(), &VerifyRequest{PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: sig})
	require.NoError(t, err)
	require.True(t, res.Verified)
}

func TestVerify_BadSignatureRejectedBeforeLookup(t *testing.T) {
	st := store.NewMemoryStore()
	seedReconciledState(t, st)
	svc := newTestService(st)

	_, err := svc.Verify(context.Background(), user(), &VerifyRequest{PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: "deadbeef"})
	require.ErrorIs(t, err, ErrInvalidSignature)
}
