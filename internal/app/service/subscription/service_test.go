package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prepstack/billing/internal/app/service/rollout"
	"github.com/prepstack/billing/internal/models"
	rzp "github.com/prepstack/billing/internal/platform/razorpay"
	"github.com/prepstack/billing/internal/platform/store"
	cfgpkg "github.com/prepstack/billing/pkg/config"
	"github.com/prepstack/billing/pkg/types"
)

type stubGateway struct {
	customerCalls int
	createCalls   int
	cancelCalls   int

	createErr error
	cancelSub *rzp.GatewaySubscription

	lastCreate rzp.CreateSubscriptionParams
}

func (g *stubGateway) EnsureCustomer(_ context.Context, _, _, _ string) (string, error) {
	g.customerCalls++
	return "cust_123", nil
}

func (g *stubGateway) CreateSubscription(_ context.Context, p rzp.CreateSubscriptionParams) (*rzp.GatewaySubscription, error) {
	g.createCalls++
	g.lastCreate = p
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &rzp.GatewaySubscription{
		ID:       "sub_new1",
		PlanID:   p.PlanID,
		Status:   "created",
		ShortURL: "https://rzp.io/i/abc",
	}, nil
}

func (g *stubGateway) CancelSubscription(_ context.Context, id string, _ bool) (*rzp.GatewaySubscription, error) {
	g.cancelCalls++
	if g.cancelSub != nil {
		return g.cancelSub, nil
	}
	return &rzp.GatewaySubscription{ID: id, Status: "cancelled"}, nil
}

func (g *stubGateway) Ping(_ context.Context) error { return nil }

func testConfig() *cfgpkg.Config {
	return &cfgpkg.Config{
		AppBaseURL: "https://app.prepstack.io",
		Payments: cfgpkg.PaymentsConfig{
			Enabled:           true,
			RolloutPercent:    100,
			Plans:             []*types.Plan{{ID: "plan_monthly", Name: "Monthly", Period: "monthly", Amount: 49900, Currency: "INR"}},
			DefaultReturnPath: "/dashboard/billing",
		},
	}
}

func newTestService(cfg *cfgpkg.Config, st store.Store, gw rzp.Gateway) *Service {
	log := zap.NewNop().Sugar()
	ro := rollout.NewService(cfg, rollout.NewCache(time.Minute), log)
	return NewService(cfg, log, st, gw, ro)
}

func user() types.UserIdentity {
	return types.UserIdentity{UID: "user_1", Email: "u1@example.com", Name: "U One"}
}

func TestCreateSubscription_Succeeds(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &stubGateway{}
	svc := newTestService(testConfig(), st, gw)

	res, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{
		PlanID:    "plan_monthly",
		ReturnURL: "/billing/success",
		Metadata:  map[string]string{"source": "pricing_page"},
	})
	require.NoError(t, err)
	require.Equal(t, "sub_new1", res.SubscriptionID)
	require.Equal(t, "created", res.Status)
	require.Equal(t, "https://app.prepstack.io/billing/success", res.ReturnURL)
	require.Contains(t, res.CallbackURL, "/billing/callback?subscription_id=sub_new1")
	require.Equal(t, 1, gw.customerCalls)
	require.Equal(t, 1, gw.createCalls)

	require.Equal(t, "user_1", gw.lastCreate.Notes["user_id"])
	require.Equal(t, "pricing_page", gw.lastCreate.Notes["source"])
	require.Equal(t, 12, gw.lastCreate.TotalCount)
	require.True(t, gw.lastCreate.CustomerNotify)

	intent, err := st.GetPaymentIntent(context.Background(), "sub_new1")
	require.NoError(t, err)
	require.Equal(t, models.PaymentIntentStatusPending, intent.Status)
	require.Equal(t, "user_1", intent.UserID)
}

func TestCreateSubscription_DefaultReturnURL(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &stubGateway{}
	svc := newTestService(testConfig(), st, gw)

	res, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{PlanID: "plan_monthly"})
	require.NoError(t, err)
	require.Equal(t, "https://app.prepstack.io/dashboard/billing", res.ReturnURL)
}

func TestCreateSubscription_PaymentsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Payments.Enabled = false
	gw := &stubGateway{}
	svc := newTestService(cfg, store.NewMemoryStore(), gw)

	_, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{PlanID: "plan_monthly"})
	require.ErrorIs(t, err, ErrPaymentsDisabled)
	require.Zero(t, gw.customerCalls)
}

func TestCreateSubscription_NotInRollout(t *testing.T) {
	cfg := testConfig()
	cfg.Payments.RolloutPercent = 0
	gw := &stubGateway{}
	svc := newTestService(cfg, store.NewMemoryStore(), gw)

	_, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{PlanID: "plan_monthly"})
	require.ErrorIs(t, err, ErrNotInRollout)
	require.Zero(t, gw.customerCalls)
}

func TestCreateSubscription_AllowlistBypassesPercent(t *testing.T) {
	cfg := testConfig()
	cfg.Payments.RolloutPercent = 0
	cfg.Payments.RolloutAllowlist = []string{"u1@example.com"}
	gw := &stubGateway{}
	svc := newTestService(cfg, store.NewMemoryStore(), gw)

	_, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{PlanID: "plan_monthly"})
	require.NoError(t, err)
}

func TestCreateSubscription_MissingPlan(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(testConfig(), store.NewMemoryStore(), gw)

	_, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{})
	require.ErrorIs(t, err, ErrMissingPlanID)
	require.Zero(t, gw.customerCalls)
}

func TestCreateSubscription_UnknownPlanRejectedBeforeGateway(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &stubGateway{}
	svc := newTestService(testConfig(), st, gw)

	_, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{PlanID: "plan_bogus"})
	require.ErrorIs(t, err, ErrInvalidPlanID)
	require.Zero(t, gw.customerCalls)
	require.Zero(t, gw.createCalls)
	require.Zero(t, st.Writes())
}

func TestCreateSubscription_CrossOriginReturnURLRejected(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(testConfig(), store.NewMemoryStore(), gw)

	_, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{
		PlanID:    "plan_monthly",
		ReturnURL: "https://evil.example.com/phish",
	})
	require.ErrorIs(t, err, ErrInvalidReturnURL)
	require.Zero(t, gw.customerCalls)
}

func TestCreateSubscription_RateLimited(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &stubGateway{}
	svc := newTestService(testConfig(), st, gw)

	now := time.Now()
	for i, id := range []string{"sub_a", "sub_b", "sub_c"} {
		require.NoError(t, st.CreatePaymentIntent(context.Background(), &models.PaymentIntent{
			SubscriptionID: id,
			UserID:         "user_1",
			PlanID:         "plan_monthly",
			Status:         models.PaymentIntentStatusPending,
			CreatedAt:      now.Add(-time.Duration(i) * time.Second),
		}))
	}

	_, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{PlanID: "plan_monthly"})
	require.ErrorIs(t, err, ErrTooManyAttempts)
	require.Zero(t, gw.customerCalls)
}

func TestCreateSubscription_OldAttemptsOutsideWindowDoNotCount(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &stubGateway{}
	svc := newTestService(testConfig(), st, gw)

	for _, id := range []string{"sub_a", "sub_b", "sub_c"} {
		require.NoError(t, st.CreatePaymentIntent(context.Background(), &models.PaymentIntent{
			SubscriptionID: id,
			UserID:         "user_1",
			Status:         models.PaymentIntentStatusPending,
			CreatedAt:      time.Now().Add(-2 * time.Minute),
		}))
	}

	_, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{PlanID: "plan_monthly"})
	require.NoError(t, err)
}

func TestCreateSubscription_GatewayFailureHasNoLocalSideEffects(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &stubGateway{createErr: errors.New("503 from gateway")}
	svc := newTestService(testConfig(), st, gw)

	_, err := svc.CreateSubscription(context.Background(), user(), &CreateSubscriptionRequest{PlanID: "plan_monthly"})
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	require.Zero(t, st.Writes())
}

func TestCancel_TransitionsStatusLocally(t *testing.T) {
	st := store.NewMemoryStore()
	endedAt := time.Now().Unix()
	gw := &stubGateway{cancelSub: &rzp.GatewaySubscription{ID: "sub_1", Status: "cancelled", EndedAt: &endedAt}}
	svc := newTestService(testConfig(), st, gw)

	require.NoError(t, st.UpsertSubscription(context.Background(), "user_1", &models.Subscription{
		SubscriptionID: "sub_1",
		PlanID:         "plan_monthly",
		Status:         "active",
		StatusMapped:   types.SubscriptionStatusActive,
	}))

	res, err := svc.Cancel(context.Background(), user(), "sub_1", false)
	require.NoError(t, err)
	require.Equal(t, "cancelled", res.Status)
	require.NotNil(t, res.EndedAt)
	require.Equal(t, 1, gw.cancelCalls)

	sub, err := st.GetSubscription(context.Background(), "user_1", "sub_1")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusCanceled, sub.StatusMapped)
	require.NotNil(t, sub.EndedAt)
	// The record survives cancellation.
	require.Equal(t, "plan_monthly", sub.PlanID)
}

func TestCancel_OtherUsersSubscriptionNotFound(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &stubGateway{}
	svc := newTestService(testConfig(), st, gw)

	require.NoError(t, st.UpsertSubscription(context.Background(), "someone_else", &models.Subscription{
		SubscriptionID: "sub_1",
		StatusMapped:   types.SubscriptionStatusActive,
	}))

	_, err := svc.Cancel(context.Background(), user(), "sub_1", false)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
	require.Zero(t, gw.cancelCalls)
}

func TestCancel_MissingID(t *testing.T) {
	svc := newTestService(testConfig(), store.NewMemoryStore(), &stubGateway{})
	_, err := svc.Cancel(context.Background(), user(), "", false)
	require.ErrorIs(t, err, ErrMissingSubscriptionID)
}

func TestCurrent_PrefersActiveSubscription(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(testConfig(), st, &stubGateway{})

	require.NoError(t, st.UpsertSubscription(context.Background(), "user_1", &models.Subscription{
		SubscriptionID: "sub_old",
		StatusMapped:   types.SubscriptionStatusCanceled,
	}))
	require.NoError(t, st.UpsertSubscription(context.Background(), "user_1", &models.Subscription{
		SubscriptionID: "sub_live",
		StatusMapped:   types.SubscriptionStatusActive,
	}))

	cur, err := svc.Current(context.Background(), user())
	require.NoError(t, err)
	require.NotNil(t, cur)
	require.Equal(t, "sub_live", cur.SubscriptionID)
}

func TestCurrent_NoSubscriptions(t *testing.T) {
	svc := newTestService(testConfig(), store.NewMemoryStore(), &stubGateway{})
	cur, err := svc.Current(context.Background(), user())
	require.NoError(t, err)
	require.Nil(t, cur)
}
