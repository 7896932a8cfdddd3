package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prepstack/billing/internal/app/service/webhook"
	rzp "github.com/prepstack/billing/internal/platform/razorpay"
	"github.com/prepstack/billing/internal/platform/store"
	cfgpkg "github.com/prepstack/billing/pkg/config"
)

const testWebhookSecret = "test_webhook_secret"

// okGateway is a no-op Gateway whose probes always succeed.
type okGateway struct{}

func (okGateway) EnsureCustomer(_ context.Context, _, _, _ string) (string, error) {
	return "cust_1", nil
}

func (okGateway) CreateSubscription(_ context.Context, p rzp.CreateSubscriptionParams) (*rzp.GatewaySubscription, error) {
	return &rzp.GatewaySubscription{ID: "sub_new1", PlanID: p.PlanID, Status: "created", ShortURL: "https://rzp.io/i/abc"}, nil
}

func (okGateway) CancelSubscription(_ context.Context, id string, _ bool) (*rzp.GatewaySubscription, error) {
	return &rzp.GatewaySubscription{ID: id, Status: "cancelled"}, nil
}

func (okGateway) Ping(_ context.Context) error { return nil }

func webhookEngine(st store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &cfgpkg.Config{Razorpay: cfgpkg.RazorpayConfig{WebhookSecret: testWebhookSecret}}
	rec := webhook.NewReconciler(cfg, zap.NewNop().Sugar(), st)
	r := gin.New()
	r.POST("/webhooks/razorpay", ApiRazorpayWebhook(rec))
	return r
}

func activatedEventBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"entity":     "event",
		"event":      "subscription.activated",
		"created_at": time.Now().Unix(),
		"payload": map[string]any{
			"subscription": map[string]any{
				"entity": map[string]any{
					"id":      "sub_1",
					"plan_id": "plan_monthly",
					"status":  "active",
					"notes":   map[string]any{"user_id": "user_1"},
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestApiRazorpayWebhook_AcceptsSignedDelivery(t *testing.T) {
	st := store.NewMemoryStore()
	r := webhookEngine(st)

	body := activatedEventBody(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Razorpay-Signature", rzp.SignPayload(body, testWebhookSecret))
	req.Header.Set("X-Razorpay-Event-Id", "evt_1")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	ev, err := st.GetWebhookEvent(context.Background(), "evt_1")
	require.NoError(t, err)
	require.True(t, ev.Processed)
}

func TestApiRazorpayWebhook_RejectsUnsignedDelivery(t *testing.T) {
	st := store.NewMemoryStore()
	r := webhookEngine(st)

	body := activatedEventBody(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Zero(t, st.Writes())
}

func TestApiRazorpayWebhook_MalformedBody(t *testing.T) {
	r := webhookEngine(store.NewMemoryStore())

	body := []byte(`{"event":`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", rzp.SignPayload(body, testWebhookSecret))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiWebhookHealth_ReportsScore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewMemoryStore()
	mon := webhook.NewMonitor(zap.NewNop().Sugar(), st, okGateway{})
	r := gin.New()
	r.GET("/webhooks/razorpay/health", ApiWebhookHealth(mon))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/razorpay/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "healthScore")
	require.Contains(t, w.Body.String(), "razorpayStatus")
}

func TestApiWebhookCleanup_ReportsDeletedCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewMemoryStore()
	mon := webhook.NewMonitor(zap.NewNop().Sugar(), st, okGateway{})
	r := gin.New()
	r.DELETE("/webhooks/razorpay/health", ApiWebhookCleanup(mon))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/webhooks/razorpay/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"deleted":0`)
	require.Contains(t, w.Body.String(), `"message":"deleted 0 expired webhook events"`)
}
