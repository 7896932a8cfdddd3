package webhook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prepstack/billing/internal/models"
	rzp "github.com/prepstack/billing/internal/platform/razorpay"
	"github.com/prepstack/billing/internal/platform/store"
)

type stubGateway struct {
	pingErr error
}

func (g *stubGateway) EnsureCustomer(_ context.Context, _, _, _ string) (string, error) {
	panic("not used")
}

func (g *stubGateway) CreateSubscription(_ context.Context, _ rzp.CreateSubscriptionParams) (*rzp.GatewaySubscription, error) {
	panic("not used")
}

func (g *stubGateway) CancelSubscription(_ context.Context, _ string, _ bool) (*rzp.GatewaySubscription, error) {
	panic("not used")
}

func (g *stubGateway) Ping(_ context.Context) error { return g.pingErr }

func newTestMonitor(st store.Store, gw *stubGateway) *Monitor {
	return NewMonitor(zap.NewNop().Sugar(), st, gw)
}

func seedEvent(t *testing.T, st *store.MemoryStore, id string, age time.Duration, processed bool, latency time.Duration) {
	t.Helper()
	received := time.Now().Add(-age)
	ev := &models.WebhookEvent{
		EventID:    id,
		EventType:  "subscription.charged",
		ReceivedAt: received,
		Processed:  processed,
	}
	if processed {
		at := received.Add(latency)
		ev.ProcessedAt = &at
	}
	require.NoError(t, st.CreateWebhookEvent(context.Background(), ev))
}

func TestGetHealth_AllHealthy(t *testing.T) {
	st := store.NewMemoryStore()
	seedEvent(t, st, "evt_1", 10*time.Minute, true, 120*time.Millisecond)
	seedEvent(t, st, "evt_2", 5*time.Minute, true, 80*time.Millisecond)
	mon := newTestMonitor(st, &stubGateway{})

	report, err := mon.GetHealth(context.Background())
	require.NoError(t, err)
	require.Equal(t, 100, report.HealthScore)
	require.Equal(t, "healthy", report.Status)
	require.Equal(t, 2, report.Metrics.WebhooksLastHour)
	require.Zero(t, report.Metrics.FailedWebhooks)
	require.Equal(t, "up", report.Metrics.RazorpayStatus)
	require.Equal(t, "up", report.Metrics.FirestoreStatus)
}

func TestGetHealth_SilentHourDeduction(t *testing.T) {
	mon := newTestMonitor(store.NewMemoryStore(), &stubGateway{})

	report, err := mon.GetHealth(context.Background())
	require.NoError(t, err)
	require.Equal(t, 90, report.HealthScore)
	require.Equal(t, "healthy", report.Status)
}

func TestGetHealth_UnreachableDependencies(t *testing.T) {
	st := store.NewMemoryStore()
	st.FailPing = true
	seedEvent(t, st, "evt_1", 10*time.Minute, true, 100*time.Millisecond)
	mon := newTestMonitor(st, &stubGateway{pingErr: errors.New("gateway down")})

	report, err := mon.GetHealth(context.Background())
	require.NoError(t, err)
	require.Equal(t, 40, report.HealthScore)
	require.Equal(t, "unhealthy", report.Status)
	require.Equal(t, "down", report.Metrics.RazorpayStatus)
	require.Equal(t, "down", report.Metrics.FirestoreStatus)
}

func TestGetHealth_FailedWebhookDeductionIsCapped(t *testing.T) {
	st := store.NewMemoryStore()
	for i := 0; i < 15; i++ {
		seedEvent(t, st, fmt.Sprintf("evt_%d", i), 10*time.Minute, false, 0)
	}
	mon := newTestMonitor(st, &stubGateway{})

	report, err := mon.GetHealth(context.Background())
	require.NoError(t, err)
	// 15 failures deduct 2 each but cap at 20.
	require.Equal(t, 80, report.HealthScore)
	require.Equal(t, "healthy", report.Status)
	require.Equal(t, 15, report.Metrics.FailedWebhooks)
}

func TestGetHealth_FewFailuresDegrade(t *testing.T) {
	st := store.NewMemoryStore()
	seedEvent(t, st, "evt_ok", 10*time.Minute, true, 100*time.Millisecond)
	for i := 0; i < 3; i++ {
		seedEvent(t, st, fmt.Sprintf("evt_%d", i), 10*time.Minute, false, 0)
	}
	mon := newTestMonitor(st, &stubGateway{pingErr: errors.New("gateway down")})

	report, err := mon.GetHealth(context.Background())
	require.NoError(t, err)
	// 100 - 30 (gateway) - 6 (3 failures) = 64.
	require.Equal(t, 64, report.HealthScore)
	require.Equal(t, "degraded", report.Status)
}

func TestGetHealth_HighLatencyDeduction(t *testing.T) {
	st := store.NewMemoryStore()
	seedEvent(t, st, "evt_slow", 10*time.Minute, true, 8*time.Second)
	mon := newTestMonitor(st, &stubGateway{})

	report, err := mon.GetHealth(context.Background())
	require.NoError(t, err)
	require.Equal(t, 90, report.HealthScore)
	require.Greater(t, report.Metrics.AvgProcessingTimeMs, float64(highLatencyMs))
}

func TestGetHealth_OldEventsOutsideWindowIgnored(t *testing.T) {
	st := store.NewMemoryStore()
	seedEvent(t, st, "evt_old", 2*time.Hour, false, 0)
	mon := newTestMonitor(st, &stubGateway{})

	report, err := mon.GetHealth(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Metrics.WebhooksLastHour)
	require.Zero(t, report.Metrics.FailedWebhooks)
}

func TestCleanup_DeletesInBatches(t *testing.T) {
	st := store.NewMemoryStore()
	for i := 0; i < 150; i++ {
		seedEvent(t, st, fmt.Sprintf("evt_old_%d", i), eventRetention+time.Hour, true, time.Millisecond)
	}
	seedEvent(t, st, "evt_fresh", time.Minute, true, time.Millisecond)
	mon := newTestMonitor(st, &stubGateway{})

	deleted, err := mon.Cleanup(context.Background())
	require.NoError(t, err)
	require.Equal(t, cleanupBatchLimit, deleted)

	deleted, err = mon.Cleanup(context.Background())
	require.NoError(t, err)
	require.Equal(t, 50, deleted)

	deleted, err = mon.Cleanup(context.Background())
	require.NoError(t, err)
	require.Zero(t, deleted)

	_, err = st.GetWebhookEvent(context.Background(), "evt_fresh")
	require.NoError(t, err)
}
