package webhook

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	rzp "github.com/prepstack/billing/internal/platform/razorpay"
	"github.com/prepstack/billing/internal/platform/store"
	"github.com/prepstack/billing/pkg/logctx"
)

const (
	healthWindow      = time.Hour
	highLatencyMs     = 5000
	eventRetention    = 30 * 24 * time.Hour
	cleanupBatchLimit = 100
)

// Monitor aggregates recent webhook throughput and dependency probes into a
// composite health score, and owns retention cleanup of old event records.
type Monitor struct {
	log     *zap.SugaredLogger
	store   store.Store
	gateway rzp.Gateway
}

func NewMonitor(log *zap.SugaredLogger, st store.Store, gw rzp.Gateway) *Monitor {
	return &Monitor{log: log, store: st, gateway: gw}
}

type HealthMetrics struct {
	WebhooksLastHour    int     `json:"webhooksLastHour"`
	FailedWebhooks      int     `json:"failedWebhooks"`
	AvgProcessingTimeMs float64 `json:"avgProcessingTimeMs"`
	RazorpayStatus      string  `json:"razorpayStatus"`
	FirestoreStatus     string  `json:"firestoreStatus"`
}

type HealthReport struct {
	Status      string        `json:"status"`
	HealthScore int           `json:"healthScore"`
	Metrics     HealthMetrics `json:"metrics"`
}

// GetHealth computes a 0-100 score from fixed deductions: each unreachable
// dependency -30, failed webhooks up to -20, high average latency -10, a
// silent hour -10.
func (m *Monitor) GetHealth(ctx context.Context) (*HealthReport, error) {
	events, err := m.store.ListWebhookEventsSince(ctx, time.Now().Add(-healthWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load recent webhook events: %w", err)
	}

	total := len(events)
	failed := 0
	var latencySumMs float64
	latencySamples := 0
	for _, ev := range events {
		if !ev.Processed {
			failed++
			continue
		}
		if ev.ProcessedAt != nil {
			latencySumMs += float64(ev.ProcessedAt.Sub(ev.ReceivedAt).Milliseconds())
			latencySamples++
		}
	}
	avgMs := 0.0
	if latencySamples > 0 {
		avgMs = latencySumMs / float64(latencySamples)
	}

	gatewayStatus := "up"
	if err := m.gateway.Ping(ctx); err != nil {
		logctx.FromCtx(ctx, m.log).Warnw("gateway health probe failed", "error", err.Error())
		gatewayStatus = "down"
	}
	storeStatus := "up"
	if err := m.store.Ping(ctx); err != nil {
		logctx.FromCtx(ctx, m.log).Warnw("store health probe failed", "error", err.Error())
		storeStatus = "down"
	}

	score := 100
	if gatewayStatus == "down" {
		score -= 30
	}
	if storeStatus == "down" {
		score -= 30
	}
	if failed > 0 {
		deduction := failed * 2
		if deduction > 20 {
			deduction = 20
		}
		score -= deduction
	}
	if avgMs > highLatencyMs {
		score -= 10
	}
	if total == 0 {
		score -= 10
	}
	if score < 0 {
		score = 0
	}

	status := "healthy"
	switch {
	case score < 50:
		status = "unhealthy"
	case score < 80:
		status = "degraded"
	}

	return &HealthReport{
		Status:      status,
		HealthScore: score,
		Metrics: HealthMetrics{
			WebhooksLastHour:    total,
			FailedWebhooks:      failed,
			AvgProcessingTimeMs: avgMs,
			RazorpayStatus:      gatewayStatus,
			FirestoreStatus:     storeStatus,
		},
	}, nil
}

// Cleanup deletes webhook event records past the retention window, bounded to
// one batch per invocation. Safe to run repeatedly.
func (m *Monitor) Cleanup(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-eventRetention)
	deleted, err := m.store.DeleteWebhookEventsBefore(ctx, cutoff, cleanupBatchLimit)
	if err != nil {
		return deleted, fmt.Errorf("webhook event cleanup failed: %w", err)
	}
	if deleted > 0 {
		m.log.Infow("webhook events pruned", "deleted", deleted)
	}
	return deleted, nil
}
