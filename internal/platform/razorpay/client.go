package razorpay

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/prepstack/billing/pkg/config"
)

// GatewaySubscription is the subset of the gateway's subscription entity the
// billing pipeline consumes.
type GatewaySubscription struct {
	ID           string
	PlanID       string
	Status       string
	ShortURL     string
	CurrentStart int64
	CurrentEnd   int64
	EndedAt      *int64
}

type CreateSubscriptionParams struct {
	PlanID         string
	CustomerID     string
	TotalCount     int
	CustomerNotify bool
	Notes          map[string]interface{}
}

// Gateway is the payment gateway boundary. The SDK-backed implementation
// talks to Razorpay; tests substitute a stub.
type Gateway interface {
	// EnsureCustomer resolves or creates the gateway customer for a user,
	// idempotent on email.
	EnsureCustomer(ctx context.Context, name, email, userID string) (string, error)
	CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*GatewaySubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atCycleEnd bool) (*GatewaySubscription, error)
	// Ping probes gateway reachability, used by the health endpoint.
	Ping(ctx context.Context) error
}

// Client implements Gateway on the Razorpay REST SDK.
type Client struct {
	rz        *razorpay.Client
	log       *zap.SugaredLogger
	probePlan string
}

const requestTimeoutSeconds = 20

func NewGateway(cfg *cfgpkg.Config, log *zap.SugaredLogger) Gateway {
	rz := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	rz.SetTimeout(requestTimeoutSeconds)

	probePlan := ""
	if len(cfg.Payments.Plans) > 0 {
		probePlan = cfg.Payments.Plans[0].ID
	}
	return &Client{rz: rz, log: log, probePlan: probePlan}
}

func (c *Client) EnsureCustomer(ctx context.Context, name, email, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// fail_existing=0 makes creation resolve to the existing customer on a
	// duplicate email instead of erroring.
	data := map[string]interface{}{
		"name":          name,
		"email":         email,
		"fail_existing": "0",
		"notes": map[string]interface{}{
			"user_id": userID,
		},
	}
	res, err := c.rz.Customer.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("gateway customer create failed: %w", err)
	}
	id := getString(res, "id")
	if id == "" {
		return "", fmt.Errorf("gateway customer create returned no id")
	}
	return id, nil
}

func (c *Client) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*GatewaySubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notify := 0
	if p.CustomerNotify {
		notify = 1
	}
	data := map[string]interface{}{
		"plan_id":         p.PlanID,
		"total_count":     p.TotalCount,
		"customer_notify": notify,
	}
	if p.CustomerID != "" {
		data["customer_id"] = p.CustomerID
	}
	if len(p.Notes) > 0 {
		data["notes"] = p.Notes
	}
	res, err := c.rz.Subscription.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway subscription create failed: %w", err)
	}
	return subscriptionFromMap(res), nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, atCycleEnd bool) (*GatewaySubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cycleEnd := 0
	if atCycleEnd {
		cycleEnd = 1
	}
	res, err := c.rz.Subscription.Cancel(subscriptionID, map[string]interface{}{
		"cancel_at_cycle_end": cycleEnd,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway subscription cancel failed: %w", err)
	}
	return subscriptionFromMap(res), nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.probePlan == "" {
		return nil
	}
	if _, err := c.rz.Plan.Fetch(c.probePlan, nil, nil); err != nil {
		return fmt.Errorf("gateway probe failed: %w", err)
	}
	return nil
}

func subscriptionFromMap(res map[string]interface{}) *GatewaySubscription {
	sub := &GatewaySubscription{
		ID:           getString(res, "id"),
		PlanID:       getString(res, "plan_id"),
		Status:       getString(res, "status"),
		ShortURL:     getString(res, "short_url"),
		CurrentStart: getInt64(res, "current_start"),
		CurrentEnd:   getInt64(res, "current_end"),
	}
	if v := getInt64(res, "ended_at"); v != 0 {
		sub.EndedAt = &v
	}
	return sub
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getInt64(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

var Module = fx.Options(
	fx.Provide(NewGateway),
)
