package webhook

import (
	"encoding/json"

	"github.com/prepstack/billing/pkg/types"
)

// gatewayEvent is the wire shape of a Razorpay webhook delivery. Only the
// fields the reconciler consumes are declared.
type gatewayEvent struct {
	Entity    string `json:"entity"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Subscription struct {
			Entity subscriptionEntity `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type subscriptionEntity struct {
	ID           string  `json:"id"`
	PlanID       string  `json:"plan_id"`
	Status       string  `json:"status"`
	CurrentStart int64   `json:"current_start"`
	CurrentEnd   int64   `json:"current_end"`
	EndedAt      *int64  `json:"ended_at"`
	ShortURL     string  `json:"short_url"`
	Notes        noteMap `json:"notes"`
}

type paymentEntity struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Method    string `json:"method"`
	CreatedAt int64  `json:"created_at"`
}

// noteMap tolerates the gateway serializing empty notes as [] instead of {}.
type noteMap map[string]interface{}

func (n *noteMap) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		*n = nil
		return nil
	}
	*n = m
	return nil
}

func (n noteMap) str(key string) string {
	if v, ok := n[key].(string); ok {
		return v
	}
	return ""
}

type eventClass int

const (
	classIgnored eventClass = iota
	classActivated
	classCharged
	classCancelled
)

// classify buckets the gateway's event vocabulary into the three transitions
// the state machine cares about. Everything else is acknowledged and ignored.
func classify(event string) eventClass {
	switch event {
	case "subscription.activated", "subscription.authenticated", "subscription.resumed":
		return classActivated
	case "subscription.charged":
		return classCharged
	case "subscription.cancelled", "subscription.halted", "subscription.completed":
		return classCancelled
	default:
		return classIgnored
	}
}

func (c eventClass) mappedStatus() types.SubscriptionStatus {
	switch c {
	case classActivated, classCharged:
		return types.SubscriptionStatusActive
	case classCancelled:
		return types.SubscriptionStatusCanceled
	default:
		return types.SubscriptionStatusPending
	}
}
