package types

// UserIdentity is the authenticated caller resolved by the auth middleware.
type UserIdentity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SubscriptionStatus is the normalized subscription state. The gateway's raw
// status vocabulary is wider; mapping happens at the webhook/cancel boundary.
type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// MapGatewayStatus normalizes a raw gateway subscription status.
func MapGatewayStatus(raw string) SubscriptionStatus {
	switch raw {
	case "active", "authenticated", "resumed":
		return SubscriptionStatusActive
	case "cancelled", "halted", "expired", "completed":
		return SubscriptionStatusCanceled
	default:
		return SubscriptionStatusPending
	}
}

// Plan is an allow-listed gateway plan the service will create subscriptions for.
type Plan struct {
	ID       string `json:"id" mapstructure:"id"`
	Name     string `json:"name" mapstructure:"name"`
	Period   string `json:"period" mapstructure:"period"`
	Amount   int64  `json:"amount" mapstructure:"amount"`
	Currency string `json:"currency" mapstructure:"currency"`
}
