package subscription

import "errors"

var (
	ErrPaymentsDisabled    = errors.New("payments are currently disabled")
	ErrNotInRollout        = errors.New("payments are not enabled for this account")
	ErrMissingPlanID       = errors.New("planId is required")
	ErrServerMisconfigured = errors.New("application base URL is not configured")
	ErrInvalidReturnURL    = errors.New("invalid return URL")
	ErrInvalidPlanID       = errors.New("invalid planId")
	ErrTooManyAttempts     = errors.New("too many subscription attempts, retry after 60 seconds")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")

	// ErrMissingSubscriptionID covers cancellation without an ID.
	ErrMissingSubscriptionID = errors.New("subscriptionId is required")

	// ErrSubscriptionNotFound deliberately covers both "does not exist" and
	// "exists under another user" so the endpoint cannot be used to probe for
	// existence.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
