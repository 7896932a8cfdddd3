package subscription

import (
	"context"
	"fmt"
	"time"
)

const (
	creationRateWindow = 60 * time.Second
	creationRateLimit  = 3
)

// checkCreationRate is a sliding-window admission check over live state: it
// counts the user's payment intents created inside the trailing window rather
// than maintaining a separate counter, trading one query for exactness.
func (s *Service) checkCreationRate(ctx context.Context, userID string) error {
	count, err := s.store.CountPaymentIntentsSince(ctx, userID, time.Now().Add(-creationRateWindow))
	if err != nil {
		return fmt.Errorf("failed to count recent payment intents: %w", err)
	}
	if count >= creationRateLimit {
		return ErrTooManyAttempts
	}
	return nil
}
