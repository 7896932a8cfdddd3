package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepstack/billing/internal/app/service/subscription"
	"github.com/prepstack/billing/internal/app/service/verification"
	"github.com/prepstack/billing/pkg/response"
)

// writeServiceError maps service sentinels onto HTTP statuses and envelope
// codes. Unrecognized errors surface as 500 with the error's message; service
// layers are responsible for never wrapping secrets into messages.
func writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := response.APIResponseCodeError

	switch {
	case errors.Is(err, subscription.ErrPaymentsDisabled):
		status, code = http.StatusServiceUnavailable, response.APIResponseCodeUnavailable
	case errors.Is(err, subscription.ErrNotInRollout):
		status, code = http.StatusForbidden, response.APIResponseCodeForbidden
	case errors.Is(err, subscription.ErrTooManyAttempts):
		status, code = http.StatusTooManyRequests, response.APIResponseCodeRateLimited
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		status, code = http.StatusNotFound, response.APIResponseCodeNotFound
	case errors.Is(err, subscription.ErrMissingPlanID),
		errors.Is(err, subscription.ErrInvalidPlanID),
		errors.Is(err, subscription.ErrInvalidReturnURL),
		errors.Is(err, subscription.ErrMissingSubscriptionID),
		errors.Is(err, verification.ErrMissingFields),
		errors.Is(err, verification.ErrInvalidSignature):
		status, code = http.StatusBadRequest, response.APIResponseCodeBadRequest
	}

	c.JSON(status, response.ErrorT(code, err.Error()))
}
