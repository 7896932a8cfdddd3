package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/prepstack/billing/internal/app/api/middleware"
	subsvc "github.com/prepstack/billing/internal/app/service/subscription"
	"github.com/prepstack/billing/internal/app/service/verification"
	"github.com/prepstack/billing/pkg/response"
)

// @Summary      Create Subscription
// @Description  Creates a gateway subscription for the authenticated user and records a pending payment intent.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Param        request body subscription.CreateSubscriptionRequest true "Subscription creation request"
// @Success      201  {object}  handlers.RespOK
// @Router       /api/v1/billing/subscriptions [post]
func ApiCreateSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mw.UserFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
			return
		}
		var req subsvc.CreateSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := svc.CreateSubscription(c.Request.Context(), user, &req)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, response.OKT(res))
	}
}

type cancelSubscriptionReq struct {
	SubscriptionID   string `json:"subscriptionId"`
	CancelAtCycleEnd bool   `json:"cancelAtCycleEnd"`
}

// @Summary      Cancel Subscription
// @Description  Cancels the authenticated user's subscription at the gateway, immediately or at cycle end.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Param        request body handlers.cancelSubscriptionReq true "Cancellation request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/billing/subscriptions/cancel [post]
func ApiCancelSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mw.UserFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
			return
		}
		var req cancelSubscriptionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := svc.Cancel(c.Request.Context(), user, req.SubscriptionID, req.CancelAtCycleEnd)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Current Subscription
// @Description  Returns the authenticated user's most relevant subscription, if any.
// @Tags         Billing
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/billing/subscriptions/current [get]
func ApiCurrentSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mw.UserFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
			return
		}
		res, err := svc.Current(c.Request.Context(), user)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterBillingRoutes(r gin.IRouter, svc *subsvc.Service, vsvc *verification.Service) {
	r.POST("/subscriptions", ApiCreateSubscription(svc))
	r.POST("/subscriptions/cancel", ApiCancelSubscription(svc))
	r.GET("/subscriptions/current", ApiCurrentSubscription(svc))
	r.POST("/verify", ApiVerifyPayment(vsvc))
}
