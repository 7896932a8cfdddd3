package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepstack/billing/internal/app/service/webhook"
	"github.com/prepstack/billing/pkg/response"
)

// Razorpay webhook bodies are small JSON documents; anything past this is
// either misconfiguration or abuse.
const maxWebhookBodyBytes = 1 << 20

// @Summary      Razorpay Webhook
// @Description  Receives gateway webhook deliveries, verifies the signature and reconciles subscription state.
// @Tags         Webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /webhooks/razorpay [post]
func ApiRazorpayWebhook(rec *webhook.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}

		signature := c.GetHeader("X-Razorpay-Signature")
		eventID := c.GetHeader("X-Razorpay-Event-Id")

		err = rec.Handle(c.Request.Context(), body, signature, eventID)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, response.OKT("ok"))
		case errors.Is(err, webhook.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, err.Error()))
		case errors.Is(err, webhook.ErrMalformedPayload):
			c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		default:
			// Non-2xx prompts the gateway to redeliver, which is what we want
			// for transient store failures.
			c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
		}
	}
}

// @Summary      Webhook Pipeline Health
// @Description  Reports a composite health score for the webhook reconciliation pipeline and its dependencies.
// @Tags         Webhooks
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /webhooks/razorpay/health [get]
func ApiWebhookHealth(mon *webhook.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := mon.GetHealth(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(report))
	}
}

type cleanupResult struct {
	Deleted int    `json:"deleted"`
	Message string `json:"message"`
}

// @Summary      Webhook Event Cleanup
// @Description  Deletes webhook event records older than the retention window, one batch per call.
// @Tags         Webhooks
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /webhooks/razorpay/health [delete]
func ApiWebhookCleanup(mon *webhook.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := mon.Cleanup(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(cleanupResult{
			Deleted: deleted,
			Message: fmt.Sprintf("deleted %d expired webhook events", deleted),
		}))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, rec *webhook.Reconciler, mon *webhook.Monitor) {
	r.POST("/razorpay", ApiRazorpayWebhook(rec))
	r.GET("/razorpay/health", ApiWebhookHealth(mon))
	r.DELETE("/razorpay/health", ApiWebhookCleanup(mon))
}
