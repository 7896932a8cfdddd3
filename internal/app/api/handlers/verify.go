package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/prepstack/billing/internal/app/api/middleware"
	"github.com/prepstack/billing/internal/app/service/verification"
	"github.com/prepstack/billing/pkg/response"
)

// @Summary      Verify Payment
// @Description  Polls whether a subscription payment has been reconciled by the gateway webhook yet.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Param        request body verification.VerifyRequest true "Payment verification request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/billing/verify [post]
func ApiVerifyPayment(svc *verification.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mw.UserFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
			return
		}
		var req verification.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := svc.Verify(c.Request.Context(), user, &req)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}
