package handlers

import (
	"github.com/prepstack/billing/internal/app/service/webhook"
	"github.com/prepstack/billing/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespWebhookHealth wraps the webhook pipeline health report in the standard envelope.
type RespWebhookHealth struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    webhook.HealthReport     `json:"data"`
}
