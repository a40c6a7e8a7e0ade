package handlers

import (
	"errors"
	"net/http"

	"formbot-backend/service"

	"github.com/gin-gonic/gin"
)

// WebhookHandler handles inbound automation deliveries
type WebhookHandler struct {
	webhookService *service.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookService *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// Ingest handles POST /api/webhook
func (h *WebhookHandler) Ingest(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_JSON", "Request body must be a JSON object")
		return
	}

	result, err := h.webhookService.Ingest(c.Request.Context(), service.IngestRequest{
		Payload: payload,
		Headers: c.Request.Header,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyPayload):
			respondError(c, http.StatusBadRequest, "EMPTY_PAYLOAD", "Webhook payload is empty")
		case errors.Is(err, service.ErrMissingUserIdentity):
			respondError(c, http.StatusBadRequest, "MISSING_USER_IDENTITY",
				"Webhook payload must include a userId or a registered email")
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, http.StatusNotFound, "USER_NOT_FOUND",
				"No registered user matches the webhook email")
		default:
			respondError(c, http.StatusInternalServerError, "INGEST_FAILED", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Webhook processed",
		"profileId":   result.ProfileID,
		"userId":      result.UserID,
		"label":       result.Label,
		"fieldCount":  result.FieldCount,
		"source":      result.Source,
		"profileType": result.ProfileType,
		"action":      result.Action,
	})
}
