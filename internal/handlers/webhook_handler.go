package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/keystonepm/backoffice/internal/services"
)

// signatureHeader carries the processor's HMAC over the raw body.
const signatureHeader = "X-Payment-Signature"

type WebhookHandler struct {
	webhooks  *services.WebhookService
	validator *services.ValidationHelper
}

func NewWebhookHandler(webhooks *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhooks:  webhooks,
		validator: services.NewValidationHelper(),
	}
}

// HandlePaymentEvent ingests a payment processor event
// @Summary Payment webhook
// @Description Verify the signature and apply the event. Redeliveries are acknowledged without re-posting.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-Payment-Signature header string true "HMAC-SHA256 hex signature of the body"
// @Param event body services.PaymentEvent true "Payment event"
// @Success 200 {object} object{applied=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /webhooks/payments [post]
func (h *WebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	// Signature verification needs the exact raw bytes, so read before decoding.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_576))
	if err != nil {
		services.SendErrorResponse(w, "Unable to read request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.webhooks.VerifySignature(body, r.Header.Get(signatureHeader)); err != nil {
		services.SendErrorResponse(w, "Invalid webhook signature", http.StatusUnauthorized, nil)
		return
	}

	var event services.PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		services.SendErrorResponse(w, "Invalid event payload", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&event); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	applied, pair, err := h.webhooks.HandleEvent(r.Context(), event)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	resp := map[string]any{"applied": applied}
	if pair != nil {
		resp["entries"] = pair
	}
	writeJSON(w, http.StatusOK, resp)
}
