package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"civildocs_backend/internal/payments/service"
	"civildocs_backend/internal/payments/transport"
	"civildocs_backend/platform/httpkit"
	"civildocs_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for payments.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new payments handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Initialize creates a payment intent for a request.
// POST /api/v1/requests/:id/payment
func (h *Handler) Initialize(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request ID", nil)
		return
	}

	result, err := h.svc.InitializePayment(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// Confirm re-checks an intent with the gateway after a client-side
// confirmation.
// POST /api/v1/payments/confirm
func (h *Handler) Confirm(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.ConfirmPayment(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Webhook receives asynchronous gateway callbacks. Signature verification
// happens in the VerifySignature middleware before this runs.
// POST /api/v1/payments/webhook
func (h *Handler) Webhook(c *gin.Context) {
	var event transport.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid webhook payload", nil)
		return
	}

	outcome, ok := outcomeFromEventType(event.Type)
	if !ok {
		// Unknown event families are acknowledged so the gateway stops
		// redelivering them.
		httpkit.OK(c, gin.H{"received": true})
		return
	}

	_, err := h.svc.UpdatePaymentStatus(c.Request.Context(), event.Data.IntentID, outcome, event.Data.TransactionID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"received": true})
}

// outcomeFromEventType maps "payment_intent.<outcome>" event names onto
// the gateway outcome vocabulary.
func outcomeFromEventType(eventType string) (string, bool) {
	outcome, ok := strings.CutPrefix(eventType, "payment_intent.")
	if !ok {
		return "", false
	}
	switch outcome {
	case "succeeded", "payment_failed", "canceled":
		if outcome != "succeeded" {
			outcome = "failed"
		}
		return outcome, true
	}
	return "", false
}
