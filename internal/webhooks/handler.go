package webhooks

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trainhub/backend/internal/payments"
	"github.com/trainhub/backend/internal/processors/paymob"
	"github.com/trainhub/backend/internal/processors/paypal"
)

// Handler exposes the per-processor webhook endpoints. These routes are
// unauthenticated at the router level; authenticity is established by
// signature verification inside the reconciler.
type Handler struct {
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewHandler creates a webhooks handler.
func NewHandler(reconciler *Reconciler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reconciler: reconciler, logger: logger}
}

// Paymob handles POST /webhooks/paymob. The HMAC is carried in the "hmac"
// query parameter per Paymob convention.
func (h *Handler) Paymob(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, Result{Success: false, Message: "unreadable body"})
		return
	}
	var evt paymob.TransactionEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		c.JSON(http.StatusBadRequest, Result{Success: false, Message: "malformed event"})
		return
	}

	res, err := h.reconciler.HandlePaymob(c.Request.Context(), &evt, c.Query("hmac"))
	c.JSON(ackStatus(err), res)
}

// PayPal handles POST /webhooks/paypal. The transmission headers feed
// signature verification; the raw body must reach the verifier unmodified.
func (h *Handler) PayPal(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, Result{Success: false, Message: "unreadable body"})
		return
	}
	headers := paypal.WebhookHeaders{
		TransmissionID:   c.GetHeader("Paypal-Transmission-Id"),
		TransmissionTime: c.GetHeader("Paypal-Transmission-Time"),
		TransmissionSig:  c.GetHeader("Paypal-Transmission-Sig"),
		CertURL:          c.GetHeader("Paypal-Cert-Url"),
		AuthAlgo:         c.GetHeader("Paypal-Auth-Algo"),
	}

	res, err := h.reconciler.HandlePayPal(c.Request.Context(), headers, raw)
	c.JSON(ackStatus(err), res)
}

// ackStatus maps reconciliation outcomes to the acknowledgement codes that
// drive processor retry policy: 2xx stops redelivery (including idempotent
// replays), 4xx is permanent, 5xx asks for a retry.
func ackStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrSignatureInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, payments.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, payments.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
