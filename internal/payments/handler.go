package payments

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trainhub/backend/internal/middleware"
	"github.com/trainhub/backend/pkg/response"
)

// InitiateRequest is the body for POST /payments.
type InitiateRequest struct {
	SubscriptionID int64  `json:"subscription_id" binding:"required,gt=0"`
	Method         string `json:"method" binding:"required,oneof=paymob paypal"`
}

// Handler exposes the caller-facing payment API on top of the orchestrator.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Initiate handles POST /payments. Repeating the call while the payment is
// still open returns the same payment and redirect URL.
func (h *Handler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	p, err := h.svc.Initiate(c.Request.Context(), middleware.UserID(c), req.SubscriptionID, req.Method)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, p)
}

// List handles GET /payments: the caller's payment history.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListByClient(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /payments/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid payment id")
		return
	}
	p, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if p.ClientID != middleware.UserID(c) && middleware.UserRole(c) != "admin" {
		response.NotFound(c, "payment not found")
		return
	}
	response.OK(c, p)
}

// Capture handles POST /payments/:id/capture: the server-side capture step
// of the PayPal return flow.
func (h *Handler) Capture(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid payment id")
		return
	}
	p, err := h.svc.CaptureAndConfirm(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, p)
}

// Refund handles POST /payments/:id/refund (admin only, enforced in routing).
func (h *Handler) Refund(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid payment id")
		return
	}
	p, err := h.svc.Refund(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, p)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPaymentNotFound), errors.Is(err, ErrSubscriptionNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNotSubscriptionOwner):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrSubscriptionActive), errors.Is(err, ErrSubscriptionCanceled),
		errors.Is(err, ErrNotRefundable), errors.Is(err, ErrAlreadyRefunded):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrProcessor):
		response.BadGateway(c, "payment processor unavailable")
	default:
		h.logger.Error("payment request failed", zap.Error(err))
		response.Internal(c, "internal error")
	}
}
