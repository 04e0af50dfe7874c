package subscriptions

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trainhub/backend/internal/middleware"
	"github.com/trainhub/backend/internal/models"
	"github.com/trainhub/backend/pkg/response"
)

// CreateRequest is the body for POST /subscriptions. The amount is the
// package price in integer minor units, snapshotted here together with the
// platform fee percentage.
type CreateRequest struct {
	TrainerID   int64  `json:"trainer_id" binding:"required,gt=0"`
	PackageID   int64  `json:"package_id" binding:"required,gt=0"`
	AmountMinor int64  `json:"amount_minor" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,len=3"`
}

// Handler exposes the subscription endpoints.
type Handler struct {
	repo           *Repository
	platformFeePct float64
	logger         *zap.Logger
}

// NewHandler creates a subscriptions handler.
func NewHandler(repo *Repository, platformFeePct float64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, platformFeePct: platformFeePct, logger: logger}
}

// Create handles POST /subscriptions. The subscription starts unpaid;
// activation happens only through payment confirmation.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	sub := &models.Subscription{
		ClientID:       middleware.UserID(c),
		TrainerID:      req.TrainerID,
		PackageID:      req.PackageID,
		Status:         models.SubscriptionStatusUnpaid,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		PlatformFeePct: h.platformFeePct,
	}
	if err := h.repo.Create(c.Request.Context(), sub); err != nil {
		h.logger.Error("create subscription failed", zap.Error(err))
		response.Internal(c, "failed to create subscription")
		return
	}
	response.Created(c, sub)
}

// List handles GET /subscriptions: the caller's subscriptions.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByClient(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list subscriptions failed", zap.Error(err))
		response.Internal(c, "failed to list subscriptions")
		return
	}
	response.OK(c, list)
}

// Cancel handles POST /subscriptions/:id/cancel. Only the owner or an admin
// may cancel; a canceled subscription never reactivates.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid subscription id")
		return
	}

	sub, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("get subscription failed", zap.Error(err))
		response.Internal(c, "failed to load subscription")
		return
	}
	if sub.ClientID != middleware.UserID(c) && middleware.UserRole(c) != "admin" {
		response.Forbidden(c, "subscription does not belong to caller")
		return
	}

	switch err := h.repo.Cancel(c.Request.Context(), id); {
	case errors.Is(err, ErrAlreadyCanceled):
		response.Conflict(c, err.Error())
	case err != nil:
		h.logger.Error("cancel subscription failed", zap.Error(err), zap.Int64("subscription_id", id))
		response.Internal(c, "failed to cancel subscription")
	default:
		response.OK(c, gin.H{"subscription_id": id, "status": models.SubscriptionStatusCanceled})
	}
}
