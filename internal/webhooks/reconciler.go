// Package webhooks reconciles verified processor events with payment state.
// The reconciler is transport-agnostic: every outcome is a small structured
// result that the HTTP layer translates into the acknowledgement the
// processor expects.
package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/trainhub/backend/internal/models"
	"github.com/trainhub/backend/internal/payments"
	"github.com/trainhub/backend/internal/processors/paymob"
	"github.com/trainhub/backend/internal/processors/paypal"
)

// ErrSignatureInvalid marks a webhook that failed authenticity verification.
// Rejected with no state mutation; the reason is logged for audit but never
// returned to the caller.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// Result is the reconciler's transport-agnostic outcome.
type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PaymentID *int64 `json:"payment_id"`
}

// PaymentService is the slice of the orchestrator the reconciler drives.
type PaymentService interface {
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	Confirm(ctx context.Context, paymentID int64, txnID, captureID *string) error
	Fail(ctx context.Context, paymentID int64, reason string) error
}

// PaymobVerifier authenticates Paymob transaction events.
type PaymobVerifier interface {
	Verify(evt *paymob.TransactionEvent, received string) bool
}

// PayPalVerifier authenticates PayPal webhook deliveries.
type PayPalVerifier interface {
	VerifyWebhookSignature(ctx context.Context, h paypal.WebhookHeaders, rawBody []byte) (bool, error)
}

// Reconciler translates inbound, verified processor events into state
// transitions on payments and their subscriptions. Idempotency is keyed off
// payment state: replays of a terminal payment acknowledge success without
// re-applying side effects.
type Reconciler struct {
	svc            PaymentService
	paymobVerifier PaymobVerifier
	paypalVerifier PayPalVerifier
	logger         *zap.Logger
}

// NewReconciler creates a webhook reconciler.
func NewReconciler(svc PaymentService, pmv PaymobVerifier, ppv PayPalVerifier, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{svc: svc, paymobVerifier: pmv, paypalVerifier: ppv, logger: logger}
}

// HandlePaymob processes one Paymob transaction callback. The HMAC arrives
// out of band (query parameter) and is checked before anything is trusted.
func (r *Reconciler) HandlePaymob(ctx context.Context, evt *paymob.TransactionEvent, receivedHMAC string) (Result, error) {
	if !r.paymobVerifier.Verify(evt, receivedHMAC) {
		r.logger.Warn("webhook signature rejected",
			zap.String("processor", models.PaymentMethodPaymob),
			zap.String("merchant_order_id", evt.Obj.Order.MerchantOrderID),
			zap.Int64("paymob_txn_id", evt.Obj.ID),
		)
		return Result{Success: false, Message: "signature verification failed"}, ErrSignatureInvalid
	}

	if evt.Type != "TRANSACTION" {
		return Result{Success: true, Message: "event ignored"}, nil
	}

	paymentID, err := strconv.ParseInt(evt.Obj.Order.MerchantOrderID, 10, 64)
	if err != nil || paymentID <= 0 {
		return Result{Success: false, Message: "invalid merchant order id"},
			payments.ErrValidation
	}

	txnID := strconv.FormatInt(evt.Obj.ID, 10)
	if evt.Obj.Success {
		return r.applySuccess(ctx, models.PaymentMethodPaymob, paymentID, &txnID, nil)
	}
	return r.applyFailure(ctx, models.PaymentMethodPaymob, paymentID, "declined by processor")
}

// HandlePayPal processes one PayPal webhook delivery. Verification runs over
// the raw body before it is decoded or trusted.
func (r *Reconciler) HandlePayPal(ctx context.Context, h paypal.WebhookHeaders, rawBody []byte) (Result, error) {
	ok, err := r.paypalVerifier.VerifyWebhookSignature(ctx, h, rawBody)
	if err != nil {
		// Verification unavailable is transient: reject so PayPal redelivers.
		r.logger.Error("webhook verification call failed",
			zap.String("processor", models.PaymentMethodPayPal), zap.Error(err))
		return Result{Success: false, Message: "verification unavailable"}, err
	}
	if !ok {
		r.logger.Warn("webhook signature rejected",
			zap.String("processor", models.PaymentMethodPayPal),
			zap.String("transmission_id", h.TransmissionID),
		)
		return Result{Success: false, Message: "signature verification failed"}, ErrSignatureInvalid
	}

	var evt paypal.WebhookEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return Result{Success: false, Message: "malformed event"}, payments.ErrValidation
	}

	switch evt.EventType {
	case paypal.EventCaptureCompleted, paypal.EventCaptureDenied:
	default:
		return Result{Success: true, Message: "event ignored"}, nil
	}

	paymentID, err := strconv.ParseInt(evt.Resource.CustomID, 10, 64)
	if err != nil || paymentID <= 0 {
		return Result{Success: false, Message: "invalid payment reference"},
			payments.ErrValidation
	}

	if evt.EventType == paypal.EventCaptureCompleted {
		return r.applySuccess(ctx, models.PaymentMethodPayPal, paymentID, nil, &evt.Resource.ID)
	}
	reason := evt.Resource.StatusDetail.Reason
	if reason == "" {
		reason = "capture denied"
	}
	return r.applyFailure(ctx, models.PaymentMethodPayPal, paymentID, reason)
}

func (r *Reconciler) applySuccess(ctx context.Context, processor string, paymentID int64, txnID, captureID *string) (Result, error) {
	p, err := r.svc.GetByID(ctx, paymentID)
	if errors.Is(err, payments.ErrPaymentNotFound) {
		return Result{Success: false, Message: "payment not found"}, err
	}
	if err != nil {
		return Result{Success: false, Message: "lookup failed"}, err
	}
	if p.Status == models.PaymentStatusCompleted {
		r.logger.Info("webhook replay acknowledged",
			zap.String("processor", processor),
			zap.Int64("payment_id", paymentID),
		)
		return Result{Success: true, Message: "already processed", PaymentID: &paymentID}, nil
	}

	if err := r.svc.Confirm(ctx, paymentID, txnID, captureID); err != nil {
		return Result{Success: false, Message: "confirmation failed"}, err
	}
	return Result{Success: true, Message: "payment confirmed", PaymentID: &paymentID}, nil
}

func (r *Reconciler) applyFailure(ctx context.Context, processor string, paymentID int64, reason string) (Result, error) {
	p, err := r.svc.GetByID(ctx, paymentID)
	if errors.Is(err, payments.ErrPaymentNotFound) {
		return Result{Success: false, Message: "payment not found"}, err
	}
	if err != nil {
		return Result{Success: false, Message: "lookup failed"}, err
	}
	if p.IsTerminal() {
		return Result{Success: true, Message: "already processed", PaymentID: &paymentID}, nil
	}

	if err := r.svc.Fail(ctx, paymentID, reason); err != nil {
		return Result{Success: false, Message: "failure transition failed"}, err
	}
	r.logger.Info("payment marked failed from webhook",
		zap.String("processor", processor),
		zap.Int64("payment_id", paymentID),
		zap.String("reason", reason),
	)
	return Result{Success: true, Message: "payment failed", PaymentID: &paymentID}, nil
}
