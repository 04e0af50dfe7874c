package payments

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/trainhub/backend/internal/fees"
	"github.com/trainhub/backend/internal/models"
	"github.com/trainhub/backend/internal/processors"
	"github.com/trainhub/backend/internal/subscriptions"
	"github.com/trainhub/backend/pkg/queue"
)

// SubscriptionStore is the slice of the subscriptions layer the orchestrator
// needs.
type SubscriptionStore interface {
	GetByID(ctx context.Context, id int64) (*models.Subscription, error)
}

// AdapterRegistry resolves processor adapters by payment method.
type AdapterRegistry interface {
	ForMethod(method string) (processors.Adapter, error)
}

// Notifier enqueues outbound notification facts. Delivery happens in the
// worker; enqueue failures are logged and never fail a confirmation.
type Notifier interface {
	EnqueuePaymentConfirmed(ctx context.Context, payload queue.PaymentConfirmedPayload) error
}

// Service is the payment orchestrator: it drives a payment from intent
// creation through processor approval to terminal completion or failure,
// and owns the idempotency guarantees for initiation and confirmation.
type Service struct {
	store     Store
	subs      SubscriptionStore
	registry  AdapterRegistry
	notifier  Notifier
	returnURL string
	cancelURL string
	logger    *zap.Logger
}

// NewService creates a payment orchestrator.
func NewService(store Store, subs SubscriptionStore, registry AdapterRegistry, notifier Notifier, returnURL, cancelURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		subs:      subs,
		registry:  registry,
		notifier:  notifier,
		returnURL: returnURL,
		cancelURL: cancelURL,
		logger:    logger,
	}
}

// Initiate creates (or idempotently reuses) the payment for a subscription
// and returns it with its processor redirect URL. A second call while the
// first payment is still non-terminal returns the same payment unchanged.
func (s *Service) Initiate(ctx context.Context, clientID, subscriptionID int64, method string) (*models.Payment, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if errors.Is(err, subscriptions.ErrNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	if sub.ClientID != clientID {
		return nil, ErrNotSubscriptionOwner
	}
	switch sub.Status {
	case models.SubscriptionStatusActive:
		return nil, ErrSubscriptionActive
	case models.SubscriptionStatusCanceled:
		return nil, ErrSubscriptionCanceled
	}

	p, err := s.store.FindNonTerminalBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if p != nil && p.ProcessorOrderID != nil {
		return p, nil
	}

	if p == nil {
		fee, payout, err := fees.Compute(sub.AmountMinor, sub.PlatformFeePct)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		p = &models.Payment{
			SubscriptionID:     sub.ID,
			ClientID:           sub.ClientID,
			AmountMinor:        sub.AmountMinor,
			Currency:           sub.Currency,
			PlatformFeeMinor:   fee,
			TrainerPayoutMinor: payout,
			Method:             method,
			Status:             models.PaymentStatusPending,
		}
		if err := s.store.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("create payment: %w", err)
		}
	}

	// The pending row is persisted before the processor call, so a failed
	// call leaves a retryable record instead of a half-created one.
	adapter, err := s.registry.ForMethod(p.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	res, err := adapter.CreateOrder(ctx, p, s.returnURL, s.cancelURL)
	if err != nil {
		s.logger.Error("processor order creation failed",
			zap.Int64("payment_id", p.ID),
			zap.String("method", p.Method),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	if err := s.store.SetProcessorOrder(ctx, p.ID, res.OrderID, res.ApprovalURL); err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatusProcessing
	p.ProcessorOrderID = &res.OrderID
	p.RedirectURL = &res.ApprovalURL

	s.logger.Info("payment initiated",
		zap.Int64("payment_id", p.ID),
		zap.Int64("subscription_id", sub.ID),
		zap.String("method", p.Method),
		zap.Int64("amount_minor", p.AmountMinor),
	)
	return p, nil
}

// Confirm transitions a payment to completed and cascades subscription
// activation. Confirming an already-terminal payment is a successful no-op.
func (s *Service) Confirm(ctx context.Context, paymentID int64, txnID, captureID *string) error {
	res, err := s.store.Confirm(ctx, paymentID, txnID, captureID)
	if err != nil {
		return err
	}
	if res.AlreadyTerminal {
		s.logger.Info("confirmation replay ignored",
			zap.Int64("payment_id", paymentID),
			zap.String("status", res.Payment.Status),
		)
		return nil
	}

	s.logger.Info("payment completed",
		zap.Int64("payment_id", paymentID),
		zap.Int64("subscription_id", res.Payment.SubscriptionID),
		zap.Bool("subscription_activated", res.SubscriptionActivated),
	)
	if !res.SubscriptionActivated {
		// Canceled subscriptions stay canceled and already-active ones are
		// not re-activated; the money still landed, so flag it for ops.
		s.logger.Warn("payment completed without subscription activation",
			zap.Int64("payment_id", paymentID),
			zap.Int64("subscription_id", res.Payment.SubscriptionID),
		)
		return nil
	}

	if s.notifier != nil {
		err := s.notifier.EnqueuePaymentConfirmed(ctx, queue.PaymentConfirmedPayload{
			PaymentID:      res.Payment.ID,
			SubscriptionID: res.Payment.SubscriptionID,
			ClientID:       res.Payment.ClientID,
			AmountMinor:    res.Payment.AmountMinor,
			Currency:       res.Payment.Currency,
			Method:         res.Payment.Method,
		})
		if err != nil {
			s.logger.Error("enqueue payment confirmed notification failed",
				zap.Int64("payment_id", paymentID), zap.Error(err))
		}
	}
	return nil
}

// Fail transitions a payment to failed with a reason. Failing an
// already-terminal payment is a no-op.
func (s *Service) Fail(ctx context.Context, paymentID int64, reason string) error {
	err := s.store.MarkFailed(ctx, paymentID, reason)
	if errors.Is(err, ErrAlreadyProcessed) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("payment failed",
		zap.Int64("payment_id", paymentID),
		zap.String("reason", reason),
	)
	return nil
}

// CaptureAndConfirm captures an approved order server-side (the PayPal
// return flow) and confirms the payment with the resulting capture id.
// Capturing an already-completed payment returns it unchanged.
func (s *Service) CaptureAndConfirm(ctx context.Context, clientID, paymentID int64) (*models.Payment, error) {
	p, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.ClientID != clientID {
		return nil, ErrNotSubscriptionOwner
	}
	if p.Status == models.PaymentStatusCompleted {
		return p, nil
	}
	if p.ProcessorOrderID == nil {
		return nil, fmt.Errorf("%w: payment has no processor order", ErrValidation)
	}

	adapter, err := s.registry.ForMethod(p.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	captureID, err := adapter.CaptureOrder(ctx, *p.ProcessorOrderID)
	if errors.Is(err, processors.ErrUnsupported) {
		return nil, fmt.Errorf("%w: capture not supported for %s", ErrValidation, p.Method)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	if err := s.Confirm(ctx, paymentID, nil, &captureID); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, paymentID)
}

// Refund refunds a completed payment through its processor and records the
// transition. It does not cancel the subscription; that is a separate
// administrative action.
func (s *Service) Refund(ctx context.Context, paymentID int64) (*models.Payment, error) {
	p, err := s.store.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case models.PaymentStatusRefunded:
		return nil, ErrAlreadyRefunded
	case models.PaymentStatusCompleted:
	default:
		return nil, ErrNotRefundable
	}

	correlation := p.ProcessorCaptureID
	if correlation == nil {
		correlation = p.ProcessorTxnID
	}
	if correlation == nil {
		return nil, fmt.Errorf("%w: payment has no settlement reference", ErrValidation)
	}
	adapter, err := s.registry.ForMethod(p.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	refundID, err := adapter.Refund(ctx, *correlation, p.AmountMinor, p.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	if err := s.store.MarkRefunded(ctx, paymentID, refundID); err != nil {
		return nil, err
	}
	s.logger.Info("payment refunded",
		zap.Int64("payment_id", paymentID),
		zap.String("refund_id", refundID),
	)
	return s.store.GetByID(ctx, paymentID)
}

// GetByID returns a payment by internal id.
func (s *Service) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	return s.store.GetByID(ctx, id)
}

// ListByClient returns a client's payment history.
func (s *Service) ListByClient(ctx context.Context, clientID int64) ([]models.Payment, error) {
	return s.store.ListByClient(ctx, clientID)
}
