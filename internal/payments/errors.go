package payments

import "errors"

// Domain errors. Handlers and the webhook layer map these onto HTTP codes;
// nothing here is fatal to the process.
var (
	// ErrPaymentNotFound is returned for an unknown payment id. Permanent,
	// never retry-inducing.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrSubscriptionNotFound is returned for an unknown subscription id.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrSubscriptionActive rejects initiation for an already-paid subscription.
	ErrSubscriptionActive = errors.New("subscription already active and paid")

	// ErrSubscriptionCanceled rejects initiation for a canceled subscription.
	ErrSubscriptionCanceled = errors.New("cannot pay a canceled subscription")

	// ErrNotSubscriptionOwner rejects operations on another client's records.
	ErrNotSubscriptionOwner = errors.New("subscription does not belong to caller")

	// ErrAlreadyProcessed marks an idempotent replay. Treated as success,
	// not failure: it is the primary defense against duplicate delivery.
	ErrAlreadyProcessed = errors.New("payment already processed")

	// ErrNotRefundable rejects refunds from any state but completed.
	ErrNotRefundable = errors.New("only completed payments can be refunded")

	// ErrAlreadyRefunded rejects a second refund.
	ErrAlreadyRefunded = errors.New("payment already refunded")

	// ErrProcessor wraps failures from the processor adapter. Safe to retry:
	// no payment is left in an inconsistent persisted state.
	ErrProcessor = errors.New("payment processor error")

	// ErrValidation marks bad input shape, rejected before persistence.
	ErrValidation = errors.New("invalid request")
)
