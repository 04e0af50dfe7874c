package models

import "time"

// PaymentMethod is the processor a payment is routed through.
const (
	PaymentMethodPaymob = "paymob"
	PaymentMethodPayPal = "paypal"
)

// PaymentStatus values. Pending and Processing are non-terminal;
// Completed, Failed and Refunded are terminal (Completed may still
// move to Refunded).
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// Payment represents one attempt to collect money for a subscription.
// Amounts are integer minor units (cents). Rows are never deleted.
type Payment struct {
	ID                 int64      `json:"id"`
	SubscriptionID     int64      `json:"subscription_id"`
	ClientID           int64      `json:"client_id"`
	AmountMinor        int64      `json:"amount_minor"`
	Currency           string     `json:"currency"`
	PlatformFeeMinor   int64      `json:"platform_fee_minor"`
	TrainerPayoutMinor int64      `json:"trainer_payout_minor"`
	Method             string     `json:"method"`
	Status             string     `json:"status"`
	ProcessorOrderID   *string    `json:"processor_order_id,omitempty"`
	ProcessorTxnID     *string    `json:"processor_txn_id,omitempty"`
	ProcessorCaptureID *string    `json:"processor_capture_id,omitempty"`
	RefundID           *string    `json:"refund_id,omitempty"`
	RedirectURL        *string    `json:"redirect_url,omitempty"`
	FailureReason      *string    `json:"failure_reason,omitempty"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	FailedAt           *time.Time `json:"failed_at,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the payment can no longer change status
// (other than the explicit Completed -> Refunded transition).
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}
