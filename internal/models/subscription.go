package models

import "time"

// Subscription status values. Active is reachable only through a payment
// confirmation; Canceled is final.
const (
	SubscriptionStatusUnpaid   = "unpaid"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription represents a client's access grant to a trainer's package.
// PlatformFeePct is snapshotted at creation so later fee-schedule changes
// do not retroactively alter this subscription.
type Subscription struct {
	ID                 int64      `json:"id"`
	ClientID           int64      `json:"client_id"`
	TrainerID          int64      `json:"trainer_id"`
	PackageID          int64      `json:"package_id"`
	Status             string     `json:"status"`
	AmountMinor        int64      `json:"amount_minor"`
	Currency           string     `json:"currency"`
	PlatformFeePct     float64    `json:"platform_fee_pct"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	ProcessorOrderID   *string    `json:"processor_order_id,omitempty"`
	ProcessorTxnID     *string    `json:"processor_txn_id,omitempty"`
	ProcessorCaptureID *string    `json:"processor_capture_id,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
