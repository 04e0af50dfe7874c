package models

import "time"

// Notification kinds delivered by the worker.
const (
	NotificationKindPaymentConfirmed = "payment_confirmed"
)

// Notification is one outbound notification recorded by the worker after
// it consumed a queue job. Delivery failures never affect payment state.
type Notification struct {
	ID             int64     `json:"id"`
	ClientID       int64     `json:"client_id"`
	SubscriptionID int64     `json:"subscription_id"`
	PaymentID      int64     `json:"payment_id"`
	Kind           string    `json:"kind"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}
