// Package processors defines the narrow interface wrapping a payment
// processor's API, plus a registry keyed by payment method.
package processors

import (
	"context"
	"errors"

	"github.com/trainhub/backend/internal/models"
)

var (
	// ErrUnknownMethod is returned when no adapter is registered for a method.
	ErrUnknownMethod = errors.New("unknown payment method")
	// ErrUnsupported is returned for operations a processor does not offer
	// (e.g. server-side capture on a redirect-only checkout).
	ErrUnsupported = errors.New("operation not supported by processor")
)

// CreateOrderResult is the processor's answer to an order creation:
// its correlation id and the URL the client is redirected to for approval.
type CreateOrderResult struct {
	OrderID     string
	ApprovalURL string
}

// Adapter wraps one payment processor. Failures surface as explicit
// errors, never a silent empty result.
type Adapter interface {
	Name() string

	// CreateOrder opens an order with the processor for the payment and
	// returns the correlation id plus the approval/redirect URL.
	CreateOrder(ctx context.Context, p *models.Payment, returnURL, cancelURL string) (*CreateOrderResult, error)

	// CaptureOrder captures an approved order and returns the capture id.
	CaptureOrder(ctx context.Context, orderID string) (string, error)

	// Refund refunds a captured amount and returns the processor refund id.
	Refund(ctx context.Context, captureID string, amountMinor int64, currency string) (string, error)
}

// Registry resolves adapters by payment method.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given adapters, keyed by Name().
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// ForMethod returns the adapter for a payment method.
func (r *Registry) ForMethod(method string) (Adapter, error) {
	a, ok := r.adapters[method]
	if !ok {
		return nil, ErrUnknownMethod
	}
	return a, nil
}
