package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainhub/backend/internal/models"
)

// ConfirmResult reports what a confirmation transaction actually did.
type ConfirmResult struct {
	Payment *models.Payment
	// AlreadyTerminal is true when the payment was in a terminal state and
	// nothing was written (idempotent replay).
	AlreadyTerminal bool
	// SubscriptionActivated is true when this confirmation flipped the
	// subscription from unpaid to active. False on replay, or when the
	// subscription was canceled or activated by an earlier payment.
	SubscriptionActivated bool
}

// Store is the persistence boundary for payments. Implemented by Repository;
// stubbed in tests.
type Store interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	FindNonTerminalBySubscription(ctx context.Context, subscriptionID int64) (*models.Payment, error)
	SetProcessorOrder(ctx context.Context, id int64, orderID, redirectURL string) error
	Confirm(ctx context.Context, id int64, txnID, captureID *string) (*ConfirmResult, error)
	MarkFailed(ctx context.Context, id int64, reason string) error
	MarkRefunded(ctx context.Context, id int64, refundID string) error
	ListByClient(ctx context.Context, clientID int64) ([]models.Payment, error)
}

// Repository persists payments in PostgreSQL. State transitions are guarded
// UPDATEs or row-locked transactions so concurrent confirmations serialize
// on the payment row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const paymentColumns = `id, subscription_id, client_id, amount_minor, currency,
	platform_fee_minor, trainer_payout_minor, method, status,
	processor_order_id, processor_txn_id, processor_capture_id, refund_id, redirect_url,
	failure_reason, paid_at, failed_at, refunded_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.SubscriptionID, &p.ClientID, &p.AmountMinor, &p.Currency,
		&p.PlatformFeeMinor, &p.TrainerPayoutMinor, &p.Method, &p.Status,
		&p.ProcessorOrderID, &p.ProcessorTxnID, &p.ProcessorCaptureID, &p.RefundID, &p.RedirectURL,
		&p.FailureReason, &p.PaidAt, &p.FailedAt, &p.RefundedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new pending payment and fills its id and timestamps.
func (r *Repository) Create(ctx context.Context, p *models.Payment) error {
	const q = `INSERT INTO payments
		(subscription_id, client_id, amount_minor, currency, platform_fee_minor, trainer_payout_minor, method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		p.SubscriptionID, p.ClientID, p.AmountMinor, p.Currency,
		p.PlatformFeeMinor, p.TrainerPayoutMinor, p.Method, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns a payment by internal id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// FindNonTerminalBySubscription returns the pending or processing payment
// for a subscription, or nil if there is none. At most one can exist.
func (r *Repository) FindNonTerminalBySubscription(ctx context.Context, subscriptionID int64) (*models.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
		WHERE subscription_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`
	p, err := scanPayment(r.pool.QueryRow(ctx, q, subscriptionID,
		models.PaymentStatusPending, models.PaymentStatusProcessing))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find non-terminal payment: %w", err)
	}
	return p, nil
}

// SetProcessorOrder records the processor correlation id and redirect URL
// obtained at order creation and moves the payment to processing.
func (r *Repository) SetProcessorOrder(ctx context.Context, id int64, orderID, redirectURL string) error {
	const q = `UPDATE payments
		SET processor_order_id = $2, redirect_url = $3, status = $4, updated_at = NOW()
		WHERE id = $1 AND status IN ($5, $6)`
	tag, err := r.pool.Exec(ctx, q, id, orderID, redirectURL,
		models.PaymentStatusProcessing, models.PaymentStatusPending, models.PaymentStatusProcessing)
	if err != nil {
		return fmt.Errorf("set processor order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// Confirm transitions a payment to completed and cascades the subscription
// to active, atomically. The row lock serializes concurrent confirmations:
// the loser of the race observes the terminal state and reports a replay.
// The subscription update is guarded on unpaid so a canceled subscription is
// never resurrected and activation side effects apply exactly once.
func (r *Repository) Confirm(ctx context.Context, id int64, txnID, captureID *string) (*ConfirmResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	p, err := scanPayment(tx.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}

	if p.IsTerminal() {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit confirm tx: %w", err)
		}
		return &ConfirmResult{Payment: p, AlreadyTerminal: true}, nil
	}

	const upd = `UPDATE payments
		SET status = $2, paid_at = NOW(),
			processor_txn_id = COALESCE($3, processor_txn_id),
			processor_capture_id = COALESCE($4, processor_capture_id),
			updated_at = NOW()
		WHERE id = $1`
	if _, err := tx.Exec(ctx, upd, id, models.PaymentStatusCompleted, txnID, captureID); err != nil {
		return nil, fmt.Errorf("complete payment: %w", err)
	}

	const cascade = `UPDATE subscriptions
		SET status = $2,
			processor_order_id = $3, processor_txn_id = $4, processor_capture_id = $5,
			updated_at = NOW()
		WHERE id = $1 AND status = $6`
	tag, err := tx.Exec(ctx, cascade, p.SubscriptionID, models.SubscriptionStatusActive,
		p.ProcessorOrderID, txnID, captureID, models.SubscriptionStatusUnpaid)
	if err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit confirm tx: %w", err)
	}

	confirmed, err := r.GetByID(ctx, id)
	if err != nil {
		confirmed = p
	}
	return &ConfirmResult{
		Payment:               confirmed,
		SubscriptionActivated: tag.RowsAffected() == 1,
	}, nil
}

// MarkFailed transitions a non-terminal payment to failed with a reason.
// Replays against a terminal payment report ErrAlreadyProcessed and write
// nothing.
func (r *Repository) MarkFailed(ctx context.Context, id int64, reason string) error {
	const q = `UPDATE payments
		SET status = $2, failure_reason = $3, failed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)`
	tag, err := r.pool.Exec(ctx, q, id, models.PaymentStatusFailed, reason,
		models.PaymentStatusPending, models.PaymentStatusProcessing)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyProcessed
	}
	return nil
}

// MarkRefunded transitions a completed payment to refunded. Rejected, not
// silently ignored, from any other state.
func (r *Repository) MarkRefunded(ctx context.Context, id int64, refundID string) error {
	const q = `UPDATE payments
		SET status = $2, refund_id = $3, refunded_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4`
	tag, err := r.pool.Exec(ctx, q, id, models.PaymentStatusRefunded, refundID, models.PaymentStatusCompleted)
	if err != nil {
		return fmt.Errorf("mark payment refunded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		p, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == models.PaymentStatusRefunded {
			return ErrAlreadyRefunded
		}
		return ErrNotRefundable
	}
	return nil
}

// ListByClient returns a client's payment history, newest first.
func (r *Repository) ListByClient(ctx context.Context, clientID int64) ([]models.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE client_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, clientID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	var list []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}
