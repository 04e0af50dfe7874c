// Package subscriptions owns the subscription lifecycle: unpaid -> active
// only via payment confirmation, unpaid/active -> canceled by explicit
// action, and no way out of canceled.
package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainhub/backend/internal/models"
)

var (
	// ErrNotFound is returned for an unknown subscription id.
	ErrNotFound = errors.New("subscription not found")
	// ErrAlreadyCanceled is returned when canceling a canceled subscription.
	ErrAlreadyCanceled = errors.New("subscription already canceled")
)

// Repository persists subscriptions in PostgreSQL. The unpaid -> active
// transition is written only by the payments layer, inside the payment
// confirmation transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a subscriptions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const subscriptionColumns = `id, client_id, trainer_id, package_id, status,
	amount_minor, currency, platform_fee_pct, current_period_end,
	processor_order_id, processor_txn_id, processor_capture_id,
	canceled_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var s models.Subscription
	err := row.Scan(&s.ID, &s.ClientID, &s.TrainerID, &s.PackageID, &s.Status,
		&s.AmountMinor, &s.Currency, &s.PlatformFeePct, &s.CurrentPeriodEnd,
		&s.ProcessorOrderID, &s.ProcessorTxnID, &s.ProcessorCaptureID,
		&s.CanceledAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new unpaid subscription and fills its id and timestamps.
func (r *Repository) Create(ctx context.Context, s *models.Subscription) error {
	const q = `INSERT INTO subscriptions
		(client_id, trainer_id, package_id, status, amount_minor, currency, platform_fee_pct, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		s.ClientID, s.TrainerID, s.PackageID, s.Status,
		s.AmountMinor, s.Currency, s.PlatformFeePct, s.CurrentPeriodEnd,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a subscription by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

// ListByClient returns a client's subscriptions, newest first.
func (r *Repository) ListByClient(ctx context.Context, clientID int64) ([]models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE client_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, clientID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()
	var list []models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Cancel transitions a subscription to canceled and stamps the time.
// Canceling a canceled subscription is rejected; there is no way back out.
func (r *Repository) Cancel(ctx context.Context, id int64) error {
	const q = `UPDATE subscriptions
		SET status = $2, canceled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)`
	tag, err := r.pool.Exec(ctx, q, id, models.SubscriptionStatusCanceled,
		models.SubscriptionStatusUnpaid, models.SubscriptionStatusActive)
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyCanceled
	}
	return nil
}
