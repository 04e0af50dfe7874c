// Package notifications records outbound notifications delivered by the
// worker. Kept separate from payment state so delivery failures never
// affect the core.
package notifications

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainhub/backend/internal/models"
)

// Repository persists notification rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a notification row and fills its id and timestamp.
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	const q = `INSERT INTO notifications (client_id, subscription_id, payment_id, kind, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, n.ClientID, n.SubscriptionID, n.PaymentID, n.Kind, n.Body).
		Scan(&n.ID, &n.CreatedAt)
}

// ListByClient returns a client's notifications, newest first.
func (r *Repository) ListByClient(ctx context.Context, clientID int64) ([]models.Notification, error) {
	const q = `SELECT id, client_id, subscription_id, payment_id, kind, body, created_at
		FROM notifications WHERE client_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, clientID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.ClientID, &n.SubscriptionID, &n.PaymentID, &n.Kind, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}
