// Package worker consumes notification jobs enqueued by the payment core.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trainhub/backend/internal/models"
	"github.com/trainhub/backend/internal/notifications"
	"github.com/trainhub/backend/pkg/queue"
)

// NotificationProcessor turns payment-confirmed facts into recorded
// notifications. It runs outside the request path; a crash or backlog here
// never blocks a webhook acknowledgement.
type NotificationProcessor struct {
	repo   *notifications.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewNotificationProcessor creates a notification processor.
func NewNotificationProcessor(repo *notifications.Repository, q *queue.Queue, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{repo: repo, queue: q, logger: logger}
}

// Process executes one job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypePaymentConfirmed {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.PaymentConfirmedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	n := &models.Notification{
		ClientID:       payload.ClientID,
		SubscriptionID: payload.SubscriptionID,
		PaymentID:      payload.PaymentID,
		Kind:           models.NotificationKindPaymentConfirmed,
		Body: fmt.Sprintf("Your subscription %d is now active (%d.%02d %s via %s).",
			payload.SubscriptionID, payload.AmountMinor/100, payload.AmountMinor%100,
			payload.Currency, payload.Method),
	}
	if err := p.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	p.logger.Info("payment confirmation notification recorded",
		zap.Int64("payment_id", payload.PaymentID),
		zap.Int64("client_id", payload.ClientID),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.Error(err), zap.String("job_id", job.ID))
			if err := p.queue.Retry(ctx, job); err != nil {
				p.logger.Error("retry failed", zap.Error(err), zap.String("job_id", job.ID))
			}
		}
	}
}
