// Package paymob implements the Paymob Accept redirect-checkout adapter
// and webhook HMAC verification.
package paymob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/trainhub/backend/config"
	"github.com/trainhub/backend/internal/models"
	"github.com/trainhub/backend/internal/processors"
)

// Adapter talks to the Paymob Accept API. Each order creation runs the
// auth-token / order / payment-key sequence and yields an iframe URL the
// client is redirected to; settlement arrives later via webhook.
type Adapter struct {
	cfg    config.PaymobConfig
	client *http.Client
	logger *zap.Logger
}

// NewAdapter creates a Paymob adapter.
func NewAdapter(cfg config.PaymobConfig, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Name returns the payment method this adapter serves.
func (a *Adapter) Name() string { return models.PaymentMethodPaymob }

type authRequest struct {
	APIKey string `json:"api_key"`
}

type authResponse struct {
	Token string `json:"token"`
}

type orderRequest struct {
	AuthToken       string `json:"auth_token"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	MerchantOrderID string `json:"merchant_order_id"`
	DeliveryNeeded  bool   `json:"delivery_needed"`
}

type orderResponse struct {
	ID int64 `json:"id"`
}

type paymentKeyRequest struct {
	AuthToken     string `json:"auth_token"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	OrderID       int64  `json:"order_id"`
	IntegrationID string `json:"integration_id"`
	Expiration    int    `json:"expiration"`
}

type paymentKeyResponse struct {
	Token string `json:"token"`
}

// CreateOrder registers the payment with Paymob. The merchant order id is
// the internal payment id, which the webhook echoes back for reconciliation.
func (a *Adapter) CreateOrder(ctx context.Context, p *models.Payment, returnURL, cancelURL string) (*processors.CreateOrderResult, error) {
	var auth authResponse
	if err := a.post(ctx, "/api/auth/tokens", authRequest{APIKey: a.cfg.APIKey}, &auth); err != nil {
		return nil, fmt.Errorf("paymob auth: %w", err)
	}

	var order orderResponse
	err := a.post(ctx, "/api/ecommerce/orders", orderRequest{
		AuthToken:       auth.Token,
		AmountCents:     p.AmountMinor,
		Currency:        p.Currency,
		MerchantOrderID: strconv.FormatInt(p.ID, 10),
	}, &order)
	if err != nil {
		return nil, fmt.Errorf("paymob create order: %w", err)
	}

	var key paymentKeyResponse
	err = a.post(ctx, "/api/acceptance/payment_keys", paymentKeyRequest{
		AuthToken:     auth.Token,
		AmountCents:   p.AmountMinor,
		Currency:      p.Currency,
		OrderID:       order.ID,
		IntegrationID: a.cfg.IntegrationID,
		Expiration:    3600,
	}, &key)
	if err != nil {
		return nil, fmt.Errorf("paymob payment key: %w", err)
	}
	if key.Token == "" {
		return nil, fmt.Errorf("paymob payment key: empty token")
	}

	approvalURL := fmt.Sprintf("%s/api/acceptance/iframes/%s?payment_token=%s",
		a.cfg.BaseURL, a.cfg.IframeID, key.Token)

	a.logger.Info("paymob order created",
		zap.Int64("payment_id", p.ID),
		zap.Int64("paymob_order_id", order.ID),
	)
	return &processors.CreateOrderResult{
		OrderID:     strconv.FormatInt(order.ID, 10),
		ApprovalURL: approvalURL,
	}, nil
}

// CaptureOrder is not available: Paymob settles redirect checkouts itself
// and reports the outcome via webhook.
func (a *Adapter) CaptureOrder(ctx context.Context, orderID string) (string, error) {
	return "", processors.ErrUnsupported
}

type refundRequest struct {
	AuthToken     string `json:"auth_token"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
}

type refundResponse struct {
	ID int64 `json:"id"`
}

// Refund refunds a settled Paymob transaction.
func (a *Adapter) Refund(ctx context.Context, transactionID string, amountMinor int64, currency string) (string, error) {
	var auth authResponse
	if err := a.post(ctx, "/api/auth/tokens", authRequest{APIKey: a.cfg.APIKey}, &auth); err != nil {
		return "", fmt.Errorf("paymob auth: %w", err)
	}
	var refund refundResponse
	err := a.post(ctx, "/api/acceptance/void_refund/refund", refundRequest{
		AuthToken:     auth.Token,
		TransactionID: transactionID,
		AmountCents:   amountMinor,
	}, &refund)
	if err != nil {
		return "", fmt.Errorf("paymob refund: %w", err)
	}
	return strconv.FormatInt(refund.ID, 10), nil
}

func (a *Adapter) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
