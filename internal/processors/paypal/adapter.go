// Package paypal implements the PayPal Orders v2 adapter and webhook
// signature verification via PayPal's verification endpoint.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trainhub/backend/config"
	"github.com/trainhub/backend/internal/models"
	"github.com/trainhub/backend/internal/processors"
)

// Adapter talks to the PayPal REST API using client-credentials OAuth.
type Adapter struct {
	cfg    config.PayPalConfig
	client *http.Client
	logger *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewAdapter creates a PayPal adapter.
func NewAdapter(cfg config.PayPalConfig, logger *zap.Logger) *Adapter {
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
func (a *Adapter) Name() string { return models.PaymentMethodPayPal }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached OAuth access token, refreshing when expired.
func (a *Adapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != "" && time.Now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.BaseURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(a.cfg.ClientID, a.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token status %d", resp.StatusCode)
	}
	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	a.accessToken = tok.AccessToken
	// Refresh a minute early to avoid racing the expiry.
	a.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return a.accessToken, nil
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	CustomID    string `json:"custom_id"`
	Amount      amount `json:"amount"`
}

type createOrderRequest struct {
	Intent             string         `json:"intent"`
	PurchaseUnits      []purchaseUnit `json:"purchase_units"`
	ApplicationContext struct {
		ReturnURL string `json:"return_url"`
		CancelURL string `json:"cancel_url"`
	} `json:"application_context"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
}

// minorToValue renders integer minor units as the "123.45" string PayPal expects.
func minorToValue(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

// CreateOrder opens a PayPal order. The purchase unit's reference and custom
// ids carry the internal payment id so webhooks can be reconciled.
func (a *Adapter) CreateOrder(ctx context.Context, p *models.Payment, returnURL, cancelURL string) (*processors.CreateOrderResult, error) {
	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: strconv.FormatInt(p.ID, 10),
			CustomID:    strconv.FormatInt(p.ID, 10),
			Amount:      amount{CurrencyCode: p.Currency, Value: minorToValue(p.AmountMinor)},
		}},
	}
	body.ApplicationContext.ReturnURL = returnURL
	body.ApplicationContext.CancelURL = cancelURL

	var order orderResponse
	if err := a.post(ctx, "/v2/checkout/orders", body, &order); err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}
	approvalURL := ""
	for _, l := range order.Links {
		if l.Rel == "approve" {
			approvalURL = l.Href
		}
	}
	if order.ID == "" || approvalURL == "" {
		return nil, fmt.Errorf("paypal create order: missing id or approval link")
	}

	a.logger.Info("paypal order created",
		zap.Int64("payment_id", p.ID),
		zap.String("paypal_order_id", order.ID),
	)
	return &processors.CreateOrderResult{OrderID: order.ID, ApprovalURL: approvalURL}, nil
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CaptureOrder captures an approved order and returns the capture id.
func (a *Adapter) CaptureOrder(ctx context.Context, orderID string) (string, error) {
	var capture captureResponse
	if err := a.post(ctx, "/v2/checkout/orders/"+orderID+"/capture", struct{}{}, &capture); err != nil {
		return "", fmt.Errorf("paypal capture: %w", err)
	}
	if capture.Status != "COMPLETED" {
		return "", fmt.Errorf("paypal capture: unexpected status %q", capture.Status)
	}
	for _, pu := range capture.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			if c.ID != "" {
				return c.ID, nil
			}
		}
	}
	return "", fmt.Errorf("paypal capture: no capture id in response")
}

type refundRequest struct {
	Amount *amount `json:"amount,omitempty"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Refund refunds a capture, fully or partially.
func (a *Adapter) Refund(ctx context.Context, captureID string, amountMinor int64, currency string) (string, error) {
	body := refundRequest{}
	if amountMinor > 0 {
		body.Amount = &amount{CurrencyCode: currency, Value: minorToValue(amountMinor)}
	}
	var refund refundResponse
	if err := a.post(ctx, "/v2/payments/captures/"+captureID+"/refund", body, &refund); err != nil {
		return "", fmt.Errorf("paypal refund: %w", err)
	}
	if refund.ID == "" {
		return "", fmt.Errorf("paypal refund: missing refund id")
	}
	return refund.ID, nil
}

func (a *Adapter) post(ctx context.Context, path string, body, out interface{}) error {
	tok, err := a.token(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

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
