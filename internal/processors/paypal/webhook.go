package paypal

import (
	"context"
	"encoding/json"
	"fmt"
)

// Webhook event types acted on during reconciliation. Other event types are
// acknowledged and ignored.
const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
)

// WebhookEvent is the PayPal webhook envelope, decoded strictly at the
// boundary.
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  WebhookResource `json:"resource"`
}

// WebhookResource carries the capture fields used for reconciliation.
// CustomID echoes back the internal payment id set at order creation.
type WebhookResource struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	CustomID     string `json:"custom_id"`
	StatusDetail struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
}

// WebhookHeaders are the transmission headers PayPal sends with each
// delivery, required for signature verification.
type WebhookHeaders struct {
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
}

type verifyRequest struct {
	TransmissionID   string          `json:"transmission_id"`
	TransmissionTime string          `json:"transmission_time"`
	TransmissionSig  string          `json:"transmission_sig"`
	CertURL          string          `json:"cert_url"`
	AuthAlgo         string          `json:"auth_algo"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhookSignature asks PayPal whether the delivery is authentic.
// The raw body must be the exact bytes received, not a re-marshalled copy.
func (a *Adapter) VerifyWebhookSignature(ctx context.Context, h WebhookHeaders, rawBody []byte) (bool, error) {
	if a.cfg.WebhookID == "" {
		return false, fmt.Errorf("paypal verify: webhook id not configured")
	}
	req := verifyRequest{
		TransmissionID:   h.TransmissionID,
		TransmissionTime: h.TransmissionTime,
		TransmissionSig:  h.TransmissionSig,
		CertURL:          h.CertURL,
		AuthAlgo:         h.AuthAlgo,
		WebhookID:        a.cfg.WebhookID,
		WebhookEvent:     json.RawMessage(rawBody),
	}
	var resp verifyResponse
	if err := a.post(ctx, "/v1/notifications/verify-webhook-signature", req, &resp); err != nil {
		return false, fmt.Errorf("paypal verify: %w", err)
	}
	return resp.VerificationStatus == "SUCCESS", nil
}
