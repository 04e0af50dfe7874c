package paymob

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
)

// TransactionEvent is the webhook payload Paymob posts after a checkout
// attempt, decoded strictly at the boundary. The HMAC arrives out of band
// as the "hmac" query parameter.
type TransactionEvent struct {
	Type string          `json:"type"`
	Obj  TransactionData `json:"obj"`
}

// TransactionData carries the transaction fields used for verification
// and reconciliation.
type TransactionData struct {
	ID          int64      `json:"id"`
	AmountCents int64      `json:"amount_cents"`
	CreatedAt   string     `json:"created_at"`
	Currency    string     `json:"currency"`
	Success     bool       `json:"success"`
	Order       OrderData  `json:"order"`
	Source      SourceData `json:"source_data"`
}

// OrderData identifies the Paymob order; MerchantOrderID echoes back the
// internal payment id set at order creation.
type OrderData struct {
	ID              int64  `json:"id"`
	MerchantOrderID string `json:"merchant_order_id"`
}

// SourceData describes the payment instrument (kept for audit logging).
type SourceData struct {
	Type    string `json:"type"`
	SubType string `json:"sub_type"`
}

// Verifier checks webhook authenticity with the shared HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify recomputes the HMAC-SHA512 over the transaction fields and compares
// it to the received value in constant time. The comparison is
// case-insensitive because Paymob sends lowercase hex but some proxies
// upcase it.
//
// The concatenation order below is v1 of Paymob's HMAC contract. It must
// never be reordered: a silent change would invalidate every future
// verification.
func (v *Verifier) Verify(evt *TransactionEvent, received string) bool {
	if received == "" || len(v.secret) == 0 {
		return false
	}
	mac := hmac.New(sha512.New, v.secret)
	io.WriteString(mac, strconv.FormatInt(evt.Obj.AmountCents, 10))
	io.WriteString(mac, evt.Obj.CreatedAt)
	io.WriteString(mac, evt.Obj.Currency)
	io.WriteString(mac, strconv.FormatInt(evt.Obj.ID, 10))
	io.WriteString(mac, evt.Obj.Order.MerchantOrderID)
	io.WriteString(mac, strconv.FormatBool(evt.Obj.Success))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(received)), []byte(expected))
}
