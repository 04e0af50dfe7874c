package webhooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trainhub/backend/internal/models"
	"github.com/trainhub/backend/internal/payments"
	"github.com/trainhub/backend/internal/processors/paymob"
	"github.com/trainhub/backend/internal/processors/paypal"
)

type svcStub struct {
	payment *models.Payment

	confirmCalled bool
	confirmTxn    *string
	confirmCap    *string
	confirmErr    error

	failCalled bool
	failReason string
	failErr    error
}

func (s *svcStub) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	if s.payment == nil || s.payment.ID != id {
		return nil, payments.ErrPaymentNotFound
	}
	return s.payment, nil
}

func (s *svcStub) Confirm(ctx context.Context, paymentID int64, txnID, captureID *string) error {
	s.confirmCalled = true
	s.confirmTxn = txnID
	s.confirmCap = captureID
	return s.confirmErr
}

func (s *svcStub) Fail(ctx context.Context, paymentID int64, reason string) error {
	s.failCalled = true
	s.failReason = reason
	return s.failErr
}

type paymobVerifierStub struct{ ok bool }

func (v *paymobVerifierStub) Verify(evt *paymob.TransactionEvent, received string) bool {
	return v.ok
}

type paypalVerifierStub struct {
	ok  bool
	err error
}

func (v *paypalVerifierStub) VerifyWebhookSignature(ctx context.Context, h paypal.WebhookHeaders, rawBody []byte) (bool, error) {
	return v.ok, v.err
}

func paymobEvent(paymentID string, success bool) *paymob.TransactionEvent {
	return &paymob.TransactionEvent{
		Type: "TRANSACTION",
		Obj: paymob.TransactionData{
			ID:          987654,
			AmountCents: 29999,
			CreatedAt:   "2026-01-15T10:00:00",
			Currency:    "USD",
			Success:     success,
			Order:       paymob.OrderData{ID: 5001, MerchantOrderID: paymentID},
		},
	}
}

func processingPayment(id int64) *models.Payment {
	return &models.Payment{ID: id, Status: models.PaymentStatusProcessing, Method: models.PaymentMethodPaymob}
}

func TestPaymobRejectsInvalidSignatureWithoutMutation(t *testing.T) {
	svc := &svcStub{payment: processingPayment(42)}
	rec := NewReconciler(svc, &paymobVerifierStub{ok: false}, nil, nil)

	res, err := rec.HandlePaymob(context.Background(), paymobEvent("42", true), "deadbeef")
	require.ErrorIs(t, err, ErrSignatureInvalid)
	require.False(t, res.Success)
	require.False(t, svc.confirmCalled)
	require.False(t, svc.failCalled)
}

func TestPaymobSuccessConfirmsWithTxnID(t *testing.T) {
	svc := &svcStub{payment: processingPayment(42)}
	rec := NewReconciler(svc, &paymobVerifierStub{ok: true}, nil, nil)

	res, err := rec.HandlePaymob(context.Background(), paymobEvent("42", true), "sig")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.PaymentID)
	require.Equal(t, int64(42), *res.PaymentID)
	require.True(t, svc.confirmCalled)
	require.NotNil(t, svc.confirmTxn)
	require.Equal(t, "987654", *svc.confirmTxn)
	require.Nil(t, svc.confirmCap)
}

func TestPaymobFailureMarksPaymentFailed(t *testing.T) {
	svc := &svcStub{payment: processingPayment(42)}
	rec := NewReconciler(svc, &paymobVerifierStub{ok: true}, nil, nil)

	res, err := rec.HandlePaymob(context.Background(), paymobEvent("42", false), "sig")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, svc.failCalled)
	require.Equal(t, "declined by processor", svc.failReason)
	require.False(t, svc.confirmCalled)
}

func TestPaymobReplayOnCompletedAcksWithoutConfirm(t *testing.T) {
	svc := &svcStub{payment: &models.Payment{ID: 42, Status: models.PaymentStatusCompleted}}
	rec := NewReconciler(svc, &paymobVerifierStub{ok: true}, nil, nil)

	res, err := rec.HandlePaymob(context.Background(), paymobEvent("42", true), "sig")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "already processed", res.Message)
	require.False(t, svc.confirmCalled)
}

func TestPaymobFailureReplayOnTerminalAcks(t *testing.T) {
	svc := &svcStub{payment: &models.Payment{ID: 42, Status: models.PaymentStatusFailed}}
	rec := NewReconciler(svc, &paymobVerifierStub{ok: true}, nil, nil)

	res, err := rec.HandlePaymob(context.Background(), paymobEvent("42", false), "sig")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, svc.failCalled)
}

func TestPaymobUnknownPaymentReturnsNotFound(t *testing.T) {
	svc := &svcStub{}
	rec := NewReconciler(svc, &paymobVerifierStub{ok: true}, nil, nil)

	res, err := rec.HandlePaymob(context.Background(), paymobEvent("42", true), "sig")
	require.ErrorIs(t, err, payments.ErrPaymentNotFound)
	require.False(t, res.Success)
}

func TestPaymobRejectsMalformedMerchantOrderID(t *testing.T) {
	svc := &svcStub{}
	rec := NewReconciler(svc, &paymobVerifierStub{ok: true}, nil, nil)

	for _, bad := range []string{"", "abc", "-5", "0"} {
		res, err := rec.HandlePaymob(context.Background(), paymobEvent(bad, true), "sig")
		require.ErrorIs(t, err, payments.ErrValidation)
		require.False(t, res.Success)
	}
	require.False(t, svc.confirmCalled)
}

func TestPaymobIgnoresNonTransactionEvents(t *testing.T) {
	svc := &svcStub{}
	rec := NewReconciler(svc, &paymobVerifierStub{ok: true}, nil, nil)

	evt := paymobEvent("42", true)
	evt.Type = "TOKEN"
	res, err := rec.HandlePaymob(context.Background(), evt, "sig")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "event ignored", res.Message)
	require.False(t, svc.confirmCalled)
}

func TestPayPalVerificationOutageIsTransient(t *testing.T) {
	svc := &svcStub{payment: processingPayment(42)}
	verifyErr := errors.New("verify endpoint unreachable")
	rec := NewReconciler(svc, nil, &paypalVerifierStub{err: verifyErr}, nil)

	res, err := rec.HandlePayPal(context.Background(), paypal.WebhookHeaders{}, []byte(`{}`))
	require.ErrorIs(t, err, verifyErr)
	require.False(t, res.Success)
	require.False(t, svc.confirmCalled)
}

func TestPayPalRejectsInvalidSignature(t *testing.T) {
	svc := &svcStub{payment: processingPayment(42)}
	rec := NewReconciler(svc, nil, &paypalVerifierStub{ok: false}, nil)

	res, err := rec.HandlePayPal(context.Background(), paypal.WebhookHeaders{TransmissionID: "tx-1"}, []byte(`{}`))
	require.ErrorIs(t, err, ErrSignatureInvalid)
	require.False(t, res.Success)
	require.False(t, svc.confirmCalled)
}

func TestPayPalCaptureCompletedConfirmsWithCaptureID(t *testing.T) {
	svc := &svcStub{payment: &models.Payment{ID: 42, Status: models.PaymentStatusProcessing, Method: models.PaymentMethodPayPal}}
	rec := NewReconciler(svc, nil, &paypalVerifierStub{ok: true}, nil)

	body := []byte(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-9","status":"COMPLETED","custom_id":"42"}}`)
	res, err := rec.HandlePayPal(context.Background(), paypal.WebhookHeaders{}, body)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, svc.confirmCalled)
	require.Nil(t, svc.confirmTxn)
	require.NotNil(t, svc.confirmCap)
	require.Equal(t, "CAP-9", *svc.confirmCap)
}

func TestPayPalCaptureDeniedFailsPayment(t *testing.T) {
	svc := &svcStub{payment: &models.Payment{ID: 42, Status: models.PaymentStatusProcessing, Method: models.PaymentMethodPayPal}}
	rec := NewReconciler(svc, nil, &paypalVerifierStub{ok: true}, nil)

	body := []byte(`{"id":"WH-2","event_type":"PAYMENT.CAPTURE.DENIED","resource":{"id":"CAP-9","custom_id":"42","status_details":{"reason":"INSUFFICIENT_FUNDS"}}}`)
	res, err := rec.HandlePayPal(context.Background(), paypal.WebhookHeaders{}, body)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, svc.failCalled)
	require.Equal(t, "INSUFFICIENT_FUNDS", svc.failReason)
}

func TestPayPalIgnoresUnrelatedEventTypes(t *testing.T) {
	svc := &svcStub{}
	rec := NewReconciler(svc, nil, &paypalVerifierStub{ok: true}, nil)

	body := []byte(`{"id":"WH-3","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-1"}}`)
	res, err := rec.HandlePayPal(context.Background(), paypal.WebhookHeaders{}, body)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "event ignored", res.Message)
	require.False(t, svc.confirmCalled)
}

func TestPayPalRejectsMalformedBodyAfterVerification(t *testing.T) {
	svc := &svcStub{}
	rec := NewReconciler(svc, nil, &paypalVerifierStub{ok: true}, nil)

	res, err := rec.HandlePayPal(context.Background(), paypal.WebhookHeaders{}, []byte(`not-json`))
	require.ErrorIs(t, err, payments.ErrValidation)
	require.False(t, res.Success)
}

func TestAckStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, 200},
		{ErrSignatureInvalid, 401},
		{payments.ErrPaymentNotFound, 404},
		{payments.ErrValidation, 400},
		{errors.New("db down"), 500},
	}
	for _, tc := range cases {
		require.Equal(t, tc.code, ackStatus(tc.err))
	}
}
