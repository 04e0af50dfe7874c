package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trainhub/backend/internal/models"
	"github.com/trainhub/backend/internal/processors"
	"github.com/trainhub/backend/pkg/queue"
)

type storeStub struct {
	payment     *models.Payment
	nonTerminal *models.Payment

	createCalled   bool
	created        *models.Payment
	setOrderCalled bool
	setOrderID     string
	setRedirectURL string

	confirmResult *ConfirmResult
	confirmCalled bool
	confirmTxn    *string
	confirmCap    *string

	failCalled bool
	failReason string
	failErr    error

	refundCalled bool
	refundID     string
	refundErr    error
}

func (s *storeStub) Create(ctx context.Context, p *models.Payment) error {
	s.createCalled = true
	p.ID = 42
	s.created = p
	return nil
}

func (s *storeStub) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	if s.payment == nil || s.payment.ID != id {
		return nil, ErrPaymentNotFound
	}
	return s.payment, nil
}

func (s *storeStub) FindNonTerminalBySubscription(ctx context.Context, subscriptionID int64) (*models.Payment, error) {
	return s.nonTerminal, nil
}

func (s *storeStub) SetProcessorOrder(ctx context.Context, id int64, orderID, redirectURL string) error {
	s.setOrderCalled = true
	s.setOrderID = orderID
	s.setRedirectURL = redirectURL
	return nil
}

func (s *storeStub) Confirm(ctx context.Context, id int64, txnID, captureID *string) (*ConfirmResult, error) {
	s.confirmCalled = true
	s.confirmTxn = txnID
	s.confirmCap = captureID
	if s.confirmResult == nil {
		return nil, ErrPaymentNotFound
	}
	return s.confirmResult, nil
}

func (s *storeStub) MarkFailed(ctx context.Context, id int64, reason string) error {
	s.failCalled = true
	s.failReason = reason
	return s.failErr
}

func (s *storeStub) MarkRefunded(ctx context.Context, id int64, refundID string) error {
	s.refundCalled = true
	s.refundID = refundID
	return s.refundErr
}

func (s *storeStub) ListByClient(ctx context.Context, clientID int64) ([]models.Payment, error) {
	return nil, nil
}

type subsStub struct {
	sub *models.Subscription
	err error
}

func (s *subsStub) GetByID(ctx context.Context, id int64) (*models.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sub, nil
}

type adapterStub struct {
	name       string
	createRes  *processors.CreateOrderResult
	createErr  error
	createHits int

	captureID  string
	captureErr error

	refundID   string
	refundErr  error
	refundHits int
}

func (a *adapterStub) Name() string { return a.name }

func (a *adapterStub) CreateOrder(ctx context.Context, p *models.Payment, returnURL, cancelURL string) (*processors.CreateOrderResult, error) {
	a.createHits++
	if a.createErr != nil {
		return nil, a.createErr
	}
	return a.createRes, nil
}

func (a *adapterStub) CaptureOrder(ctx context.Context, orderID string) (string, error) {
	return a.captureID, a.captureErr
}

func (a *adapterStub) Refund(ctx context.Context, captureID string, amountMinor int64, currency string) (string, error) {
	a.refundHits++
	return a.refundID, a.refundErr
}

type registryStub struct{ adapter *adapterStub }

func (r *registryStub) ForMethod(method string) (processors.Adapter, error) {
	if r.adapter == nil || r.adapter.name != method {
		return nil, processors.ErrUnknownMethod
	}
	return r.adapter, nil
}

type notifierStub struct {
	enqueued []queue.PaymentConfirmedPayload
	err      error
}

func (n *notifierStub) EnqueuePaymentConfirmed(ctx context.Context, payload queue.PaymentConfirmedPayload) error {
	n.enqueued = append(n.enqueued, payload)
	return n.err
}

func str(s string) *string { return &s }

func unpaidSub() *models.Subscription {
	return &models.Subscription{
		ID:             7,
		ClientID:       100,
		Status:         models.SubscriptionStatusUnpaid,
		AmountMinor:    29999,
		Currency:       "USD",
		PlatformFeePct: 0.20,
	}
}

func newTestService(store *storeStub, subs *subsStub, adapter *adapterStub, notifier *notifierStub) *Service {
	return NewService(store, subs, &registryStub{adapter: adapter}, notifier,
		"https://app.test/return", "https://app.test/cancel", nil)
}

func TestInitiateCreatesPaymentWithFeeSplit(t *testing.T) {
	store := &storeStub{}
	adapter := &adapterStub{
		name:      models.PaymentMethodPaymob,
		createRes: &processors.CreateOrderResult{OrderID: "555", ApprovalURL: "https://pay.test/555"},
	}
	svc := newTestService(store, &subsStub{sub: unpaidSub()}, adapter, &notifierStub{})

	p, err := svc.Initiate(context.Background(), 100, 7, models.PaymentMethodPaymob)
	require.NoError(t, err)
	require.True(t, store.createCalled)
	require.Equal(t, int64(6000), p.PlatformFeeMinor)
	require.Equal(t, int64(23999), p.TrainerPayoutMinor)
	require.Equal(t, p.AmountMinor, p.PlatformFeeMinor+p.TrainerPayoutMinor)
	require.Equal(t, models.PaymentStatusProcessing, p.Status)
	require.Equal(t, "555", *p.ProcessorOrderID)
	require.Equal(t, "https://pay.test/555", *p.RedirectURL)
	require.True(t, store.setOrderCalled)
}

func TestInitiateReturnsExistingOpenPayment(t *testing.T) {
	existing := &models.Payment{
		ID:               42,
		SubscriptionID:   7,
		Status:           models.PaymentStatusProcessing,
		Method:           models.PaymentMethodPaymob,
		ProcessorOrderID: str("555"),
		RedirectURL:      str("https://pay.test/555"),
	}
	store := &storeStub{nonTerminal: existing}
	adapter := &adapterStub{name: models.PaymentMethodPaymob}
	svc := newTestService(store, &subsStub{sub: unpaidSub()}, adapter, &notifierStub{})

	p, err := svc.Initiate(context.Background(), 100, 7, models.PaymentMethodPaymob)
	require.NoError(t, err)
	require.Equal(t, int64(42), p.ID)
	require.False(t, store.createCalled)
	require.Zero(t, adapter.createHits, "reused payment must not open a second processor order")
}

func TestInitiateRejectsActiveAndCanceledSubscriptions(t *testing.T) {
	sub := unpaidSub()
	sub.Status = models.SubscriptionStatusActive
	svc := newTestService(&storeStub{}, &subsStub{sub: sub}, nil, &notifierStub{})
	_, err := svc.Initiate(context.Background(), 100, 7, models.PaymentMethodPaymob)
	require.ErrorIs(t, err, ErrSubscriptionActive)

	sub = unpaidSub()
	sub.Status = models.SubscriptionStatusCanceled
	svc = newTestService(&storeStub{}, &subsStub{sub: sub}, nil, &notifierStub{})
	_, err = svc.Initiate(context.Background(), 100, 7, models.PaymentMethodPaymob)
	require.ErrorIs(t, err, ErrSubscriptionCanceled)
}

func TestInitiateRejectsForeignSubscription(t *testing.T) {
	svc := newTestService(&storeStub{}, &subsStub{sub: unpaidSub()}, nil, &notifierStub{})
	_, err := svc.Initiate(context.Background(), 999, 7, models.PaymentMethodPaymob)
	require.ErrorIs(t, err, ErrNotSubscriptionOwner)
}

func TestInitiateAdapterFailureIsRetryable(t *testing.T) {
	store := &storeStub{}
	adapter := &adapterStub{name: models.PaymentMethodPaymob, createErr: errors.New("gateway down")}
	svc := newTestService(store, &subsStub{sub: unpaidSub()}, adapter, &notifierStub{})

	_, err := svc.Initiate(context.Background(), 100, 7, models.PaymentMethodPaymob)
	require.ErrorIs(t, err, ErrProcessor)
	require.True(t, store.createCalled, "pending row persists before the processor call")
	require.False(t, store.setOrderCalled)

	// Retry finds the still-pending record and reuses it instead of
	// creating a duplicate.
	store.nonTerminal = store.created
	store.createCalled = false
	adapter.createErr = nil
	adapter.createRes = &processors.CreateOrderResult{OrderID: "556", ApprovalURL: "https://pay.test/556"}

	p, err := svc.Initiate(context.Background(), 100, 7, models.PaymentMethodPaymob)
	require.NoError(t, err)
	require.False(t, store.createCalled)
	require.Equal(t, int64(42), p.ID)
	require.Equal(t, "556", *p.ProcessorOrderID)
}

func TestConfirmEnqueuesNotificationOnActivation(t *testing.T) {
	store := &storeStub{
		confirmResult: &ConfirmResult{
			Payment: &models.Payment{
				ID: 42, SubscriptionID: 7, ClientID: 100,
				AmountMinor: 29999, Currency: "USD",
				Method: models.PaymentMethodPaymob,
				Status: models.PaymentStatusCompleted,
			},
			SubscriptionActivated: true,
		},
	}
	notifier := &notifierStub{}
	svc := newTestService(store, &subsStub{}, nil, notifier)

	require.NoError(t, svc.Confirm(context.Background(), 42, str("987654"), nil))
	require.True(t, store.confirmCalled)
	require.Len(t, notifier.enqueued, 1)
	require.Equal(t, int64(42), notifier.enqueued[0].PaymentID)
}

func TestConfirmReplayIsSilentNoOp(t *testing.T) {
	store := &storeStub{
		confirmResult: &ConfirmResult{
			Payment:         &models.Payment{ID: 42, Status: models.PaymentStatusCompleted},
			AlreadyTerminal: true,
		},
	}
	notifier := &notifierStub{}
	svc := newTestService(store, &subsStub{}, nil, notifier)

	require.NoError(t, svc.Confirm(context.Background(), 42, str("987654"), nil))
	require.Empty(t, notifier.enqueued, "replay must not duplicate notification side effects")
}

func TestConfirmWithoutActivationDoesNotNotify(t *testing.T) {
	// Subscription already active or canceled: money landed, but there is
	// no new activation to announce.
	store := &storeStub{
		confirmResult: &ConfirmResult{
			Payment:               &models.Payment{ID: 42, SubscriptionID: 7, Status: models.PaymentStatusCompleted},
			SubscriptionActivated: false,
		},
	}
	notifier := &notifierStub{}
	svc := newTestService(store, &subsStub{}, nil, notifier)

	require.NoError(t, svc.Confirm(context.Background(), 42, str("987654"), nil))
	require.Empty(t, notifier.enqueued)
}

func TestConfirmEnqueueFailureDoesNotFailConfirmation(t *testing.T) {
	store := &storeStub{
		confirmResult: &ConfirmResult{
			Payment:               &models.Payment{ID: 42, SubscriptionID: 7, Status: models.PaymentStatusCompleted},
			SubscriptionActivated: true,
		},
	}
	notifier := &notifierStub{err: errors.New("redis down")}
	svc := newTestService(store, &subsStub{}, nil, notifier)

	require.NoError(t, svc.Confirm(context.Background(), 42, nil, str("CAP-1")))
}

func TestFailTreatsTerminalReplayAsNoOp(t *testing.T) {
	store := &storeStub{failErr: ErrAlreadyProcessed}
	svc := newTestService(store, &subsStub{}, nil, &notifierStub{})
	require.NoError(t, svc.Fail(context.Background(), 42, "declined"))
}

func TestCaptureAndConfirmAlreadyCompletedIsIdempotent(t *testing.T) {
	p := &models.Payment{ID: 42, ClientID: 100, Status: models.PaymentStatusCompleted, Method: models.PaymentMethodPayPal}
	store := &storeStub{payment: p}
	svc := newTestService(store, &subsStub{}, &adapterStub{name: models.PaymentMethodPayPal}, &notifierStub{})

	got, err := svc.CaptureAndConfirm(context.Background(), 100, 42)
	require.NoError(t, err)
	require.Equal(t, p, got)
	require.False(t, store.confirmCalled)
}

func TestCaptureAndConfirmPassesCaptureID(t *testing.T) {
	p := &models.Payment{
		ID: 42, ClientID: 100,
		Status:           models.PaymentStatusProcessing,
		Method:           models.PaymentMethodPayPal,
		ProcessorOrderID: str("ORDER-1"),
	}
	store := &storeStub{
		payment: p,
		confirmResult: &ConfirmResult{
			Payment:               p,
			SubscriptionActivated: true,
		},
	}
	adapter := &adapterStub{name: models.PaymentMethodPayPal, captureID: "CAP-9"}
	svc := newTestService(store, &subsStub{}, adapter, &notifierStub{})

	_, err := svc.CaptureAndConfirm(context.Background(), 100, 42)
	require.NoError(t, err)
	require.True(t, store.confirmCalled)
	require.NotNil(t, store.confirmCap)
	require.Equal(t, "CAP-9", *store.confirmCap)
}

func TestCaptureRejectsRedirectOnlyProcessor(t *testing.T) {
	p := &models.Payment{
		ID: 42, ClientID: 100,
		Status:           models.PaymentStatusProcessing,
		Method:           models.PaymentMethodPaymob,
		ProcessorOrderID: str("555"),
	}
	adapter := &adapterStub{name: models.PaymentMethodPaymob, captureErr: processors.ErrUnsupported}
	svc := newTestService(&storeStub{payment: p}, &subsStub{}, adapter, &notifierStub{})

	_, err := svc.CaptureAndConfirm(context.Background(), 100, 42)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRefundOnlyFromCompleted(t *testing.T) {
	p := &models.Payment{ID: 42, Status: models.PaymentStatusProcessing, Method: models.PaymentMethodPayPal}
	svc := newTestService(&storeStub{payment: p}, &subsStub{}, &adapterStub{name: models.PaymentMethodPayPal}, &notifierStub{})
	_, err := svc.Refund(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotRefundable)

	p.Status = models.PaymentStatusRefunded
	_, err = svc.Refund(context.Background(), 42)
	require.ErrorIs(t, err, ErrAlreadyRefunded)
}

func TestRefundCallsProcessorAndRecordsTransition(t *testing.T) {
	p := &models.Payment{
		ID: 42, Status: models.PaymentStatusCompleted,
		Method:             models.PaymentMethodPayPal,
		AmountMinor:        29999,
		Currency:           "USD",
		ProcessorCaptureID: str("CAP-9"),
	}
	store := &storeStub{payment: p}
	adapter := &adapterStub{name: models.PaymentMethodPayPal, refundID: "REF-1"}
	svc := newTestService(store, &subsStub{}, adapter, &notifierStub{})

	_, err := svc.Refund(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, 1, adapter.refundHits)
	require.True(t, store.refundCalled)
	require.Equal(t, "REF-1", store.refundID)
}
