package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/memstore"
	"marketplace-svc/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingMirror struct{ calls int }

func (m *failingMirror) UpdateOrderPaymentStatus(context.Context, uuid.UUID, models.PaymentStatus, time.Time) error {
	m.calls++
	return errors.New("orders table locked")
}

// racingStore lets a concurrent confirmation win between our read and write.
type racingStore struct {
	*memstore.Store
	winner models.PaymentStatus
}

func (s *racingStore) TransitionPayment(ctx context.Context, t models.PaymentTransition) (bool, error) {
	_, _ = s.Store.TransitionPayment(ctx, models.PaymentTransition{
		PaymentID: t.PaymentID, From: t.From, To: s.winner, At: t.At,
	})
	return false, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, store PaymentStore, mirror OrderMirror) *Ledger {
	return New(store, mirror, "external", zaptest.NewLogger(t)).WithClock(func() time.Time { return fixedNow })
}

func seedOrderPayment(t *testing.T, store *memstore.Store, l *Ledger) (*models.Order, *models.Payment) {
	t.Helper()
	order := &models.Order{ID: uuid.New(), SellerID: uuid.New(), Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusPending}
	require.NoError(t, store.CreateOrders(context.Background(), []*models.Order{order}))

	payment, err := l.CreatePayment(context.Background(), CreatePaymentInput{
		SellerID: order.SellerID,
		OrderID:  &order.ID,
		Amount:   decimal.NewFromInt(50),
		Currency: "USD",
		Method:   "card",
	})
	require.NoError(t, err)
	return order, payment
}

func TestCreatePayment_StartsPending(t *testing.T) {
	store := memstore.New()
	l := newTestLedger(t, store, store)
	sellerID := uuid.New()

	payment, err := l.CreatePayment(context.Background(), CreatePaymentInput{
		SellerID:    sellerID,
		Amount:      decimal.RequireFromString("99.00"),
		Currency:    "USD",
		Method:      "premium_upgrade",
		Description: "premium",
	})

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Nil(t, payment.OrderID)
	assert.Nil(t, payment.ExternalTransactionID)
	assert.Equal(t, "external", payment.Provider)
	assert.Equal(t, fixedNow, payment.CreatedAt)

	stored, err := store.GetPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, sellerID, stored.SellerID)
}

func TestCreatePayment_Validation(t *testing.T) {
	l := newTestLedger(t, memstore.New(), memstore.New())

	_, err := l.CreatePayment(context.Background(), CreatePaymentInput{Amount: decimal.NewFromInt(1), Currency: "USD"})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	_, err = l.CreatePayment(context.Background(), CreatePaymentInput{SellerID: uuid.New(), Amount: decimal.NewFromInt(-1), Currency: "USD"})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	_, err = l.CreatePayment(context.Background(), CreatePaymentInput{SellerID: uuid.New(), Amount: decimal.NewFromInt(1)})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestUpdateStatus_CompletesAndMirrorsOrder(t *testing.T) {
	store := memstore.New()
	l := newTestLedger(t, store, store)
	order, payment := seedOrderPayment(t, store, l)

	txn := "txn_123"
	updated, err := l.UpdateStatus(context.Background(), payment.ID, models.PaymentStatusCompleted, &txn)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, fixedNow, *updated.CompletedAt)
	assert.Equal(t, "txn_123", *updated.ExternalTransactionID)

	storedOrder, err := store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, storedOrder.PaymentStatus)
	assert.Equal(t, fixedNow, storedOrder.UpdatedAt)
}

func TestUpdateStatus_CompletedIsIdempotent(t *testing.T) {
	store := memstore.New()
	l := newTestLedger(t, store, store)
	_, payment := seedOrderPayment(t, store, l)

	txn := "txn_1"
	_, err := l.UpdateStatus(context.Background(), payment.ID, models.PaymentStatusCompleted, &txn)
	require.NoError(t, err)

	other := "txn_2"
	again, err := l.UpdateStatus(context.Background(), payment.ID, models.PaymentStatusCompleted, &other)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, again.Status)
	assert.Equal(t, "txn_1", *again.ExternalTransactionID)
}

func TestUpdateStatus_RejectsBackwardTransitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []models.PaymentStatus
		final models.PaymentStatus
	}{
		{"completed to pending", []models.PaymentStatus{models.PaymentStatusCompleted}, models.PaymentStatusPending},
		{"completed to failed", []models.PaymentStatus{models.PaymentStatusCompleted}, models.PaymentStatusFailed},
		{"failed to completed", []models.PaymentStatus{models.PaymentStatusFailed}, models.PaymentStatusCompleted},
		{"pending to refunded", nil, models.PaymentStatusRefunded},
		{"refunded to completed", []models.PaymentStatus{models.PaymentStatusCompleted, models.PaymentStatusRefunded}, models.PaymentStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			l := newTestLedger(t, store, store)
			_, payment := seedOrderPayment(t, store, l)
			for _, step := range tt.path {
				_, err := l.UpdateStatus(context.Background(), payment.ID, step, nil)
				require.NoError(t, err)
			}

			_, err := l.UpdateStatus(context.Background(), payment.ID, tt.final, nil)
			assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		})
	}
}

func TestUpdateStatus_RefundAfterCompletion(t *testing.T) {
	store := memstore.New()
	l := newTestLedger(t, store, store)
	_, payment := seedOrderPayment(t, store, l)

	_, err := l.UpdateStatus(context.Background(), payment.ID, models.PaymentStatusCompleted, nil)
	require.NoError(t, err)
	refunded, err := l.UpdateStatus(context.Background(), payment.ID, models.PaymentStatusRefunded, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	store := memstore.New()
	l := newTestLedger(t, store, store)

	_, err := l.UpdateStatus(context.Background(), uuid.New(), models.PaymentStatusCompleted, nil)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	store := memstore.New()
	l := newTestLedger(t, store, store)

	_, err := l.UpdateStatus(context.Background(), uuid.New(), models.PaymentStatus("success"), nil)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestUpdateStatus_MirrorFailureDoesNotRevert(t *testing.T) {
	store := memstore.New()
	mirror := &failingMirror{}
	l := newTestLedger(t, store, mirror)
	_, payment := seedOrderPayment(t, store, l)

	updated, err := l.UpdateStatus(context.Background(), payment.ID, models.PaymentStatusCompleted, nil)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, updated.Status)
	assert.Equal(t, 1, mirror.calls)

	stored, err := store.GetPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Status)
}

func TestUpdateStatus_LostRaceToSameCompletion(t *testing.T) {
	store := &racingStore{Store: memstore.New(), winner: models.PaymentStatusCompleted}
	l := newTestLedger(t, store, store)
	_, payment := seedOrderPayment(t, store.Store, l)

	updated, err := l.UpdateStatus(context.Background(), payment.ID, models.PaymentStatusCompleted, nil)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, updated.Status)
}

func TestUpdateStatus_LostRaceToFailure(t *testing.T) {
	store := &racingStore{Store: memstore.New(), winner: models.PaymentStatusFailed}
	l := newTestLedger(t, store, store)
	_, payment := seedOrderPayment(t, store.Store, l)

	_, err := l.UpdateStatus(context.Background(), payment.ID, models.PaymentStatusCompleted, nil)

	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestGetPending(t *testing.T) {
	store := memstore.New()
	l := newTestLedger(t, store, store)
	_, first := seedOrderPayment(t, store, l)
	_, second := seedOrderPayment(t, store, l)

	_, err := l.UpdateStatus(context.Background(), first.ID, models.PaymentStatusCompleted, nil)
	require.NoError(t, err)

	pending, err := l.GetPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestComplete_ReportsWhetherApplied(t *testing.T) {
	store := memstore.New()
	l := newTestLedger(t, store, store)
	_, payment := seedOrderPayment(t, store, l)

	first, applied, err := l.Complete(context.Background(), payment.ID, nil)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.PaymentStatusCompleted, first.Status)

	again, applied, err := l.Complete(context.Background(), payment.ID, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.PaymentStatusCompleted, again.Status)
}

func TestComplete_LostRaceIsNotApplied(t *testing.T) {
	store := &racingStore{Store: memstore.New(), winner: models.PaymentStatusCompleted}
	l := newTestLedger(t, store, store)
	_, payment := seedOrderPayment(t, store.Store, l)

	updated, applied, err := l.Complete(context.Background(), payment.ID, nil)

	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.PaymentStatusCompleted, updated.Status)
}
