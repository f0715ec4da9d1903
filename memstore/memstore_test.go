package memstore

import (
	"context"
	"testing"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func pendingPayment(orderID *uuid.UUID, createdAt time.Time) *models.Payment {
	return &models.Payment{
		ID:        uuid.New(),
		SellerID:  uuid.New(),
		OrderID:   orderID,
		Amount:    decimal.NewFromInt(10),
		Currency:  "USD",
		Status:    models.PaymentStatusPending,
		CreatedAt: createdAt,
	}
}

func TestTransitionPayment_CompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := pendingPayment(nil, t0)
	require.NoError(t, s.CreatePayment(ctx, p))

	txn := "txn-1"
	applied, err := s.TransitionPayment(ctx, models.PaymentTransition{
		PaymentID: p.ID, From: models.PaymentStatusPending, To: models.PaymentStatusCompleted,
		ExternalTransactionID: &txn, At: t0.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.TransitionPayment(ctx, models.PaymentTransition{
		PaymentID: p.ID, From: models.PaymentStatusPending, To: models.PaymentStatusFailed, At: t0,
	})
	require.NoError(t, err)
	assert.False(t, applied, "stale from-status")

	stored, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, t0.Add(time.Minute), *stored.CompletedAt)
	assert.Equal(t, "txn-1", *stored.ExternalTransactionID)
}

func TestCreatePayment_OnePendingPerOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	orderID := uuid.New()

	first := pendingPayment(&orderID, t0)
	require.NoError(t, s.CreatePayment(ctx, first))
	assert.ErrorIs(t, s.CreatePayment(ctx, pendingPayment(&orderID, t0)), apperrors.ErrDuplicate)

	_, err := s.TransitionPayment(ctx, models.PaymentTransition{
		PaymentID: first.ID, From: models.PaymentStatusPending, To: models.PaymentStatusFailed, At: t0,
	})
	require.NoError(t, err)
	assert.NoError(t, s.CreatePayment(ctx, pendingPayment(&orderID, t0)), "retry after failure")
}

func TestCreateSubscription_OnePerPayment(t *testing.T) {
	s := New()
	ctx := context.Background()
	paymentID := uuid.New()
	sub := &models.PremiumSubscription{ID: uuid.New(), SellerID: uuid.New(), PaymentID: paymentID, StartDate: t0, EndDate: t0.AddDate(1, 0, 0), Active: true}

	require.NoError(t, s.CreateSubscription(ctx, sub))
	dup := *sub
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.CreateSubscription(ctx, &dup), apperrors.ErrDuplicate)

	found, err := s.FindSubscriptionByPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, found.ID)

	active, err := s.HasActiveSubscription(ctx, sub.SellerID, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, active)

	active, err = s.HasActiveSubscription(ctx, sub.SellerID, t0.AddDate(2, 0, 0))
	require.NoError(t, err)
	assert.False(t, active)
}

func TestListOrdersWithoutPayment(t *testing.T) {
	s := New()
	ctx := context.Background()
	paid := &models.Order{ID: uuid.New(), Status: models.OrderStatusPending, CreatedAt: t0}
	unpaid := &models.Order{ID: uuid.New(), Status: models.OrderStatusPending, CreatedAt: t0.Add(time.Second)}
	cancelled := &models.Order{ID: uuid.New(), Status: models.OrderStatusCancelled, CreatedAt: t0}
	require.NoError(t, s.CreateOrders(ctx, []*models.Order{paid, unpaid, cancelled}))
	require.NoError(t, s.CreatePayment(ctx, pendingPayment(&paid.ID, t0)))

	out, err := s.ListOrdersWithoutPayment(ctx, 10)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, unpaid.ID, out[0].ID)
}

func TestListPendingPayments_CreatedBefore(t *testing.T) {
	s := New()
	ctx := context.Background()
	old := pendingPayment(nil, t0)
	fresh := pendingPayment(nil, t0.Add(time.Hour))
	require.NoError(t, s.CreatePayment(ctx, fresh))
	require.NoError(t, s.CreatePayment(ctx, old))

	out, err := s.ListPendingPayments(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, old.ID, out[0].ID)
}

func TestGetOrder_ReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := &models.Order{ID: uuid.New(), Status: models.OrderStatusPending, Items: []models.OrderItem{{ProductName: "a"}}}
	require.NoError(t, s.CreateOrders(ctx, []*models.Order{o}))

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	got.Items[0].ProductName = "mutated"
	got.Status = models.OrderStatusShipped

	again, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Items[0].ProductName)
	assert.Equal(t, models.OrderStatusPending, again.Status)

	_, err = s.GetOrder(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartLines_SortedAndCleared(t *testing.T) {
	s := New()
	ctx := context.Background()
	cartID := uuid.New()
	later := models.CartLine{ID: uuid.New(), CartID: cartID, AddedAt: t0.Add(time.Minute)}
	earlier := models.CartLine{ID: uuid.New(), CartID: cartID, AddedAt: t0}
	s.PutCartLine(later)
	s.PutCartLine(earlier)
	s.PutCartLine(models.CartLine{ID: uuid.New(), CartID: uuid.New(), AddedAt: t0})

	lines, err := s.GetCartLines(ctx, cartID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, earlier.ID, lines[0].ID)

	require.NoError(t, s.ClearLine(ctx, earlier.ID))
	lines, err = s.GetCartLines(ctx, cartID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}
