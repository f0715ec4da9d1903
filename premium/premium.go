package premium

import (
	"context"
	"errors"

	"marketplace-svc/apperrors"
	"marketplace-svc/ledger"
	"marketplace-svc/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Method is the payment method recorded on premium upgrade payments.
const Method = "premium_upgrade"

type ProfileStore interface {
	GetSellerProfile(ctx context.Context, sellerID uuid.UUID) (*models.SellerProfile, error)
}

type PaymentCreator interface {
	CreatePayment(ctx context.Context, in ledger.CreatePaymentInput) (*models.Payment, error)
}

// Service opens the pending payment for a seller's premium upgrade. The
// subscription itself is created when that payment is confirmed.
type Service struct {
	profiles ProfileStore
	payments PaymentCreator
	price    decimal.Decimal
	currency string
	logger   *zap.Logger
}

func NewService(profiles ProfileStore, payments PaymentCreator, price decimal.Decimal, currency string, logger *zap.Logger) *Service {
	return &Service{profiles: profiles, payments: payments, price: price, currency: currency, logger: logger}
}

func (s *Service) Purchase(ctx context.Context, sellerID uuid.UUID) (*models.Payment, error) {
	if _, err := s.profiles.GetSellerProfile(ctx, sellerID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "seller not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "load seller profile")
	}

	payment, err := s.payments.CreatePayment(ctx, ledger.CreatePaymentInput{
		SellerID:    sellerID,
		Amount:      s.price,
		Currency:    s.currency,
		Method:      Method,
		Description: "Premium seller subscription",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Premium upgrade requested",
		zap.String("seller_id", sellerID.String()),
		zap.String("payment_id", payment.ID.String()),
	)
	return payment, nil
}
