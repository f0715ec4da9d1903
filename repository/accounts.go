package repository

import (
	"context"

	"github.com/google/uuid"
)

func (s *Store) BuyerExists(ctx context.Context, buyerID uuid.UUID) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", buyerID)
}

func (s *Store) AddressBelongsToUser(ctx context.Context, addressID, userID uuid.UUID) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)", addressID, userID)
}

func (s *Store) PaymentMethodBelongsToUser(ctx context.Context, methodID, userID uuid.UUID) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM payment_methods WHERE id = $1 AND user_id = $2)", methodID, userID)
}

func (s *Store) SellerExists(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM seller_profiles WHERE seller_id = $1)", sellerID)
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
