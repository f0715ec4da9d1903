package repository

import (
	"context"
	"database/sql"
	"time"

	"marketplace-svc/models"

	"github.com/google/uuid"
)

func (s *Store) CreateSubscription(ctx context.Context, sub *models.PremiumSubscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO premium_subscriptions (id, seller_id, payment_id, start_date, end_date, active, auto_renew, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, sub.SellerID, sub.PaymentID, sub.StartDate, sub.EndDate, sub.Active, sub.AutoRenew, sub.CreatedAt,
	)
	return translate(err)
}

func (s *Store) FindSubscriptionByPayment(ctx context.Context, paymentID uuid.UUID) (*models.PremiumSubscription, error) {
	var sub models.PremiumSubscription
	err := s.db.QueryRowContext(ctx,
		`SELECT id, seller_id, payment_id, start_date, end_date, active, auto_renew, created_at
		FROM premium_subscriptions WHERE payment_id = $1`,
		paymentID,
	).Scan(&sub.ID, &sub.SellerID, &sub.PaymentID, &sub.StartDate, &sub.EndDate, &sub.Active, &sub.AutoRenew, &sub.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *Store) HasActiveSubscription(ctx context.Context, sellerID uuid.UUID, at time.Time) (bool, error) {
	return s.exists(ctx,
		"SELECT EXISTS(SELECT 1 FROM premium_subscriptions WHERE seller_id = $1 AND active AND end_date > $2)",
		sellerID, at,
	)
}

func (s *Store) GetSellerProfile(ctx context.Context, sellerID uuid.UUID) (*models.SellerProfile, error) {
	var (
		p            models.SellerProfile
		categoryID   uuid.NullUUID
		premiumSince sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT seller_id, display_name, primary_category_id, is_premium, premium_since, has_verified_badge, updated_at
		FROM seller_profiles WHERE seller_id = $1`,
		sellerID,
	).Scan(&p.SellerID, &p.DisplayName, &categoryID, &p.IsPremium, &premiumSince, &p.HasVerifiedBadge, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if categoryID.Valid {
		p.PrimaryCategoryID = &categoryID.UUID
	}
	if premiumSince.Valid {
		p.PremiumSince = &premiumSince.Time
	}
	return &p, nil
}

// SaveSellerProfile writes the flags owned by the confirmation flow. Last
// write wins.
func (s *Store) SaveSellerProfile(ctx context.Context, p *models.SellerProfile) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE seller_profiles
		SET is_premium = $1, premium_since = $2, has_verified_badge = $3, updated_at = $4
		WHERE seller_id = $5`,
		p.IsPremium, p.PremiumSince, p.HasVerifiedBadge, p.UpdatedAt, p.SellerID,
	)
	return err
}

func (s *Store) CountApprovedCertifications(ctx context.Context, sellerID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM certifications WHERE seller_id = $1 AND status = $2",
		sellerID, models.CertificationStatusApproved,
	).Scan(&n)
	return n, err
}

func (s *Store) GetCategoryBadgeConfig(ctx context.Context, categoryID uuid.UUID) (*models.CategoryBadgeConfig, error) {
	var c models.CategoryBadgeConfig
	err := s.db.QueryRowContext(ctx,
		"SELECT id, allows_verified_badge, min_certifications FROM categories WHERE id = $1",
		categoryID,
	).Scan(&c.CategoryID, &c.AllowsVerifiedBadge, &c.MinCertifications)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}
