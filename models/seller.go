package models

import (
	"time"

	"github.com/google/uuid"
)

type SellerProfile struct {
	SellerID          uuid.UUID  `json:"seller_id"`
	DisplayName       string     `json:"display_name"`
	PrimaryCategoryID *uuid.UUID `json:"primary_category_id,omitempty"`
	IsPremium         bool       `json:"is_premium"`
	PremiumSince      *time.Time `json:"premium_since,omitempty"`
	HasVerifiedBadge  bool       `json:"has_verified_badge"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type PremiumSubscription struct {
	ID        uuid.UUID `json:"id"`
	SellerID  uuid.UUID `json:"seller_id"`
	PaymentID uuid.UUID `json:"payment_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Active    bool      `json:"active"`
	AutoRenew bool      `json:"auto_renew"`
	CreatedAt time.Time `json:"created_at"`
}

// ActiveAt reports whether the subscription grants premium at t.
func (s PremiumSubscription) ActiveAt(t time.Time) bool {
	return s.Active && s.EndDate.After(t)
}

type CertificationStatus string

const (
	CertificationStatusPending  CertificationStatus = "pending"
	CertificationStatusApproved CertificationStatus = "approved"
	CertificationStatusRejected CertificationStatus = "rejected"
)

func (s CertificationStatus) Valid() bool {
	switch s {
	case CertificationStatusPending, CertificationStatusApproved, CertificationStatusRejected:
		return true
	}
	return false
}

type Certification struct {
	ID        uuid.UUID           `json:"id"`
	SellerID  uuid.UUID           `json:"seller_id"`
	Name      string              `json:"name"`
	Status    CertificationStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

// CategoryBadgeConfig is the per-category rule for the verified badge.
type CategoryBadgeConfig struct {
	CategoryID          uuid.UUID `json:"category_id"`
	AllowsVerifiedBadge bool      `json:"allows_verified_badge"`
	MinCertifications   int       `json:"min_certifications"`
}
