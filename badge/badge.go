package badge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/models"

	"github.com/google/uuid"
)

type CertificationStore interface {
	CountApprovedCertifications(ctx context.Context, sellerID uuid.UUID) (int, error)
}

type CategoryStore interface {
	GetCategoryBadgeConfig(ctx context.Context, categoryID uuid.UUID) (*models.CategoryBadgeConfig, error)
}

type SubscriptionStore interface {
	HasActiveSubscription(ctx context.Context, sellerID uuid.UUID, at time.Time) (bool, error)
}

// Policy holds business switches for badge eligibility.
type Policy struct {
	// PremiumGrantsBadge lets an active premium subscription qualify a seller
	// on its own, with zero approved certifications.
	PremiumGrantsBadge bool
}

func DefaultPolicy() Policy {
	return Policy{PremiumGrantsBadge: true}
}

type Rule struct {
	certifications CertificationStore
	categories     CategoryStore
	subscriptions  SubscriptionStore
	policy         Policy
	now            func() time.Time
}

func NewRule(certs CertificationStore, categories CategoryStore, subs SubscriptionStore, policy Policy) *Rule {
	return &Rule{
		certifications: certs,
		categories:     categories,
		subscriptions:  subs,
		policy:         policy,
		now:            time.Now,
	}
}

func (r *Rule) WithClock(now func() time.Time) *Rule {
	r.now = now
	return r
}

// IsBadgeEligible reports whether the seller qualifies for the verified badge
// in the given category. A seller qualifies through certifications (at least
// one approved, the category allows the badge and the approved count meets
// its minimum) or, when the policy allows it, through an active premium
// subscription. A category without configuration never allows the badge.
func (r *Rule) IsBadgeEligible(ctx context.Context, sellerID, categoryID uuid.UUID) (bool, error) {
	approved, err := r.certifications.CountApprovedCertifications(ctx, sellerID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeDependency, err, "count approved certifications")
	}

	if approved > 0 {
		cfg, err := r.categories.GetCategoryBadgeConfig(ctx, categoryID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
		case err != nil:
			return false, apperrors.Wrap(apperrors.CodeDependency, err, "load category badge config")
		case cfg.AllowsVerifiedBadge && approved >= cfg.MinCertifications:
			return true, nil
		}
	}

	if !r.policy.PremiumGrantsBadge {
		return false, nil
	}

	premium, err := r.subscriptions.HasActiveSubscription(ctx, sellerID, r.now())
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeDependency, err, fmt.Sprintf("check subscription for seller %s", sellerID))
	}
	return premium, nil
}

// CanSellerReceiveBadge is the eligibility query exposed to the category
// maintainer.
func (r *Rule) CanSellerReceiveBadge(ctx context.Context, sellerID, categoryID uuid.UUID) (bool, error) {
	return r.IsBadgeEligible(ctx, sellerID, categoryID)
}
