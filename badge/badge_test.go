package badge

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/memstore"
	"marketplace-svc/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

type brokenCerts struct{}

func (brokenCerts) CountApprovedCertifications(context.Context, uuid.UUID) (int, error) {
	return 0, errors.New("timeout")
}

func addCerts(store *memstore.Store, sellerID uuid.UUID, statuses ...models.CertificationStatus) {
	for _, s := range statuses {
		store.PutCertification(models.Certification{ID: uuid.New(), SellerID: sellerID, Name: "cert", Status: s})
	}
}

func activateSubscription(t *testing.T, store *memstore.Store, sellerID uuid.UUID) {
	require.NoError(t, store.CreateSubscription(context.Background(), &models.PremiumSubscription{
		ID: uuid.New(), SellerID: sellerID, PaymentID: uuid.New(),
		StartDate: now.Add(-time.Hour), EndDate: now.AddDate(1, 0, 0), Active: true,
	}))
}

func TestIsBadgeEligible(t *testing.T) {
	categoryID := uuid.New()

	tests := []struct {
		name     string
		category *models.CategoryBadgeConfig
		certs    []models.CertificationStatus
		premium  bool
		policy   Policy
		want     bool
	}{
		{
			name:     "approved certs meet minimum",
			category: &models.CategoryBadgeConfig{CategoryID: categoryID, AllowsVerifiedBadge: true, MinCertifications: 2},
			certs:    []models.CertificationStatus{models.CertificationStatusApproved, models.CertificationStatusApproved},
			policy:   DefaultPolicy(),
			want:     true,
		},
		{
			name:     "pending and rejected certs do not count",
			category: &models.CategoryBadgeConfig{CategoryID: categoryID, AllowsVerifiedBadge: true, MinCertifications: 2},
			certs:    []models.CertificationStatus{models.CertificationStatusApproved, models.CertificationStatusPending, models.CertificationStatusRejected},
			policy:   DefaultPolicy(),
			want:     false,
		},
		{
			name:     "category disallows badge",
			category: &models.CategoryBadgeConfig{CategoryID: categoryID, AllowsVerifiedBadge: false, MinCertifications: 1},
			certs:    []models.CertificationStatus{models.CertificationStatusApproved},
			policy:   DefaultPolicy(),
			want:     false,
		},
		{
			name:   "missing category config fails closed",
			certs:  []models.CertificationStatus{models.CertificationStatusApproved, models.CertificationStatusApproved},
			policy: DefaultPolicy(),
			want:   false,
		},
		{
			name:     "zero minimum still needs one approved cert",
			category: &models.CategoryBadgeConfig{CategoryID: categoryID, AllowsVerifiedBadge: true, MinCertifications: 0},
			policy:   DefaultPolicy(),
			want:     false,
		},
		{
			name:    "premium alone qualifies under default policy",
			premium: true,
			policy:  DefaultPolicy(),
			want:    true,
		},
		{
			name:    "premium alone does not qualify when policy is off",
			premium: true,
			policy:  Policy{PremiumGrantsBadge: false},
			want:    false,
		},
		{
			name:     "certs qualify even with policy off",
			category: &models.CategoryBadgeConfig{CategoryID: categoryID, AllowsVerifiedBadge: true, MinCertifications: 1},
			certs:    []models.CertificationStatus{models.CertificationStatusApproved},
			policy:   Policy{PremiumGrantsBadge: false},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			sellerID := uuid.New()
			if tt.category != nil {
				store.PutCategory(*tt.category)
			}
			addCerts(store, sellerID, tt.certs...)
			if tt.premium {
				activateSubscription(t, store, sellerID)
			}

			rule := NewRule(store, store, store, tt.policy).WithClock(func() time.Time { return now })
			got, err := rule.IsBadgeEligible(context.Background(), sellerID, categoryID)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsBadgeEligible_ExpiredSubscriptionDoesNotQualify(t *testing.T) {
	store := memstore.New()
	sellerID := uuid.New()
	require.NoError(t, store.CreateSubscription(context.Background(), &models.PremiumSubscription{
		ID: uuid.New(), SellerID: sellerID, PaymentID: uuid.New(),
		StartDate: now.AddDate(-2, 0, 0), EndDate: now.AddDate(-1, 0, 0), Active: true,
	}))

	rule := NewRule(store, store, store, DefaultPolicy()).WithClock(func() time.Time { return now })
	got, err := rule.CanSellerReceiveBadge(context.Background(), sellerID, uuid.New())

	require.NoError(t, err)
	assert.False(t, got)
}

func TestIsBadgeEligible_StoreError(t *testing.T) {
	store := memstore.New()
	rule := NewRule(brokenCerts{}, store, store, DefaultPolicy())

	_, err := rule.IsBadgeEligible(context.Background(), uuid.New(), uuid.New())

	assert.Equal(t, apperrors.CodeDependency, apperrors.CodeOf(err))
}
