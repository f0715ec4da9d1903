package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/models"

	"github.com/google/uuid"
)

// Store keeps every aggregate of the checkout and payment pipeline in memory.
// It satisfies the same ports as the Postgres store.
type Store struct {
	mu sync.RWMutex

	buyers         map[uuid.UUID]struct{}
	addresses      map[uuid.UUID]uuid.UUID // address -> owner
	paymentMethods map[uuid.UUID]uuid.UUID // method -> owner
	sellers        map[uuid.UUID]struct{}
	products       map[uuid.UUID]models.Product
	carts          map[uuid.UUID]models.Cart
	cartLines      map[uuid.UUID]models.CartLine
	orders         map[uuid.UUID]*models.Order
	payments       map[uuid.UUID]*models.Payment
	subscriptions  map[uuid.UUID]*models.PremiumSubscription
	profiles       map[uuid.UUID]*models.SellerProfile
	certifications map[uuid.UUID]models.Certification
	categories     map[uuid.UUID]models.CategoryBadgeConfig
}

func New() *Store {
	return &Store{
		buyers:         make(map[uuid.UUID]struct{}),
		addresses:      make(map[uuid.UUID]uuid.UUID),
		paymentMethods: make(map[uuid.UUID]uuid.UUID),
		sellers:        make(map[uuid.UUID]struct{}),
		products:       make(map[uuid.UUID]models.Product),
		carts:          make(map[uuid.UUID]models.Cart),
		cartLines:      make(map[uuid.UUID]models.CartLine),
		orders:         make(map[uuid.UUID]*models.Order),
		payments:       make(map[uuid.UUID]*models.Payment),
		subscriptions:  make(map[uuid.UUID]*models.PremiumSubscription),
		profiles:       make(map[uuid.UUID]*models.SellerProfile),
		certifications: make(map[uuid.UUID]models.Certification),
		categories:     make(map[uuid.UUID]models.CategoryBadgeConfig),
	}
}

// Seeding

func (s *Store) PutBuyer(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyers[id] = struct{}{}
}

func (s *Store) PutAddress(id, ownerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[id] = ownerID
}

func (s *Store) PutPaymentMethod(id, ownerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentMethods[id] = ownerID
}

func (s *Store) PutSeller(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellers[id] = struct{}{}
}

func (s *Store) PutProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) DeleteProduct(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

func (s *Store) PutCart(c models.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.ID] = c
}

func (s *Store) PutCartLine(l models.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartLines[l.ID] = l
}

func (s *Store) PutCategory(c models.CategoryBadgeConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.CategoryID] = c
}

func (s *Store) PutCertification(c models.Certification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certifications[c.ID] = c
}

func (s *Store) PutSellerProfile(p models.SellerProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellers[p.SellerID] = struct{}{}
	s.profiles[p.SellerID] = &p
}

// Inspection

func (s *Store) Orders() []*models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) Payments() []*models.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

func (s *Store) Subscriptions() []*models.PremiumSubscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.PremiumSubscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		cp := *sub
		out = append(out, &cp)
	}
	return out
}

// Accounts

func (s *Store) BuyerExists(_ context.Context, buyerID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buyers[buyerID]
	return ok, nil
}

func (s *Store) AddressBelongsToUser(_ context.Context, addressID, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.addresses[addressID]
	return ok && owner == userID, nil
}

func (s *Store) PaymentMethodBelongsToUser(_ context.Context, methodID, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.paymentMethods[methodID]
	return ok && owner == userID, nil
}

// Catalog

func (s *Store) GetProduct(_ context.Context, productID uuid.UUID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (s *Store) SellerExists(_ context.Context, sellerID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sellers[sellerID]
	return ok, nil
}

// Carts

func (s *Store) GetCart(_ context.Context, cartID uuid.UUID) (*models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[cartID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetCartLines(_ context.Context, cartID uuid.UUID) ([]models.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var lines []models.CartLine
	for _, l := range s.cartLines {
		if l.CartID == cartID {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].AddedAt.Before(lines[j].AddedAt) })
	return lines, nil
}

func (s *Store) ClearLine(_ context.Context, lineID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cartLines, lineID)
	return nil
}

// Orders

func (s *Store) CreateOrders(_ context.Context, orders []*models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orders {
		s.orders[o.ID] = copyOrder(o)
	}
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderID uuid.UUID, from, to models.OrderStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	return true, nil
}

func (s *Store) UpdateOrderPaymentStatus(_ context.Context, orderID uuid.UUID, status models.PaymentStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return apperrors.ErrNotFound
	}
	o.PaymentStatus = status
	o.UpdatedAt = at
	return nil
}

func (s *Store) ListOrdersWithoutPayment(_ context.Context, limit int) ([]*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paid := make(map[uuid.UUID]bool)
	for _, p := range s.payments {
		if p.OrderID != nil {
			paid[*p.OrderID] = true
		}
	}
	var out []*models.Order
	for _, o := range s.orders {
		if !paid[o.ID] && o.Status != models.OrderStatusCancelled {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Payments

func (s *Store) CreatePayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.OrderID != nil && p.Status == models.PaymentStatusPending {
		for _, existing := range s.payments {
			if existing.OrderID != nil && *existing.OrderID == *p.OrderID && existing.Status == models.PaymentStatusPending {
				return apperrors.ErrDuplicate
			}
		}
	}
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *Store) GetPayment(_ context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListPendingPayments(_ context.Context, createdBefore time.Time) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Payment
	for _, p := range s.payments {
		if p.Status == models.PaymentStatusPending && !p.CreatedAt.After(createdBefore) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) TransitionPayment(_ context.Context, t models.PaymentTransition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[t.PaymentID]
	if !ok || p.Status != t.From {
		return false, nil
	}
	p.Status = t.To
	p.UpdatedAt = t.At
	if t.ExternalTransactionID != nil {
		txn := *t.ExternalTransactionID
		p.ExternalTransactionID = &txn
	}
	if t.To == models.PaymentStatusCompleted {
		at := t.At
		p.CompletedAt = &at
	}
	return true, nil
}

// Subscriptions

func (s *Store) CreateSubscription(_ context.Context, sub *models.PremiumSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subscriptions {
		if existing.PaymentID == sub.PaymentID {
			return apperrors.ErrDuplicate
		}
	}
	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

func (s *Store) FindSubscriptionByPayment(_ context.Context, paymentID uuid.UUID) (*models.PremiumSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscriptions {
		if sub.PaymentID == paymentID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *Store) HasActiveSubscription(_ context.Context, sellerID uuid.UUID, at time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscriptions {
		if sub.SellerID == sellerID && sub.ActiveAt(at) {
			return true, nil
		}
	}
	return false, nil
}

// Sellers, certifications, categories

func (s *Store) GetSellerProfile(_ context.Context, sellerID uuid.UUID) (*models.SellerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[sellerID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) SaveSellerProfile(_ context.Context, p *models.SellerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.SellerID] = &cp
	return nil
}

func (s *Store) CountApprovedCertifications(_ context.Context, sellerID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.certifications {
		if c.SellerID == sellerID && c.Status == models.CertificationStatusApproved {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetCategoryBadgeConfig(_ context.Context, categoryID uuid.UUID) (*models.CategoryBadgeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[categoryID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &c, nil
}

func copyOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}
