package repository

import (
	"context"
	"fmt"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/models"

	"github.com/google/uuid"
)

const orderColumns = `id, buyer_id, seller_id, cart_id, delivery_address_id, payment_method_id,
	total_amount, currency, status, payment_status, created_at, updated_at`

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.CartID, &o.DeliveryAddressID, &o.PaymentMethodID,
		&o.TotalAmount, &o.Currency, &o.Status, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrders writes all orders of one checkout and their items in a single
// transaction.
func (s *Store) CreateOrders(ctx context.Context, orders []*models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, o := range orders {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			o.ID, o.BuyerID, o.SellerID, o.CartID, o.DeliveryAddressID, o.PaymentMethodID,
			o.TotalAmount, o.Currency, o.Status, o.PaymentStatus, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order %s: %w", o.ID, translate(err))
		}

		for _, item := range o.Items {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO order_items (id, order_id, product_id, product_name, unit_price, quantity, total_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				item.ID, o.ID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, item.TotalPrice,
			)
			if err != nil {
				return fmt.Errorf("failed to insert order item %s: %w", item.ID, translate(err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit orders: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, translate(err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, unit_price, quantity, total_price
		FROM order_items WHERE order_id = $1 ORDER BY product_name, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.UnitPrice, &item.Quantity, &item.TotalPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

// UpdateOrderStatus applies the change only while the order is still in from.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4",
		to, at, orderID, from,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) UpdateOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, status models.PaymentStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = $2 WHERE id = $3",
		status, at, orderID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListOrdersWithoutPayment returns live orders that have no payment row at
// all, oldest first.
func (s *Store) ListOrdersWithoutPayment(ctx context.Context, limit int) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders o
		WHERE o.status <> $1
		AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.order_id = o.id)
		ORDER BY o.created_at
		LIMIT $2`,
		models.OrderStatusCancelled, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
