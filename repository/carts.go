package repository

import (
	"context"

	"marketplace-svc/models"

	"github.com/google/uuid"
)

func (s *Store) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRowContext(ctx,
		"SELECT id, seller_id, name, price FROM products WHERE id = $1 AND deleted_at IS NULL",
		productID,
	).Scan(&p.ID, &p.SellerID, &p.Name, &p.Price)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) GetCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var c models.Cart
	err := s.db.QueryRowContext(ctx,
		"SELECT id, buyer_id, created_at FROM carts WHERE id = $1",
		cartID,
	).Scan(&c.ID, &c.BuyerID, &c.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) GetCartLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, cart_id, product_id, quantity, unit_price, added_at FROM cart_lines WHERE cart_id = $1 ORDER BY added_at",
		cartID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var l models.CartLine
		if err := rows.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.AddedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) ClearLine(ctx context.Context, lineID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_lines WHERE id = $1", lineID)
	return err
}
