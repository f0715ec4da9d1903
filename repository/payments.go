package repository

import (
	"context"
	"database/sql"
	"time"

	"marketplace-svc/models"

	"github.com/google/uuid"
)

const paymentColumns = `id, seller_id, order_id, amount, currency, provider, method, description,
	external_transaction_id, status, created_at, updated_at, completed_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p           models.Payment
		orderID     uuid.NullUUID
		externalTxn sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.SellerID, &orderID, &p.Amount, &p.Currency, &p.Provider, &p.Method,
		&p.Description, &externalTxn, &p.Status, &p.CreatedAt, &p.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		p.OrderID = &orderID.UUID
	}
	if externalTxn.Valid {
		p.ExternalTransactionID = &externalTxn.String
	}
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	return &p, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.SellerID, p.OrderID, p.Amount, p.Currency, p.Provider, p.Method, p.Description,
		p.ExternalTransactionID, p.Status, p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	return translate(err)
}

func (s *Store) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Store) ListPendingPayments(ctx context.Context, createdBefore time.Time) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE status = $1 AND created_at <= $2
		ORDER BY created_at`,
		models.PaymentStatusPending, createdBefore,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// TransitionPayment is a compare-and-set on the payment status. It reports
// false when the payment is missing or no longer in t.From.
func (s *Store) TransitionPayment(ctx context.Context, t models.PaymentTransition) (bool, error) {
	var completedAt *time.Time
	if t.To == models.PaymentStatusCompleted {
		completedAt = &t.At
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET
			status = $1,
			updated_at = $2,
			external_transaction_id = COALESCE($3, external_transaction_id),
			completed_at = COALESCE($4, completed_at)
		WHERE id = $5 AND status = $6`,
		t.To, t.At, t.ExternalTransactionID, completedAt, t.PaymentID, t.From,
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
