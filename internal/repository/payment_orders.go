package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AnshRaj112/coursely-backend/internal/models"
)

// PaymentOrderRepository keeps gateway orders in Postgres so payments can be reconciled
// independently of the user documents.
type PaymentOrderRepository struct {
	db *sqlx.DB
}

func NewPaymentOrderRepository(db *sqlx.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

func (r *PaymentOrderRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = models.PaymentCreated
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO payment_orders (id, order_id, user_id, plan, amount, currency, status, created_at)
VALUES (:id, :order_id, :user_id, :plan, :amount, :currency, :status, :created_at)
`, order)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert payment order: %w", err)
	}
	return nil
}

func (r *PaymentOrderRepository) FindByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := r.db.GetContext(ctx, &order, `
SELECT id, order_id, user_id, plan, amount, currency, status, payment_id, created_at, paid_at
FROM payment_orders WHERE order_id = $1
`, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load payment order: %w", err)
	}
	return &order, nil
}

// MarkPaid claims a created order for the given payment. It returns false when the order
// was not in the created state, so a replayed confirmation cannot be applied twice.
func (r *PaymentOrderRepository) MarkPaid(ctx context.Context, orderID, paymentID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE payment_orders SET status = $1, payment_id = $2, paid_at = $3
WHERE order_id = $4 AND status = $5
`, models.PaymentPaid, paymentID, at, orderID, models.PaymentCreated)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Revert undoes MarkPaid when the subscription could not be activated.
func (r *PaymentOrderRepository) Revert(ctx context.Context, orderID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE payment_orders SET status = $1, payment_id = NULL, paid_at = NULL
WHERE order_id = $2 AND status = $3
`, models.PaymentCreated, orderID, models.PaymentPaid)
	if err != nil {
		return fmt.Errorf("failed to revert payment order: %w", err)
	}
	return nil
}

func (r *PaymentOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.PaymentOrder, error) {
	orders := []models.PaymentOrder{}
	err := r.db.SelectContext(ctx, &orders, `
SELECT id, order_id, user_id, plan, amount, currency, status, payment_id, created_at, paid_at
FROM payment_orders WHERE user_id = $1 ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment orders: %w", err)
	}
	return orders, nil
}
