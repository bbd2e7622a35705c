package models

import (
	"database/sql"
	"time"
)

type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "created"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentOrder is the Postgres record of a gateway order, kept for reconciliation.
type PaymentOrder struct {
	ID        string         `db:"id" json:"id"`
	OrderID   string         `db:"order_id" json:"orderId"`
	UserID    string         `db:"user_id" json:"userId"`
	Plan      Plan           `db:"plan" json:"plan"`
	Amount    int64          `db:"amount" json:"amount"`
	Currency  string         `db:"currency" json:"currency"`
	Status    PaymentStatus  `db:"status" json:"status"`
	PaymentID sql.NullString `db:"payment_id" json:"-"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	PaidAt    sql.NullTime   `db:"paid_at" json:"-"`
}
