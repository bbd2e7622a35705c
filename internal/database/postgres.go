package database

import (
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var PostgresDB *sqlx.DB

// ConnectPostgres connects to the PostgreSQL database that holds payment records.
func ConnectPostgres(postgresURI string) error {
	db, err := sqlx.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return err
	}

	if err := InitPostgresTables(db); err != nil {
		_ = db.Close()
		return err
	}

	PostgresDB = db
	return nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables(db *sqlx.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payment_orders (
			id UUID PRIMARY KEY,
			order_id VARCHAR(64) NOT NULL UNIQUE,
			user_id VARCHAR(24) NOT NULL,
			plan VARCHAR(16) NOT NULL,
			amount BIGINT NOT NULL,
			currency VARCHAR(8) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'created',
			payment_id VARCHAR(64),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			paid_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_orders_user_id ON payment_orders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_orders_status ON payment_orders(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
