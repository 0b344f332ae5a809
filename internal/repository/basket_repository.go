package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
)

var (
	ErrBasketNotFound   = errors.New("basket not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyFinalized = errors.New("basket already finalized")
)

type BasketRepository struct {
	db *sql.DB
}

func NewBasketRepository(db *sql.DB) *BasketRepository {
	return &BasketRepository{db: db}
}

func (r *BasketRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS baskets (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL,
			owner_username VARCHAR(255) NOT NULL,
			owner_email VARCHAR(255),
			status VARCHAR(32) NOT NULL DEFAULT 'Open',
			total NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			basket_id BIGINT NOT NULL UNIQUE REFERENCES baskets(id),
			order_number VARCHAR(64) NOT NULL,
			total NUMERIC(12,2) NOT NULL,
			currency VARCHAR(8) NOT NULL,
			transaction_id VARCHAR(255),
			card_summary VARCHAR(32),
			payment_brand VARCHAR(32),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_order_number ON orders(order_number)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *BasketRepository) GetByID(ctx context.Context, id int64) (*models.Basket, error) {
	var b models.Basket
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, owner_username, COALESCE(owner_email, ''), status, total
		FROM baskets WHERE id = $1
	`, id).Scan(&b.ID, &b.OwnerID, &b.OwnerUsername, &b.OwnerEmail, &b.Status, &b.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBasketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FinalizeOrder inserts the order and marks the basket submitted in one
// transaction. The UNIQUE constraint on orders.basket_id is what makes
// duplicate callbacks harmless: the second insert hits the conflict and the
// whole call reports ErrAlreadyFinalized.
func (r *BasketRepository) FinalizeOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (basket_id, order_number, total, currency, transaction_id, card_summary, payment_brand)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (basket_id) DO NOTHING
		RETURNING id, created_at
	`, order.BasketID, order.OrderNumber, order.Total, order.Currency,
		nullString(order.TransactionID), nullString(order.CardSummary), nullString(order.PaymentBrand)).
		Scan(&order.ID, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadyFinalized
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE baskets SET status = $1 WHERE id = $2
	`, models.BasketStatusSubmitted, order.BasketID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *BasketRepository) GetOrderByBasketID(ctx context.Context, basketID int64) (*models.Order, error) {
	var o models.Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, basket_id, order_number, total, currency,
			COALESCE(transaction_id, ''), COALESCE(card_summary, ''), COALESCE(payment_brand, ''), created_at
		FROM orders WHERE basket_id = $1
	`, basketID).Scan(&o.ID, &o.BasketID, &o.OrderNumber, &o.Total, &o.Currency,
		&o.TransactionID, &o.CardSummary, &o.PaymentBrand, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
