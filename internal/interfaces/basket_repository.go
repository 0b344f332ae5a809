package interfaces

import (
	"context"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
)

// BasketRepository defines the contract for basket lookups and order finalization
type BasketRepository interface {
	// GetByID returns the basket or repository.ErrBasketNotFound.
	GetByID(ctx context.Context, id int64) (*models.Basket, error)

	// FinalizeOrder creates the order for order.BasketID and marks the
	// basket submitted, atomically. A basket that already has an order
	// yields repository.ErrAlreadyFinalized and no new row.
	FinalizeOrder(ctx context.Context, order *models.Order) (*models.Order, error)

	// GetOrderByBasketID returns the order finalized from a basket, or
	// repository.ErrOrderNotFound.
	GetOrderByBasketID(ctx context.Context, basketID int64) (*models.Order, error)
}
