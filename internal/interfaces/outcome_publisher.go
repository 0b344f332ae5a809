package interfaces

import (
	"context"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
)

// OutcomePublisher defines the contract for announcing resolved callbacks
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event models.OutcomeEvent) error
}
