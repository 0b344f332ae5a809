package interfaces

import (
	"context"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
)

// PaymentFlow defines the contract between the HTTP layer and the payment service
type PaymentFlow interface {
	HasProcessor(name string) bool
	PrepareCheckout(ctx context.Context, processorName string, basketID int64, user models.UserSnapshot) (*models.CheckoutPage, error)
	SubmitCallback(ctx context.Context, req models.CallbackRequest) *models.Resolution
	StatusCheck(ctx context.Context, req models.CallbackRequest, encodedToken string) *models.Resolution
}
