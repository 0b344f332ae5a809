package interfaces

import (
	"context"

	"github.com/nelc/ecommerce-hyperpay/internal/gateway"
)

// Gateway defines the contract for the HyperPay API surface the service uses
type Gateway interface {
	CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResponse, error)
	PaymentStatus(ctx context.Context, resourcePath string) (*gateway.StatusResponse, error)
	PaymentWidgetJSURL(checkoutID string) string
}
