package service

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/nelc/ecommerce-hyperpay/internal/gateway"
	"github.com/nelc/ecommerce-hyperpay/internal/models"
	"github.com/nelc/ecommerce-hyperpay/internal/telemetry"
)

// PrepareCheckout registers a checkout for the basket with the gateway and
// returns everything the payment widget needs. The merchant memo carries the
// order number so the callback can find its way back to the basket.
func (o *Orchestrator) PrepareCheckout(ctx context.Context, processorName string, basketID int64, user models.UserSnapshot) (*models.CheckoutPage, error) {
	rt, err := o.runtime(processorName)
	if err != nil {
		return nil, err
	}

	basket, err := o.baskets.GetByID(ctx, basketID)
	if err != nil {
		return nil, fmt.Errorf("loading basket %d: %w", basketID, err)
	}
	if basket.Status != models.BasketStatusOpen {
		return nil, fmt.Errorf("basket %d: %w", basketID, ErrBasketNotOpen)
	}
	if user.IsZero() || user.ID != basket.OwnerID {
		return nil, fmt.Errorf("basket %d: %w", basketID, ErrNotBasketOwner)
	}

	orderNumber := o.orderNumber(basket.ID)
	extra := url.Values{}
	if user.Email != "" {
		extra.Set("customer.email", user.Email)
	}
	if user.Username != "" {
		extra.Set("customer.merchantCustomerId", user.Username)
	}

	resp, err := rt.gateway.CreateCheckout(ctx, gateway.CheckoutRequest{
		Amount:                basket.Total,
		Currency:              rt.cfg.Currency,
		MerchantTransactionID: models.MerchantTransactionID(orderNumber),
		MerchantMemo:          orderNumber,
		PaymentType:           rt.cfg.PaymentType,
		Extra:                 extra,
	})
	if err != nil {
		telemetry.Logger.Error("Checkout creation failed",
			zap.String("processor", rt.name),
			zap.Int64("basket_id", basket.ID),
			zap.Error(err),
		)
		return nil, err
	}

	telemetry.Logger.Info("Checkout created",
		zap.String("processor", rt.name),
		zap.Int64("basket_id", basket.ID),
		zap.String("checkout_id", resp.ID),
		zap.String("order_number", orderNumber),
		zap.String("amount", basket.Total),
	)

	return &models.CheckoutPage{
		CheckoutID:   resp.ID,
		Integrity:    resp.Integrity,
		WidgetJSURL:  rt.gateway.PaymentWidgetJSURL(resp.ID),
		ReturnURL:    rt.cfg.ReturnURL,
		Brands:       rt.cfg.Brands,
		CheckoutText: rt.cfg.CheckoutText,
		OrderNumber:  orderNumber,
		Amount:       basket.Total,
		Currency:     rt.cfg.Currency,
	}, nil
}
