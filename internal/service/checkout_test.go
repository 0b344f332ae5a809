package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nelc/ecommerce-hyperpay/internal/gateway"
	"github.com/nelc/ecommerce-hyperpay/internal/models"
	"github.com/nelc/ecommerce-hyperpay/internal/repository"
)

func TestPrepareCheckout(t *testing.T) {
	var got gateway.CheckoutRequest
	gw := &fakeGateway{checkoutFunc: func(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResponse, error) {
		got = req
		return &gateway.CheckoutResponse{ID: "chk-77", Integrity: "sha384-xyz"}, nil
	}}
	env := newTestEnv(t, gw)

	user := models.UserSnapshot{ID: 7, Username: "learner", Email: "learner@example.com"}
	page, err := env.orchestrator.PrepareCheckout(context.Background(), "hyperpay", 1, user)
	require.NoError(t, err)

	assert.Equal(t, "149.00", got.Amount)
	assert.Equal(t, "SAR", got.Currency)
	assert.Equal(t, "EDX-100001", got.MerchantMemo)
	assert.Equal(t, "EDX100001", got.MerchantTransactionID)
	assert.Equal(t, "DB", got.PaymentType)
	assert.Equal(t, "learner@example.com", got.Extra.Get("customer.email"))
	assert.Equal(t, "learner", got.Extra.Get("customer.merchantCustomerId"))

	assert.Equal(t, "chk-77", page.CheckoutID)
	assert.Equal(t, "sha384-xyz", page.Integrity)
	assert.Equal(t, "https://gw.test/v1/paymentWidgets.js?checkoutId=chk-77", page.WidgetJSURL)
	assert.Equal(t, "https://shop.test/payment/hyperpay/submit/", page.ReturnURL)
	assert.Equal(t, []string{"VISA", "MASTER"}, page.Brands)
	assert.Equal(t, "EDX-100001", page.OrderNumber)
	assert.Equal(t, "149.00", page.Amount)
	assert.Equal(t, "SAR", page.Currency)
}

func TestPrepareCheckout_RejectsNonOwner(t *testing.T) {
	gw := &fakeGateway{checkoutFunc: func(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResponse, error) {
		t.Fatal("checkout must not be created for a non-owner")
		return nil, nil
	}}
	env := newTestEnv(t, gw)

	_, err := env.orchestrator.PrepareCheckout(context.Background(), "hyperpay", 1, models.UserSnapshot{ID: 99, Username: "intruder"})
	assert.ErrorIs(t, err, ErrNotBasketOwner)

	_, err = env.orchestrator.PrepareCheckout(context.Background(), "hyperpay", 1, models.UserSnapshot{})
	assert.ErrorIs(t, err, ErrNotBasketOwner)
}

func TestPrepareCheckout_MissingBasket(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{})

	_, err := env.orchestrator.PrepareCheckout(context.Background(), "hyperpay", 42, models.UserSnapshot{ID: 7})
	assert.ErrorIs(t, err, repository.ErrBasketNotFound)
}

func TestPrepareCheckout_SubmittedBasket(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{})
	env.baskets.baskets[1].Status = models.BasketStatusSubmitted

	_, err := env.orchestrator.PrepareCheckout(context.Background(), "hyperpay", 1, models.UserSnapshot{ID: 7})
	assert.ErrorIs(t, err, ErrBasketNotOpen)
}

func TestPrepareCheckout_UnknownProcessor(t *testing.T) {
	env := newTestEnv(t, &fakeGateway{})

	_, err := env.orchestrator.PrepareCheckout(context.Background(), "stripe", 1, models.UserSnapshot{ID: 7})
	assert.ErrorIs(t, err, ErrUnknownProcessor)
}

func TestPrepareCheckout_GatewayError(t *testing.T) {
	wantErr := errors.New("error creating checkout: HyperPay status code 200.300.404")
	gw := &fakeGateway{checkoutFunc: func(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResponse, error) {
		return nil, wantErr
	}}
	env := newTestEnv(t, gw)

	_, err := env.orchestrator.PrepareCheckout(context.Background(), "hyperpay", 1, models.UserSnapshot{ID: 7})
	assert.ErrorIs(t, err, wantErr)
}
