package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
	"github.com/nelc/ecommerce-hyperpay/internal/repository"
	"github.com/nelc/ecommerce-hyperpay/internal/service"
	"github.com/nelc/ecommerce-hyperpay/internal/telemetry"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	telemetry.Logger = zap.NewNop()
	os.Exit(m.Run())
}

type fakeFlow struct {
	prepareFunc func(ctx context.Context, processor string, basketID int64, user models.UserSnapshot) (*models.CheckoutPage, error)
	submitFunc  func(ctx context.Context, req models.CallbackRequest) *models.Resolution
	statusFunc  func(ctx context.Context, req models.CallbackRequest, token string) *models.Resolution

	submitReq models.CallbackRequest
	statusReq models.CallbackRequest
	token     string
}

func (f *fakeFlow) HasProcessor(name string) bool {
	return name == "hyperpay"
}

func (f *fakeFlow) PrepareCheckout(ctx context.Context, processor string, basketID int64, user models.UserSnapshot) (*models.CheckoutPage, error) {
	return f.prepareFunc(ctx, processor, basketID, user)
}

func (f *fakeFlow) SubmitCallback(ctx context.Context, req models.CallbackRequest) *models.Resolution {
	f.submitReq = req
	return f.submitFunc(ctx, req)
}

func (f *fakeFlow) StatusCheck(ctx context.Context, req models.CallbackRequest, token string) *models.Resolution {
	f.statusReq = req
	f.token = token
	return f.statusFunc(ctx, req, token)
}

func newTestRouter(flow *fakeFlow) *gin.Engine {
	r := gin.New()
	checkout := NewCheckoutHandler(flow)
	callback := NewCallbackHandler(flow, "https://shop.test/receipt/", "https://shop.test/error/")
	r.POST("/api/v1/checkouts", checkout.CreateCheckout)
	r.GET("/payment/:processor/pay/:basket_id", checkout.PaymentPage)
	r.GET("/payment/:processor/submit", callback.Submit)
	r.GET("/payment/:processor/status", callback.StatusCheck)
	return r
}

func testCheckoutPage() *models.CheckoutPage {
	return &models.CheckoutPage{
		CheckoutID:   "chk-77",
		Integrity:    "sha384-xyz",
		WidgetJSURL:  "https://gw.test/v1/paymentWidgets.js?checkoutId=chk-77",
		ReturnURL:    "https://shop.test/payment/hyperpay/submit",
		Brands:       []string{"VISA", "MASTER"},
		CheckoutText: "All prices include VAT.",
		OrderNumber:  "EDX-100001",
		Amount:       "149.00",
		Currency:     "SAR",
	}
}

func TestSubmit_ReceiptRedirect(t *testing.T) {
	flow := &fakeFlow{submitFunc: func(ctx context.Context, req models.CallbackRequest) *models.Resolution {
		return &models.Resolution{Kind: models.DispositionReceiptRedirect, OrderNumber: "EDX-100001", Outcome: models.OutcomeSuccess}
	}}
	router := newTestRouter(flow)

	req := httptest.NewRequest(http.MethodGet, "/payment/hyperpay/submit?resourcePath=/v1/checkouts/chk-1/payment&id=pay-1", nil)
	req.Header.Set(headerUserID, "7")
	req.Header.Set(headerUsername, "learner")
	req.Header.Set(headerUserEmail, "learner@example.com")
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "sess-9"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.test/receipt/?order_number=EDX-100001", w.Header().Get("Location"))

	assert.Equal(t, "hyperpay", flow.submitReq.Processor)
	assert.Equal(t, "/v1/checkouts/chk-1/payment", flow.submitReq.ResourcePath)
	assert.Equal(t, "pay-1", flow.submitReq.Query.Get("id"))
	assert.Equal(t, models.UserSnapshot{ID: 7, Username: "learner", Email: "learner@example.com"}, flow.submitReq.User)
	assert.Equal(t, "sess-9", flow.submitReq.SessionID)
}

func TestSubmit_MintsSessionCookie(t *testing.T) {
	flow := &fakeFlow{submitFunc: func(ctx context.Context, req models.CallbackRequest) *models.Resolution {
		return &models.Resolution{Kind: models.DispositionErrorRedirect, Outcome: models.OutcomeFailure}
	}}
	router := newTestRouter(flow)

	req := httptest.NewRequest(http.MethodGet, "/payment/hyperpay/submit", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.NotEmpty(t, flow.submitReq.SessionID)
	cookies := w.Result().Cookies()
	var found bool
	for _, cookie := range cookies {
		if cookie.Name == sessionCookie {
			found = true
			assert.Equal(t, flow.submitReq.SessionID, cookie.Value)
			assert.True(t, cookie.HttpOnly)
		}
	}
	assert.True(t, found, "expected a session cookie to be set")
}

func TestSubmit_UnknownProcessor(t *testing.T) {
	flow := &fakeFlow{submitFunc: func(ctx context.Context, req models.CallbackRequest) *models.Resolution {
		t.Fatal("flow must not be invoked for unknown processors")
		return nil
	}}
	router := newTestRouter(flow)

	req := httptest.NewRequest(http.MethodGet, "/payment/stripe/submit?resourcePath=/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmit_StatusCheckRedirect(t *testing.T) {
	flow := &fakeFlow{submitFunc: func(ctx context.Context, req models.CallbackRequest) *models.Resolution {
		return &models.Resolution{Kind: models.DispositionStatusCheckRedirect, Token: "tok/+x", Outcome: models.OutcomePending}
	}}
	router := newTestRouter(flow)

	req := httptest.NewRequest(http.MethodGet, "/payment/hyperpay/submit?resourcePath=/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/payment/hyperpay/status?token=tok%2F%2Bx", w.Header().Get("Location"))
}

func TestSubmit_ErrorRedirect(t *testing.T) {
	flow := &fakeFlow{submitFunc: func(ctx context.Context, req models.CallbackRequest) *models.Resolution {
		return &models.Resolution{Kind: models.DispositionErrorRedirect, Outcome: models.OutcomeFailure}
	}}
	router := newTestRouter(flow)

	req := httptest.NewRequest(http.MethodGet, "/payment/hyperpay/submit", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.test/error/", w.Header().Get("Location"))
}

func TestStatusCheck_RendersPendingPage(t *testing.T) {
	flow := &fakeFlow{statusFunc: func(ctx context.Context, req models.CallbackRequest, token string) *models.Resolution {
		return &models.Resolution{Kind: models.DispositionPendingPage, PollIntervalSeconds: 45, Outcome: models.OutcomePending}
	}}
	router := newTestRouter(flow)

	req := httptest.NewRequest(http.MethodGet, "/payment/hyperpay/status?token=abc123", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", flow.token)
	body := w.Body.String()
	assert.Contains(t, body, `content="45"`)
	assert.Contains(t, body, "do not pay again")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestCreateCheckout(t *testing.T) {
	var gotProcessor string
	var gotBasketID int64
	var gotUser models.UserSnapshot
	flow := &fakeFlow{prepareFunc: func(ctx context.Context, processor string, basketID int64, user models.UserSnapshot) (*models.CheckoutPage, error) {
		gotProcessor, gotBasketID, gotUser = processor, basketID, user
		return testCheckoutPage(), nil
	}}
	router := newTestRouter(flow)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkouts", strings.NewReader(`{"processor":"hyperpay","basket_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerUserID, "7")
	req.Header.Set(headerUsername, "learner")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hyperpay", gotProcessor)
	assert.Equal(t, int64(1), gotBasketID)
	assert.Equal(t, int64(7), gotUser.ID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "chk-77", body["checkout_id"])
	assert.Equal(t, "https://gw.test/v1/paymentWidgets.js?checkoutId=chk-77", body["widget_js_url"])
	assert.Equal(t, "EDX-100001", body["order_number"])
	assert.Equal(t, "149.00", body["amount"])
}

func TestCreateCheckout_InvalidBody(t *testing.T) {
	flow := &fakeFlow{prepareFunc: func(ctx context.Context, processor string, basketID int64, user models.UserSnapshot) (*models.CheckoutPage, error) {
		t.Fatal("flow must not be invoked for invalid bodies")
		return nil, nil
	}}
	router := newTestRouter(flow)

	for _, body := range []string{`{}`, `{"processor":"hyperpay"}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkouts", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestCreateCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown processor", fmt.Errorf("wrapped: %w", service.ErrUnknownProcessor), http.StatusNotFound},
		{"basket missing", fmt.Errorf("loading basket 1: %w", repository.ErrBasketNotFound), http.StatusNotFound},
		{"not owner", fmt.Errorf("basket 1: %w", service.ErrNotBasketOwner), http.StatusForbidden},
		{"basket closed", fmt.Errorf("basket 1: %w", service.ErrBasketNotOpen), http.StatusConflict},
		{"gateway failure", fmt.Errorf("error creating checkout: HyperPay status code 200.300.404"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &fakeFlow{prepareFunc: func(ctx context.Context, processor string, basketID int64, user models.UserSnapshot) (*models.CheckoutPage, error) {
				return nil, tt.err
			}}
			router := newTestRouter(flow)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkouts", strings.NewReader(`{"processor":"hyperpay","basket_id":1}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestPaymentPage(t *testing.T) {
	flow := &fakeFlow{prepareFunc: func(ctx context.Context, processor string, basketID int64, user models.UserSnapshot) (*models.CheckoutPage, error) {
		return testCheckoutPage(), nil
	}}
	router := newTestRouter(flow)

	req := httptest.NewRequest(http.MethodGet, "/payment/hyperpay/pay/1", nil)
	req.Header.Set(headerUserID, "7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `src="https://gw.test/v1/paymentWidgets.js?checkoutId=chk-77"`)
	assert.Contains(t, body, `integrity="sha384-xyz"`)
	assert.Contains(t, body, `action="https://shop.test/payment/hyperpay/submit"`)
	assert.Contains(t, body, `data-brands="VISA MASTER"`)
	assert.Contains(t, body, "All prices include VAT.")
	assert.Contains(t, body, "149.00 SAR")
}

func TestPaymentPage_BadBasketID(t *testing.T) {
	flow := &fakeFlow{prepareFunc: func(ctx context.Context, processor string, basketID int64, user models.UserSnapshot) (*models.CheckoutPage, error) {
		t.Fatal("flow must not be invoked for an unparseable basket id")
		return nil, nil
	}}
	router := newTestRouter(flow)

	for _, path := range []string{"/payment/hyperpay/pay/abc", "/payment/hyperpay/pay/-3"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, "path %s", path)
	}
}
