// Package gateway is the HTTP client for the HyperPay API.
//
// It covers the two calls the payment flow needs: creating a checkout and
// polling the status of a payment, both documented at
// https://hyperpay.docs.oppwa.com/integration-guide.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nelc/ecommerce-hyperpay/internal/telemetry"
)

const (
	checkoutsEndpoint   = "/v1/checkouts"
	paymentWidgetJSPath = "/v1/paymentWidgets.js"

	// resultCodeCheckoutCreated is the only acceptable result code for a
	// freshly created checkout.
	resultCodeCheckoutCreated = "000.200.100"

	defaultTimeout = 30 * time.Second
)

// ErrMalformedResponse marks gateway replies missing the fields every
// response is documented to carry.
var ErrMalformedResponse = errors.New("invalid response from HyperPay")

// TransportError represents an unreachable gateway or a non-2xx reply.
type TransportError struct {
	Op         string
	StatusCode int // zero when the call never completed
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hyperpay %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("hyperpay %s: status code %d", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client talks to one HyperPay entity. A processor variant owns exactly one
// client; credentials never vary per request.
type Client struct {
	baseURL     string
	entityID    string
	accessToken string
	testMode    string
	httpClient  *http.Client
}

// NewClient builds a gateway client. testMode is the gateway's testMode
// parameter value (e.g. "EXTERNAL"); empty disables it.
func NewClient(baseURL, entityID, accessToken, testMode string) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		entityID:    entityID,
		accessToken: accessToken,
		testMode:    testMode,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
}

// CheckoutRequest carries the bulk merchant/cart/customer fields for a
// checkout. Extra holds pre-shaped cart and customer fields; this client does
// not own their construction rules.
type CheckoutRequest struct {
	Amount                string
	Currency              string
	MerchantTransactionID string
	MerchantMemo          string
	PaymentType           string
	Extra                 url.Values
}

// CheckoutResponse is the successful reply to CreateCheckout.
type CheckoutResponse struct {
	Raw       map[string]any
	ID        string
	Integrity string
}

// CreateCheckout registers a checkout with the gateway and returns its id.
// Any reply other than a well-formed "checkout created" result is an error.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	form := url.Values{}
	form.Set("entityId", c.entityID)
	form.Set("paymentType", req.PaymentType)
	form.Set("integrity", "true")
	if c.testMode != "" {
		form.Set("testMode", c.testMode)
	}
	form.Set("amount", req.Amount)
	form.Set("currency", req.Currency)
	form.Set("merchantTransactionId", req.MerchantTransactionID)
	form.Set("merchantMemo", req.MerchantMemo)
	for key, values := range req.Extra {
		for _, value := range values {
			form.Add(key, value)
		}
	}

	raw, _, err := c.do(ctx, http.MethodPost, c.baseURL+checkoutsEndpoint, strings.NewReader(form.Encode()), "create checkout")
	if err != nil {
		return nil, fmt.Errorf("error creating a checkout: %w", err)
	}

	code, ok := resultCode(raw)
	if !ok {
		return nil, fmt.Errorf("error creating checkout: %w", ErrMalformedResponse)
	}
	if code != resultCodeCheckoutCreated {
		return nil, fmt.Errorf("error creating checkout: HyperPay status code %s", code)
	}

	id, _ := raw["id"].(string)
	integrity, _ := raw["integrity"].(string)
	return &CheckoutResponse{Raw: raw, ID: id, Integrity: integrity}, nil
}

// StatusResponse is the raw reply of a status poll together with the HTTP
// status it arrived with. Extractors tolerate missing fields; the payload is
// vendor-controlled and audited verbatim either way.
type StatusResponse struct {
	Raw        map[string]any
	HTTPStatus int
}

// ResultCode returns the nested result.code field.
func (r *StatusResponse) ResultCode() (string, bool) {
	if r == nil {
		return "", false
	}
	return resultCode(r.Raw)
}

// ID returns the gateway-assigned payment id, or "" when absent.
func (r *StatusResponse) ID() string {
	if r == nil {
		return ""
	}
	id, _ := r.Raw["id"].(string)
	return id
}

// MerchantMemo returns the merchant memo (the order number we sent at
// checkout time), or "" when absent.
func (r *StatusResponse) MerchantMemo() string {
	if r == nil {
		return ""
	}
	memo, _ := r.Raw["merchantMemo"].(string)
	return memo
}

// PaymentStatus polls the payment status behind a gateway resource path.
// On a non-2xx reply the parseable payload is still returned alongside the
// TransportError so callers can audit it.
func (c *Client) PaymentStatus(ctx context.Context, resourcePath string) (*StatusResponse, error) {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, resourcePath, url.Values{"entityId": {c.entityID}}.Encode())

	raw, statusCode, err := c.do(ctx, http.MethodGet, endpoint, nil, "payment status")
	if err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) && transportErr.StatusCode != 0 {
			return &StatusResponse{Raw: raw, HTTPStatus: statusCode}, err
		}
		return nil, err
	}
	return &StatusResponse{Raw: raw, HTTPStatus: statusCode}, nil
}

// PaymentWidgetJSURL is the script URL the payment page loads for a checkout.
func (c *Client) PaymentWidgetJSURL(checkoutID string) string {
	return fmt.Sprintf("%s%s?%s", c.baseURL, paymentWidgetJSPath, url.Values{"checkoutId": {checkoutID}}.Encode())
}

func (c *Client) do(ctx context.Context, method, endpoint string, body *strings.Reader, op string) (map[string]any, int, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return nil, 0, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	telemetry.ObserveGatewayRequest(op, time.Since(start))
	if err != nil {
		return nil, 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var raw map[string]any
	decodeErr := json.NewDecoder(resp.Body).Decode(&raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, resp.StatusCode, &TransportError{Op: op, StatusCode: resp.StatusCode}
	}
	if decodeErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	return raw, resp.StatusCode, nil
}

func resultCode(raw map[string]any) (string, bool) {
	result, ok := raw["result"].(map[string]any)
	if !ok {
		return "", false
	}
	code, ok := result["code"].(string)
	return code, ok
}
