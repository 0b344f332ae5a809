package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nelc/ecommerce-hyperpay/internal/interfaces"
	"github.com/nelc/ecommerce-hyperpay/internal/repository"
	"github.com/nelc/ecommerce-hyperpay/internal/service"
	"github.com/nelc/ecommerce-hyperpay/internal/telemetry"
)

const paymentPageHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Pay order {{.Page.OrderNumber}}</title>
<script src="{{.Page.WidgetJSURL}}"{{if .Page.Integrity}} integrity="{{.Page.Integrity}}" crossorigin="anonymous"{{end}}></script>
</head>
<body>
<h1>Pay order {{.Page.OrderNumber}}</h1>
<p>Amount due: {{.Page.Amount}} {{.Page.Currency}}</p>
{{if .Page.CheckoutText}}<p>{{.Page.CheckoutText}}</p>{{end}}
<form action="{{.Page.ReturnURL}}" class="paymentWidgets" data-brands="{{.BrandsAttr}}"></form>
</body>
</html>
`

var paymentPageTmpl = template.Must(template.New("payment").Parse(paymentPageHTML))

// CheckoutHandler exposes checkout creation two ways: a JSON endpoint for
// the storefront SPA and a server-rendered widget page.
type CheckoutHandler struct {
	flow interfaces.PaymentFlow
}

func NewCheckoutHandler(flow interfaces.PaymentFlow) *CheckoutHandler {
	return &CheckoutHandler{flow: flow}
}

type checkoutRequest struct {
	Processor string `json:"processor" binding:"required"`
	BasketID  int64  `json:"basket_id" binding:"required"`
}

func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	var body checkoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	page, err := h.flow.PrepareCheckout(c.Request.Context(), body.Processor, body.BasketID, userFromRequest(c))
	if err != nil {
		status, message := checkoutErrorStatus(err)
		telemetry.Logger.Error("Checkout request failed",
			zap.String("processor", body.Processor),
			zap.Int64("basket_id", body.BasketID),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checkout_id":   page.CheckoutID,
		"integrity":     page.Integrity,
		"widget_js_url": page.WidgetJSURL,
		"return_url":    page.ReturnURL,
		"brands":        page.Brands,
		"order_number":  page.OrderNumber,
		"amount":        page.Amount,
		"currency":      page.Currency,
	})
}

// PaymentPage renders the HyperPay widget for a basket.
func (h *CheckoutHandler) PaymentPage(c *gin.Context) {
	processor := c.Param("processor")
	if !h.flow.HasProcessor(processor) {
		c.String(http.StatusNotFound, "unknown payment processor")
		return
	}
	basketID, err := strconv.ParseInt(c.Param("basket_id"), 10, 64)
	if err != nil || basketID <= 0 {
		c.String(http.StatusNotFound, "unknown basket")
		return
	}

	page, err := h.flow.PrepareCheckout(c.Request.Context(), processor, basketID, userFromRequest(c))
	if err != nil {
		status, message := checkoutErrorStatus(err)
		telemetry.Logger.Error("Payment page failed",
			zap.String("processor", processor),
			zap.Int64("basket_id", basketID),
			zap.Error(err),
		)
		c.String(status, message)
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	data := gin.H{"Page": page, "BrandsAttr": strings.Join(page.Brands, " ")}
	if err := paymentPageTmpl.Execute(c.Writer, data); err != nil {
		telemetry.Logger.Error("Failed to render payment page", zap.Error(err))
	}
}

func checkoutErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnknownProcessor):
		return http.StatusNotFound, "unknown payment processor"
	case errors.Is(err, repository.ErrBasketNotFound):
		return http.StatusNotFound, "basket not found"
	case errors.Is(err, service.ErrNotBasketOwner):
		return http.StatusForbidden, "basket belongs to another user"
	case errors.Is(err, service.ErrBasketNotOpen):
		return http.StatusConflict, "basket is no longer open"
	default:
		return http.StatusBadGateway, "failed to create checkout"
	}
}
