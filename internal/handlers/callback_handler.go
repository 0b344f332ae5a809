package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nelc/ecommerce-hyperpay/internal/interfaces"
	"github.com/nelc/ecommerce-hyperpay/internal/models"
	"github.com/nelc/ecommerce-hyperpay/internal/telemetry"
)

const pendingPageHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Interval}}">
<title>Payment pending</title>
</head>
<body>
<h1>Your payment is being processed</h1>
<p>This page refreshes every {{.Interval}} seconds. Please do not pay again or close this window.</p>
</body>
</html>
`

var pendingPageTmpl = template.Must(template.New("pending").Parse(pendingPageHTML))

// CallbackHandler terminates the two gateway-facing browser flows: the
// return redirect after the widget and the tokenized status re-check.
type CallbackHandler struct {
	flow       interfaces.PaymentFlow
	receiptURL string
	errorURL   string
}

func NewCallbackHandler(flow interfaces.PaymentFlow, receiptURL, errorURL string) *CallbackHandler {
	return &CallbackHandler{
		flow:       flow,
		receiptURL: receiptURL,
		errorURL:   errorURL,
	}
}

// Submit handles the gateway return URL. HyperPay sends the browser here
// with the resource path to poll in the query string.
func (h *CallbackHandler) Submit(c *gin.Context) {
	processor := c.Param("processor")
	if !h.flow.HasProcessor(processor) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown payment processor"})
		return
	}

	req := models.CallbackRequest{
		Processor:    processor,
		ResourcePath: c.Query("resourcePath"),
		Query:        c.Request.URL.Query(),
		User:         userFromRequest(c),
		SessionID:    sessionID(c),
	}
	res := h.flow.SubmitCallback(c.Request.Context(), req)
	h.render(c, processor, res)
}

// StatusCheck handles the re-check URL a pending payment was parked on.
func (h *CallbackHandler) StatusCheck(c *gin.Context) {
	processor := c.Param("processor")
	if !h.flow.HasProcessor(processor) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown payment processor"})
		return
	}

	req := models.CallbackRequest{
		Processor: processor,
		Query:     c.Request.URL.Query(),
		User:      userFromRequest(c),
		SessionID: sessionID(c),
	}
	res := h.flow.StatusCheck(c.Request.Context(), req, c.Query("token"))
	h.render(c, processor, res)
}

func (h *CallbackHandler) render(c *gin.Context, processor string, res *models.Resolution) {
	switch res.Kind {
	case models.DispositionReceiptRedirect:
		c.Redirect(http.StatusFound, h.receiptRedirect(res.OrderNumber))
	case models.DispositionStatusCheckRedirect:
		c.Redirect(http.StatusFound, fmt.Sprintf("/payment/%s/status?token=%s", processor, url.QueryEscape(res.Token)))
	case models.DispositionPendingPage:
		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/html; charset=utf-8")
		if err := pendingPageTmpl.Execute(c.Writer, gin.H{"Interval": res.PollIntervalSeconds}); err != nil {
			telemetry.Logger.Error("Failed to render pending page", zap.Error(err))
		}
	default:
		c.Redirect(http.StatusFound, h.errorURL)
	}
}

func (h *CallbackHandler) receiptRedirect(orderNumber string) string {
	target, err := url.Parse(h.receiptURL)
	if err != nil {
		return h.receiptURL
	}
	query := target.Query()
	query.Set("order_number", orderNumber)
	target.RawQuery = query.Encode()
	return target.String()
}
