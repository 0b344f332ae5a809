package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nelc/ecommerce-hyperpay/internal/config"
	"github.com/nelc/ecommerce-hyperpay/internal/handlers"
	"github.com/nelc/ecommerce-hyperpay/internal/interfaces"
	"github.com/nelc/ecommerce-hyperpay/internal/telemetry"
)

func NewRouter(flow interfaces.PaymentFlow, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"service":    "ecommerce-hyperpay",
			"processors": cfg.ProcessorNames(),
		})
	})

	checkoutHandler := handlers.NewCheckoutHandler(flow)
	callbackHandler := handlers.NewCallbackHandler(flow, cfg.ReceiptPageURL, cfg.ErrorPageURL)

	api := r.Group("/api/v1")
	api.POST("/checkouts", checkoutHandler.CreateCheckout)

	// Browser-facing flow. The submit route is the return_url registered
	// with HyperPay; it must accept both methods the gateway uses.
	payment := r.Group("/payment/:processor")
	payment.GET("/pay/:basket_id", checkoutHandler.PaymentPage)
	payment.GET("/submit", callbackHandler.Submit)
	payment.POST("/submit", callbackHandler.Submit)
	payment.GET("/status", callbackHandler.StatusCheck)

	return r
}
