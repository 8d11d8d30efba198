// Package web отдаёт HTML-страницу каталога и JSON API поверх сервисов.
package web

import (
	"embed"
	"html/template"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/service/catalog"
	"github.com/vladislavdragonenkov/retail/internal/service/customer"
	"github.com/vladislavdragonenkov/retail/internal/service/order"
	"github.com/vladislavdragonenkov/retail/internal/service/payment"
	"github.com/vladislavdragonenkov/retail/internal/service/report"
)

//go:embed templates/*.html
var templatesFS embed.FS

// APIPrefix — префикс JSON API.
const APIPrefix = "/api/v1"

// Services — сервисы, которые обслуживает HTTP-слой.
type Services struct {
	Catalog   *catalog.Service
	Customers *customer.Service
	Orders    *order.Service
	Payments  *payment.Service
	Reports   *report.Service
}

// Handler связывает HTTP-запросы с сервисами.
type Handler struct {
	svc    Services
	logger *log.Entry
}

// NewRouter собирает gin.Engine со страницей каталога и API.
func NewRouter(svc Services, logger *log.Entry) *gin.Engine {
	if logger == nil {
		logger = log.WithField("component", "web")
	}
	h := &Handler{svc: svc, logger: logger}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	router.SetHTMLTemplate(template.Must(template.New("").Funcs(template.FuncMap{
		"money": formatMoney,
	}).ParseFS(templatesFS, "templates/*.html")))

	router.GET("/", h.index)
	router.POST("/products", h.submitProduct)

	api := router.Group(APIPrefix)
	addProductRoutes(api, h)
	addCustomerRoutes(api, h)
	addOrderRoutes(api, h)
	addReportRoutes(api, h)

	return router
}

func addProductRoutes(rg *gin.RouterGroup, h *Handler) {
	products := rg.Group("/products")
	{
		products.GET("", h.listProducts)
		products.POST("", h.createProduct)
		products.GET("/search", h.searchProducts)
		products.GET("/low-stock", h.lowStock)
		products.GET("/:id", h.getProduct)
		products.PATCH("/:id", h.updateProduct)
		products.DELETE("/:id", h.deleteProduct)
		products.POST("/:id/restock", h.restockProduct)
		products.POST("/:id/reduce", h.reduceStock)
	}
}

func addCustomerRoutes(rg *gin.RouterGroup, h *Handler) {
	customers := rg.Group("/customers")
	{
		customers.GET("", h.listCustomers)
		customers.POST("", h.createCustomer)
		customers.GET("/search", h.searchCustomers)
		customers.GET("/:id", h.getCustomer)
		customers.PATCH("/:id", h.updateCustomer)
		customers.DELETE("/:id", h.deleteCustomer)
		customers.GET("/:id/orders", h.listCustomerOrders)
	}
}

func addOrderRoutes(rg *gin.RouterGroup, h *Handler) {
	orders := rg.Group("/orders")
	{
		orders.POST("", h.createOrder)
		orders.GET("/:id", h.getOrder)
		orders.GET("/:id/timeline", h.orderTimeline)
		orders.POST("/:id/cancel", h.cancelOrder)
		orders.POST("/:id/pay", h.payOrder)
		orders.POST("/:id/refund", h.refundOrder)
	}
}

func addReportRoutes(rg *gin.RouterGroup, h *Handler) {
	reports := rg.Group("/reports")
	{
		reports.GET("/top-products", h.topProducts)
		reports.GET("/revenue", h.revenue)
		reports.GET("/orders-per-customer", h.ordersPerCustomer)
		reports.GET("/loyal-customers", h.loyalCustomers)
	}
}

// requestLogger пишет каждый запрос в logrus.
func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("http request failed")
			return
		}
		entry.Debug("http request")
	}
}
