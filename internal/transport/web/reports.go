package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

func (h *Handler) topProducts(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		h.writeError(c, err)
		return
	}
	rows, err := h.svc.Reports.TopSellingProducts(c.Request.Context(), int(limit))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// revenue без параметров считает прошлый месяц; from/to задаются как YYYY-MM-DD.
func (h *Handler) revenue(c *gin.Context) {
	rawFrom, rawTo := c.Query("from"), c.Query("to")
	if rawFrom == "" && rawTo == "" {
		rep, err := h.svc.Reports.RevenueLastMonth(c.Request.Context())
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, rep)
		return
	}

	from, err := time.Parse(time.DateOnly, rawFrom)
	if err != nil {
		h.writeError(c, domain.Validationf("invalid from date %q", rawFrom))
		return
	}
	to, err := time.Parse(time.DateOnly, rawTo)
	if err != nil {
		h.writeError(c, domain.Validationf("invalid to date %q", rawTo))
		return
	}
	rep, err := h.svc.Reports.Revenue(c.Request.Context(), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) ordersPerCustomer(c *gin.Context) {
	rows, err := h.svc.Reports.OrdersPerCustomer(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) loyalCustomers(c *gin.Context) {
	minOrders, err := queryInt(c, "min", 1)
	if err != nil {
		h.writeError(c, err)
		return
	}
	rows, err := h.svc.Reports.CustomersWithMoreThan(c.Request.Context(), minOrders)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
