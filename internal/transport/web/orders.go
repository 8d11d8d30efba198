package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type createOrderRequest struct {
	CustomerID int64                `json:"customer_id"`
	Items      []domain.ItemRequest `json:"items"`
}

type payRequest struct {
	Method string `json:"method"`
}

const (
	// IdempotencyKeyHeader — заголовок с ключом повторного запроса.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader выставляется, если ответ взят из сохранённого первого запроса.
	ReplayedHeader = "Idempotent-Replayed"
)

func markReplayed(c *gin.Context, replayed bool) {
	if replayed {
		c.Header(ReplayedHeader, "true")
	}
}

func (h *Handler) createOrder(c *gin.Context) {
	var payload createOrderRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}
	var (
		details  domain.OrderDetails
		replayed bool
		err      error
	)
	if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
		details, replayed, err = h.svc.Orders.CreateOrderOnce(c.Request.Context(), key, payload.CustomerID, payload.Items)
	} else {
		details, err = h.svc.Orders.CreateOrder(c.Request.Context(), payload.CustomerID, payload.Items)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	markReplayed(c, replayed)
	c.JSON(http.StatusCreated, details)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	details, err := h.svc.Orders.GetOrderDetails(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) orderTimeline(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	events, err := h.svc.Orders.Timeline(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	order, err := h.svc.Orders.CancelOrder(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) payOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var payload payRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.badRequest(c, err)
		return
	}
	var (
		payment  domain.Payment
		replayed bool
	)
	if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
		payment, replayed, err = h.svc.Payments.PayOnce(c.Request.Context(), key, id, payload.Method)
	} else {
		payment, err = h.svc.Payments.Pay(c.Request.Context(), id, payload.Method)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	markReplayed(c, replayed)
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) refundOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	payment, err := h.svc.Payments.Refund(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
