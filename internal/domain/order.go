package domain

import (
	"fmt"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPlaced — заказ создан, товар списан со склада.
	OrderStatusPlaced OrderStatus = "PLACED"
	// OrderStatusCompleted — заказ оплачен.
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCancelled — заказ отменён, остатки возвращены.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus проверяет значение, прочитанное из хранилища.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch s := OrderStatus(raw); s {
	case OrderStatusPlaced, OrderStatusCompleted, OrderStatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", ErrStoreIntegrity, raw)
	}
}

// CanTransitionTo сообщает, разрешён ли переход в next.
// Из PLACED можно только оплатить или отменить, остальные статусы финальные.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPlaced && (next == OrderStatusCompleted || next == OrderStatusCancelled)
}

// Order — заголовок заказа.
type Order struct {
	ID          int64       `json:"id"`
	CustomerID  int64       `json:"customer_id"`
	TotalAmount Money       `json:"total_amount"`
	Status      OrderStatus `json:"status"`
	OrderDate   time.Time   `json:"order_date"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// OrderItem — позиция заказа. Price фиксируется в момент оформления.
type OrderItem struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	Price     Money `json:"price"`
}

// ItemRequest — запрошенная позиция при оформлении заказа.
type ItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// ValidateItems проверяет, что позиции есть и у каждой положительное количество.
func ValidateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return Validationf("order must contain at least one item")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return Validationf("quantity for product %d must be > 0, got %d", item.ProductID, item.Quantity)
		}
	}
	return nil
}

// SumQuantities складывает количества повторяющихся товаров, сохраняя порядок первого вхождения.
// Сумма, не влезающая в int64, даёт ErrValidation.
func SumQuantities(items []ItemRequest) ([]ItemRequest, error) {
	index := make(map[int64]int, len(items))
	result := make([]ItemRequest, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			sum, err := AddQuantity(result[i].Quantity, item.Quantity)
			if err != nil {
				return nil, Validationf("total quantity for product %d is too large", item.ProductID)
			}
			result[i].Quantity = sum
			continue
		}
		index[item.ProductID] = len(result)
		result = append(result, item)
	}
	return result, nil
}

// UnknownProductName подставляется, если товар позиции уже удалён из каталога.
const UnknownProductName = "Unknown"

// ItemDetail — позиция заказа вместе с текущими данными каталога.
type ItemDetail struct {
	OrderItem
	ProductName  string `json:"product_name"`
	CurrentPrice Money  `json:"current_price"`
	Subtotal     Money  `json:"subtotal"`
}

// OrderDetails — заказ с покупателем и позициями.
type OrderDetails struct {
	Order    Order        `json:"order"`
	Customer *Customer    `json:"customer"`
	Items    []ItemDetail `json:"items"`
}
