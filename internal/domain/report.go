package domain

import "time"

// ProductSales — суммарное проданное количество по товару.
type ProductSales struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"total_quantity"`
}

// CustomerOrderCount — число заказов покупателя.
type CustomerOrderCount struct {
	CustomerID int64  `json:"customer_id"`
	Name       string `json:"name"`
	Orders     int64  `json:"order_count"`
}

// RevenueReport — выручка по оплаченным заказам за период [From, To).
type RevenueReport struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Total Money     `json:"total"`
}
