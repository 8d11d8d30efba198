package domain

import (
	"strings"
	"time"
)

// Product — товарная позиция каталога.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Price     Money     `json:"price"`
	Stock     int64     `json:"stock"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate проверяет инварианты товара (используется и для строк из хранилища).
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return Validationf("name is required")
	}
	if strings.TrimSpace(p.SKU) == "" {
		return Validationf("sku is required")
	}
	if p.Price <= 0 {
		return Validationf("price must be > 0, got %s", p.Price)
	}
	if p.Stock < 0 {
		return Validationf("stock must be >= 0, got %d", p.Stock)
	}
	return nil
}

// NewProduct — входные данные для добавления товара.
type NewProduct struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Price    Money  `json:"price"`
	Stock    int64  `json:"stock"`
	Category string `json:"category"`
}

// Normalize обрезает пробелы во всех строковых полях.
func (p NewProduct) Normalize() NewProduct {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)
	p.Category = strings.TrimSpace(p.Category)
	return p
}

// Validate проверяет обязательные поля и диапазоны.
func (p NewProduct) Validate() error {
	return Product{Name: p.Name, SKU: p.SKU, Price: p.Price, Stock: p.Stock}.Validate()
}

// ProductPatch описывает частичное обновление товара. nil — поле не меняется.
type ProductPatch struct {
	Name     *string `json:"name,omitempty"`
	SKU      *string `json:"sku,omitempty"`
	Price    *Money  `json:"price,omitempty"`
	Stock    *int64  `json:"stock,omitempty"`
	Category *string `json:"category,omitempty"`
}

// IsEmpty сообщает, что в патче нет ни одного поля.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.SKU == nil && p.Price == nil && p.Stock == nil && p.Category == nil
}

// Apply возвращает копию товара с применёнными полями патча.
func (p ProductPatch) Apply(product Product) Product {
	if p.Name != nil {
		product.Name = strings.TrimSpace(*p.Name)
	}
	if p.SKU != nil {
		product.SKU = strings.TrimSpace(*p.SKU)
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.Category != nil {
		product.Category = strings.TrimSpace(*p.Category)
	}
	return product
}

// ProductFilter ограничивает выборку товаров. Пустые поля не фильтруют.
type ProductFilter struct {
	Category string
	// NameContains — подстрока названия без учёта регистра.
	NameContains string
	// MaxStock — верхняя граница остатка (для отчёта о заканчивающихся товарах).
	MaxStock *int64
	Limit    int
}
