package domain

import (
	"strings"
	"time"
)

// Customer — покупатель.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCustomer — входные данные для регистрации покупателя.
type NewCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	City  string `json:"city"`
}

// Normalize обрезает пробелы во всех полях.
func (c NewCustomer) Normalize() NewCustomer {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.City = strings.TrimSpace(c.City)
	return c
}

// Validate проверяет обязательные поля.
func (c NewCustomer) Validate() error {
	switch {
	case c.Name == "":
		return Validationf("name is required")
	case c.Email == "":
		return Validationf("email is required")
	case c.Phone == "":
		return Validationf("phone is required")
	}
	return nil
}

// CustomerPatch обновляет телефон и/или город. Пустая строка не меняет поле.
type CustomerPatch struct {
	Phone string `json:"phone"`
	City  string `json:"city"`
}

// Normalize обрезает пробелы.
func (p CustomerPatch) Normalize() CustomerPatch {
	p.Phone = strings.TrimSpace(p.Phone)
	p.City = strings.TrimSpace(p.City)
	return p
}

// IsEmpty сообщает, что обновлять нечего.
func (p CustomerPatch) IsEmpty() bool {
	return p.Phone == "" && p.City == ""
}

// Apply возвращает копию покупателя с новыми значениями.
func (p CustomerPatch) Apply(c Customer) Customer {
	if p.Phone != "" {
		c.Phone = p.Phone
	}
	if p.City != "" {
		c.City = p.City
	}
	return c
}

// CustomerFilter — условия поиска покупателей (точное совпадение, пустое поле не фильтрует).
type CustomerFilter struct {
	Email string
	City  string
	Limit int
}
