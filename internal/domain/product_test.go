package domain

import (
	"errors"
	"testing"
)

func TestNewProductValidate(t *testing.T) {
	base := NewProduct{Name: "Pen", SKU: "P1", Price: 1000, Stock: 5}
	if err := base.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]func(p *NewProduct){
		"empty name":     func(p *NewProduct) { p.Name = "" },
		"empty sku":      func(p *NewProduct) { p.SKU = "" },
		"zero price":     func(p *NewProduct) { p.Price = 0 },
		"negative stock": func(p *NewProduct) { p.Stock = -1 },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			mut(&p)
			if err := p.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNewProductNormalize(t *testing.T) {
	p := NewProduct{Name: "  Pen ", SKU: " P1", Category: " office "}.Normalize()
	if p.Name != "Pen" || p.SKU != "P1" || p.Category != "office" {
		t.Fatalf("unexpected normalized product: %+v", p)
	}
	if err := (NewProduct{Name: "   ", SKU: "x", Price: 1}).Normalize().Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank name must be rejected, got %v", err)
	}
}

func TestProductPatchApply(t *testing.T) {
	name := " Marker "
	price := Money(250)
	product := Product{ID: 1, Name: "Pen", SKU: "P1", Price: 100, Stock: 3}

	if !(ProductPatch{}).IsEmpty() {
		t.Fatal("zero patch must be empty")
	}

	updated := ProductPatch{Name: &name, Price: &price}.Apply(product)
	if updated.Name != "Marker" || updated.Price != 250 || updated.SKU != "P1" || updated.Stock != 3 {
		t.Fatalf("unexpected patched product: %+v", updated)
	}
	if product.Name != "Pen" {
		t.Fatal("apply must not mutate the original")
	}
}

func TestCustomerValidation(t *testing.T) {
	c := NewCustomer{Name: " Ann ", Email: " ann@example.com ", Phone: "123"}.Normalize()
	if c.Email != "ann@example.com" {
		t.Fatalf("email must be trimmed: %q", c.Email)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Phone = ""
	if err := c.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing phone must fail, got %v", err)
	}
	if !(CustomerPatch{Phone: " ", City: ""}).Normalize().IsEmpty() {
		t.Fatal("blank patch must be empty")
	}
}
