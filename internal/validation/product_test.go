package validation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/imageshop/internal/model"
)

func validInput() ProductInput {
	return ProductInput{
		Name:        "Sunset",
		Description: "Golden hour over the bay",
		ImageURL:    "https://ik.imagekit.io/shop/sunset.jpg",
		Variants: []VariantInput{
			{Type: "square", License: "personal", Price: decimal.RequireFromString("9.99")},
			{Type: "WIDE", License: "Commercial", Price: decimal.RequireFromString("24.50")},
		},
	}
}

func TestParseProduct_Valid(t *testing.T) {
	p, err := ParseProduct(validInput())
	if err != nil {
		t.Fatalf("ParseProduct error: %v", err)
	}
	if len(p.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(p.Variants))
	}
	want := model.Variant{Type: model.VariantSquare, License: model.LicensePersonal, Price: 999}
	if p.Variants[0] != want {
		t.Fatalf("variant[0] = %+v, want %+v", p.Variants[0], want)
	}
	if p.Variants[1].Price != 2450 || p.Variants[1].License != model.LicenseCommercial {
		t.Fatalf("variant[1] = %+v", p.Variants[1])
	}
}

func TestParseProduct_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *ProductInput)
	}{
		{
			name:   "missing name",
			mutate: func(in *ProductInput) { in.Name = "  " },
		},
		{
			name:   "relative image url",
			mutate: func(in *ProductInput) { in.ImageURL = "/images/sunset.jpg" },
		},
		{
			name:   "no variants",
			mutate: func(in *ProductInput) { in.Variants = nil },
		},
		{
			name:   "unknown type",
			mutate: func(in *ProductInput) { in.Variants[0].Type = "panorama" },
		},
		{
			name:   "unknown license",
			mutate: func(in *ProductInput) { in.Variants[0].License = "exclusive" },
		},
		{
			name:   "zero price",
			mutate: func(in *ProductInput) { in.Variants[1].Price = decimal.Zero },
		},
		{
			name:   "sub-cent price",
			mutate: func(in *ProductInput) { in.Variants[1].Price = decimal.RequireFromString("0.001") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := ParseProduct(in)
			if !errors.Is(err, ErrInvalidProduct) {
				t.Fatalf("ParseProduct error = %v, want ErrInvalidProduct", err)
			}
		})
	}
}
