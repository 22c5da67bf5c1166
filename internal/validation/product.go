// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/imageshop/internal/model"
)

// ErrInvalidProduct возвращается, если данные товара не прошли проверку.
var ErrInvalidProduct = errors.New("invalid product")

// VariantInput описывает вариант товара в том виде, в каком его прислал администратор.
type VariantInput struct {
	Type    string
	License string
	Price   decimal.Decimal
}

// ProductInput описывает данные для создания товара.
type ProductInput struct {
	Name        string
	Description string
	ImageURL    string
	Variants    []VariantInput
}

// ParseVariant проверяет вариант и переводит цену в минимальные единицы.
func ParseVariant(in VariantInput) (model.Variant, error) {
	vt, ok := model.ParseVariantType(in.Type)
	if !ok {
		return model.Variant{}, fmt.Errorf("%w: unknown variant type %q", ErrInvalidProduct, in.Type)
	}

	license, ok := model.ParseLicense(in.License)
	if !ok {
		return model.Variant{}, fmt.Errorf("%w: unknown license %q", ErrInvalidProduct, in.License)
	}

	price, err := model.ToMinorUnits(in.Price)
	if err != nil {
		return model.Variant{}, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}

	return model.Variant{Type: vt, License: license, Price: price}, nil
}

// ParseProduct проверяет обязательные поля товара и список вариантов.
func ParseProduct(in ProductInput) (model.Product, error) {
	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)
	imageURL := strings.TrimSpace(in.ImageURL)

	if name == "" || description == "" || imageURL == "" {
		return model.Product{}, fmt.Errorf("%w: name, description and image url are required", ErrInvalidProduct)
	}

	if !IsValidImageURL(imageURL) {
		return model.Product{}, fmt.Errorf("%w: image url must be an absolute http(s) url", ErrInvalidProduct)
	}

	if len(in.Variants) == 0 {
		return model.Product{}, fmt.Errorf("%w: at least one variant is required", ErrInvalidProduct)
	}

	variants := make([]model.Variant, 0, len(in.Variants))
	for i, v := range in.Variants {
		parsed, err := ParseVariant(v)
		if err != nil {
			return model.Product{}, fmt.Errorf("variant %d: %w", i, err)
		}
		variants = append(variants, parsed)
	}

	return model.Product{
		Name:        name,
		Description: description,
		ImageURL:    imageURL,
		Variants:    variants,
	}, nil
}

// IsValidImageURL проверяет, что ссылка на изображение абсолютная и использует http или https.
func IsValidImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
