// Package pricing определяет авторитетную цену варианта товара по данным каталога.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmeshcher/imageshop/internal/model"
	"github.com/mmeshcher/imageshop/internal/repository"
)

// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
var (
	ErrProductNotFound = errors.New("product not found")
	// ErrVariantNotOffered возвращается, если у товара нет запрошенной пары формат/лицензия.
	ErrVariantNotOffered = errors.New("variant not offered")
)

// Catalog описывает чтение товара из каталога.
type Catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
}

// Resolver находит вариант товара и его цену. Цена от клиента никогда не используется.
type Resolver struct {
	catalog Catalog
}

// NewResolver создаёт Resolver поверх каталога.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// ResolvePrice возвращает копию варианта каталога, соответствующего выбору клиента.
// Если одна и та же пара формат/лицензия встречается несколько раз, используется первая.
func (r *Resolver) ResolvePrice(ctx context.Context, productID uuid.UUID, sel model.VariantSelector) (model.Variant, error) {
	product, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return model.Variant{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return model.Variant{}, fmt.Errorf("get product %s: %w", productID, err)
	}

	for _, v := range product.Variants {
		if sel.Matches(v) {
			return v, nil
		}
	}

	return model.Variant{}, fmt.Errorf("%w: %s/%s for product %s", ErrVariantNotOffered, sel.Type, sel.License, productID)
}
