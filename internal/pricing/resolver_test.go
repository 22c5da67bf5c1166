package pricing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/mmeshcher/imageshop/internal/model"
	"github.com/mmeshcher/imageshop/internal/repository"
)

type stubCatalog struct {
	products map[uuid.UUID]*model.Product
	err      error
}

func (s *stubCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrProductNotFound, id)
	}
	return p, nil
}

func newSunsetCatalog() (*stubCatalog, uuid.UUID) {
	id := uuid.New()
	return &stubCatalog{
		products: map[uuid.UUID]*model.Product{
			id: {
				ID:   id,
				Name: "Sunset",
				Variants: []model.Variant{
					{Type: model.VariantSquare, License: model.LicensePersonal, Price: 999},
					{Type: model.VariantWide, License: model.LicenseCommercial, Price: 4999},
					{Type: model.VariantSquare, License: model.LicensePersonal, Price: 1299},
				},
			},
		},
	}, id
}

func TestResolvePrice_ReturnsCatalogPrice(t *testing.T) {
	catalog, id := newSunsetCatalog()
	r := NewResolver(catalog)

	v, err := r.ResolvePrice(context.Background(), id, model.VariantSelector{
		Type:    model.VariantWide,
		License: model.LicenseCommercial,
	})
	if err != nil {
		t.Fatalf("ResolvePrice error: %v", err)
	}
	if v.Price != 4999 {
		t.Fatalf("price = %d, want 4999", v.Price)
	}
}

func TestResolvePrice_FirstMatchWins(t *testing.T) {
	catalog, id := newSunsetCatalog()
	r := NewResolver(catalog)

	v, err := r.ResolvePrice(context.Background(), id, model.VariantSelector{
		Type:    model.VariantSquare,
		License: model.LicensePersonal,
	})
	if err != nil {
		t.Fatalf("ResolvePrice error: %v", err)
	}
	if v.Price != 999 {
		t.Fatalf("price = %d, want 999 from the first matching entry", v.Price)
	}
}

func TestResolvePrice_ReturnsCopy(t *testing.T) {
	catalog, id := newSunsetCatalog()
	r := NewResolver(catalog)

	v, err := r.ResolvePrice(context.Background(), id, model.VariantSelector{
		Type:    model.VariantSquare,
		License: model.LicensePersonal,
	})
	if err != nil {
		t.Fatalf("ResolvePrice error: %v", err)
	}

	catalog.products[id].Variants[0].Price = 1
	if v.Price != 999 {
		t.Fatalf("resolved variant changed with catalog edit: %d", v.Price)
	}
}

func TestResolvePrice_Errors(t *testing.T) {
	catalog, id := newSunsetCatalog()
	r := NewResolver(catalog)

	_, err := r.ResolvePrice(context.Background(), uuid.New(), model.VariantSelector{
		Type:    model.VariantSquare,
		License: model.LicensePersonal,
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("error = %v, want ErrProductNotFound", err)
	}

	_, err = r.ResolvePrice(context.Background(), id, model.VariantSelector{
		Type:    model.VariantPortrait,
		License: model.LicensePersonal,
	})
	if !errors.Is(err, ErrVariantNotOffered) {
		t.Fatalf("error = %v, want ErrVariantNotOffered", err)
	}

	dbErr := errors.New("connection reset by peer")
	r = NewResolver(&stubCatalog{err: dbErr})
	_, err = r.ResolvePrice(context.Background(), id, model.VariantSelector{})
	if !errors.Is(err, dbErr) || errors.Is(err, ErrProductNotFound) {
		t.Fatalf("error = %v, want wrapped catalog error", err)
	}
}
