package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/imageshop/internal/model"
	"github.com/mmeshcher/imageshop/internal/pricing"
	"github.com/mmeshcher/imageshop/internal/repository"
	"github.com/mmeshcher/imageshop/internal/validation"
)

// ListProducts возвращает товары каталога, название которых начинается с search.
func (s *Service) ListProducts(ctx context.Context, search string) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, search)
}

// GetProduct возвращает товар каталога.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s", pricing.ErrProductNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

// CreateProduct проверяет и сохраняет новый товар.
func (s *Service) CreateProduct(ctx context.Context, in validation.ProductInput) (*model.Product, error) {
	p, err := validation.ParseProduct(in)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.Info("product created",
		zap.String("product", created.ID.String()),
		zap.Int("variants", len(created.Variants)),
	)

	return created, nil
}
