package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmeshcher/imageshop/internal/model"
	"github.com/mmeshcher/imageshop/internal/repository"
)

// MissingProductName название, которое показывается вместо удалённого из каталога товара.
const MissingProductName = "Product no longer available"

// ListOrders возвращает заказы пользователя, начиная с самых новых, вместе с краткими данными
// о товаре. Ссылка на скачивание есть только у оплаченных заказов.
func (s *Service) ListOrders(ctx context.Context, userID int64) ([]model.OrderView, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}

	orders, err := s.repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	summaries := make(map[uuid.UUID]model.ProductSummary)
	views := make([]model.OrderView, 0, len(orders))

	for _, o := range orders {
		summary, ok := summaries[o.ProductID]
		if !ok {
			summary, err = s.productSummary(ctx, o.ProductID)
			if err != nil {
				return nil, err
			}
			summaries[o.ProductID] = summary
		}

		view := model.OrderView{Order: o, Product: summary}
		if o.Status == model.OrderStatusCompleted && !summary.Missing {
			view.DownloadURL = summary.ImageURL
		}
		views = append(views, view)
	}

	return views, nil
}

func (s *Service) productSummary(ctx context.Context, id uuid.UUID) (model.ProductSummary, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return model.ProductSummary{ID: id, Name: MissingProductName, Missing: true}, nil
		}
		return model.ProductSummary{}, fmt.Errorf("get product %s: %w", id, err)
	}

	return model.ProductSummary{ID: p.ID, Name: p.Name, ImageURL: p.ImageURL}, nil
}

// GetOrder возвращает заказ пользователя. Чужие заказы не видны.
func (s *Service) GetOrder(ctx context.Context, userID int64, orderID uuid.UUID) (*model.OrderView, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}

	o, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("%w: %s", repository.ErrOrderNotFound, orderID)
	}

	summary, err := s.productSummary(ctx, o.ProductID)
	if err != nil {
		return nil, err
	}

	view := &model.OrderView{Order: *o, Product: summary}
	if o.Status == model.OrderStatusCompleted && !summary.Missing {
		view.DownloadURL = summary.ImageURL
	}
	return view, nil
}
