// Package service реализует бизнес-логику магазина изображений: учётные записи, каталог,
// жизненный цикл заказа и оплаты, выдачу купленных изображений.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/imageshop/internal/gateway"
	"github.com/mmeshcher/imageshop/internal/metrics"
	"github.com/mmeshcher/imageshop/internal/model"
	"github.com/mmeshcher/imageshop/internal/pricing"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)

	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context, search string) ([]model.Product, error)

	CreateOrder(ctx context.Context, o *model.Order) (*model.Order, bool, error)
	AttachGatewayRef(ctx context.Context, id uuid.UUID, ref string) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetOrderByGatewayRef(ctx context.Context, ref string) (*model.Order, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next model.OrderStatus) (bool, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListStalePendingOrders(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error)
}

// Gateway описывает платёжный шлюз.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency, receipt string) (string, error)
	VerifyConfirmation(payload []byte, signature string) (gateway.Confirmation, error)
	FetchIntentStatus(ctx context.Context, ref string) (gateway.IntentStatus, error)
}

// Options параметры бизнес-логики.
type Options struct {
	Currency      string
	PendingTTL    time.Duration
	SweepInterval time.Duration
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo    Repository
	prices  *pricing.Resolver
	gateway Gateway
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options
	now     func() time.Time
}

// NewService создаёт сервис поверх репозитория и платёжного шлюза.
func NewService(repo Repository, gw Gateway, logger *zap.Logger, m *metrics.Metrics, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = time.Hour
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}

	return &Service{
		repo:    repo,
		prices:  pricing.NewResolver(repo),
		gateway: gw,
		metrics: m,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
