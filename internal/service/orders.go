package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/imageshop/internal/gateway"
	"github.com/mmeshcher/imageshop/internal/model"
	"github.com/mmeshcher/imageshop/internal/repository"
)

// ErrUnauthenticated возвращается, если пользователь не определён.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnknownOrder возвращается, если подтверждение оплаты ссылается на неизвестный заказ.
	ErrUnknownOrder = errors.New("unknown order")
	// ErrIdempotencyKeyReused возвращается, если ключ идемпотентности уже использован для другого заказа.
	ErrIdempotencyKeyReused = errors.New("idempotency key reused")
	// ErrIdempotencyInProgress возвращается, если заказ с тем же ключом ещё создаётся.
	ErrIdempotencyInProgress = errors.New("order with this idempotency key is in progress")
)

// CreateOrderResult данные, необходимые клиенту для перехода к оплате.
type CreateOrderResult struct {
	OrderID         uuid.UUID
	Amount          int64
	Currency        string
	GatewayOrderRef string
	Replayed        bool
}

// CreateOrder создаёт заказ на вариант товара. Цена всегда берётся из каталога.
// Сначала сохраняется предварительная запись в статусе pending, затем создаётся платёжное
// намерение. Если шлюз вернул ошибку, заказ переводится в failed.
func (s *Service) CreateOrder(ctx context.Context, userID int64, productID uuid.UUID, sel model.VariantSelector, idempotencyKey string) (*CreateOrderResult, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}

	variant, err := s.prices.ResolvePrice(ctx, productID, sel)
	if err != nil {
		return nil, err
	}

	order, existed, err := s.repo.CreateOrder(ctx, &model.Order{
		ID:             uuid.New(),
		UserID:         userID,
		ProductID:      productID,
		Variant:        variant,
		Amount:         variant.Price,
		Currency:       s.opts.Currency,
		IdempotencyKey: idempotencyKey,
		Status:         model.OrderStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if existed {
		return s.replayOrder(order, productID, sel)
	}

	log := s.logger.With(
		zap.String("order", order.ID.String()),
		zap.Int64("userID", userID),
	)

	ref, err := s.gateway.CreateIntent(ctx, order.Amount, order.Currency, order.ID.String())
	if err != nil {
		s.metrics.IncGatewayError(gateway.ErrorKind(err))
		log.Error("create payment intent", zap.Error(err))

		if _, casErr := s.repo.CompareAndSetStatus(context.WithoutCancel(ctx), order.ID, model.OrderStatusPending, model.OrderStatusFailed); casErr != nil {
			log.Error("mark order failed after gateway error", zap.Error(casErr))
		}
		return nil, err
	}

	if err := s.repo.AttachGatewayRef(ctx, order.ID, ref); err != nil {
		// Намерение в шлюзе осталось без заказа, запись разберёт фоновая проверка.
		log.Error("attach gateway ref, intent orphaned", zap.String("gatewayRef", ref), zap.Error(err))
		return nil, fmt.Errorf("attach gateway ref: %w", err)
	}

	s.metrics.IncOrdersCreated()
	log.Info("order created", zap.String("gatewayRef", ref), zap.Int64("amount", order.Amount))

	return &CreateOrderResult{
		OrderID:         order.ID,
		Amount:          order.Amount,
		Currency:        order.Currency,
		GatewayOrderRef: ref,
	}, nil
}

func (s *Service) replayOrder(existing *model.Order, productID uuid.UUID, sel model.VariantSelector) (*CreateOrderResult, error) {
	if existing.ProductID != productID || !sel.Matches(existing.Variant) {
		return nil, fmt.Errorf("%w: key %q belongs to order %s", ErrIdempotencyKeyReused, existing.IdempotencyKey, existing.ID)
	}

	if existing.GatewayOrderRef == "" {
		if existing.Status == model.OrderStatusFailed {
			return nil, fmt.Errorf("%w: order %s failed, retry with a new key", ErrIdempotencyKeyReused, existing.ID)
		}
		return nil, fmt.Errorf("%w: order %s", ErrIdempotencyInProgress, existing.ID)
	}

	return &CreateOrderResult{
		OrderID:         existing.ID,
		Amount:          existing.Amount,
		Currency:        existing.Currency,
		GatewayOrderRef: existing.GatewayOrderRef,
		Replayed:        true,
	}, nil
}

// Reconcile применяет подтверждение оплаты от шлюза к журналу заказов.
// Повторные подтверждения по уже завершённому заказу ничего не меняют.
func (s *Service) Reconcile(ctx context.Context, payload []byte, signature string) error {
	conf, err := s.gateway.VerifyConfirmation(payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrUnsupportedEvent):
			s.metrics.IncReconciliation("ignored")
			s.logger.Debug("confirmation ignored", zap.Error(err))
			return nil
		case errors.Is(err, gateway.ErrInvalidSignature):
			s.metrics.IncReconciliation("invalid_signature")
			s.logger.Warn("confirmation rejected: invalid signature", zap.Int("payloadSize", len(payload)))
		default:
			s.metrics.IncReconciliation("malformed")
			s.logger.Warn("confirmation rejected", zap.Error(err))
		}
		return err
	}

	log := s.logger.With(
		zap.String("gatewayRef", conf.GatewayOrderRef),
		zap.String("event", conf.Event),
	)

	order, err := s.repo.GetOrderByGatewayRef(ctx, conf.GatewayOrderRef)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			s.metrics.IncReconciliation("unknown_order")
			log.Warn("confirmation for unknown order")
			return fmt.Errorf("%w: %s", ErrUnknownOrder, conf.GatewayOrderRef)
		}
		return fmt.Errorf("find order by gateway ref: %w", err)
	}

	log = log.With(zap.String("order", order.ID.String()))

	if order.Status != model.OrderStatusPending {
		s.metrics.IncReconciliation("duplicate")
		log.Info("duplicate confirmation", zap.String("status", string(order.Status)))
		return nil
	}

	next := model.OrderStatusFailed
	if conf.Outcome == gateway.OutcomeSuccess {
		if conf.Amount == order.Amount && strings.EqualFold(conf.Currency, order.Currency) {
			next = model.OrderStatusCompleted
		} else {
			log.Warn("captured payment mismatch",
				zap.Int64("captured", conf.Amount),
				zap.String("capturedCurrency", conf.Currency),
				zap.Int64("expected", order.Amount),
				zap.String("expectedCurrency", order.Currency),
			)
		}
	}

	swapped, err := s.repo.CompareAndSetStatus(ctx, order.ID, model.OrderStatusPending, next)
	if err != nil {
		log.Error("update order status", zap.Error(err))
		return fmt.Errorf("update order status: %w", err)
	}
	if !swapped {
		s.metrics.IncReconciliation("duplicate")
		log.Info("order resolved concurrently")
		return nil
	}

	s.metrics.IncReconciliation(string(next))
	log.Info("order reconciled", zap.String("status", string(next)))

	return nil
}
