package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/imageshop/internal/gateway"
	"github.com/mmeshcher/imageshop/internal/model"
)

const sweepBatchSize = 100

// StartPendingSweep периодически разбирает зависшие заказы в статусе pending.
// Блокируется до отмены ctx.
func (s *Service) StartPendingSweep(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepPending(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("sweep pending orders", zap.Error(err))
			}
		}
	}
}

// SweepPending переводит в терминальный статус заказы, находящиеся в pending дольше PendingTTL.
// Заказ без ссылки шлюза считается неоплаченным. Заказ со ссылкой сверяется со шлюзом;
// при ошибке шлюза заказ остаётся в pending до следующего прохода.
func (s *Service) SweepPending(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.opts.PendingTTL)

	orders, err := s.repo.ListStalePendingOrders(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, o := range orders {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}

		log := s.logger.With(zap.String("order", o.ID.String()), zap.String("gatewayRef", o.GatewayOrderRef))

		next := model.OrderStatusFailed
		if o.GatewayOrderRef != "" {
			if s.gateway == nil {
				continue
			}
			status, err := s.gateway.FetchIntentStatus(ctx, o.GatewayOrderRef)
			if err != nil {
				s.metrics.IncGatewayError(gateway.ErrorKind(err))
				log.Warn("fetch intent status", zap.Error(err))
				continue
			}
			if status == gateway.IntentPaid {
				next = model.OrderStatusCompleted
			}
		}

		swapped, err := s.repo.CompareAndSetStatus(ctx, o.ID, model.OrderStatusPending, next)
		if err != nil {
			log.Error("resolve stale order", zap.Error(err))
			continue
		}
		if !swapped {
			continue
		}

		resolved++
		s.metrics.IncSwept(string(next))
		log.Info("stale order resolved", zap.String("status", string(next)))
	}

	return resolved, nil
}
