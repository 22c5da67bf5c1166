// Package events публикует события смены статуса заказов из outbox в Kafka.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/imageshop/internal/model"
)

const relayBatchSize = 100

// Outbox описывает хранилище неотправленных событий.
type Outbox interface {
	FetchPendingEvents(ctx context.Context, limit int) ([]model.OrderEvent, error)
	MarkEventsSent(ctx context.Context, ids []int64) error
}

// Publisher отправляет события во внешнюю систему.
type Publisher interface {
	Publish(ctx context.Context, events []model.OrderEvent) error
}

// Relay переносит события из outbox в Publisher.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	interval  time.Duration
	logger    *zap.Logger
}

// NewRelay создаёт Relay с периодом опроса interval.
func NewRelay(outbox Outbox, publisher Publisher, interval time.Duration, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
}

// Run опрашивает outbox до отмены ctx.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				n, err := r.Flush(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.Error("relay order events", zap.Error(err))
					}
					break
				}
				if n < relayBatchSize {
					break
				}
			}
		}
	}
}

// Flush отправляет одну пачку событий и возвращает их количество.
// События помечаются отправленными только после успешной публикации.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	batch, err := r.outbox.FetchPendingEvents(ctx, relayBatchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, batch); err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(batch))
	for _, e := range batch {
		ids = append(ids, e.ID)
	}
	if err := r.outbox.MarkEventsSent(ctx, ids); err != nil {
		return 0, err
	}

	r.logger.Debug("order events published", zap.Int("count", len(batch)))
	return len(batch), nil
}
