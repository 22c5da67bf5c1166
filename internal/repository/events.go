package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/imageshop/internal/model"
)

// FetchPendingEvents возвращает ещё не отправленные события смены статуса заказов.
func (r *PostgresRepository) FetchPendingEvents(ctx context.Context, limit int) ([]model.OrderEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, user_id, status, amount, currency, created_at
		 FROM order_events
		 WHERE sent_at IS NULL
		 ORDER BY id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending events: %w", err)
	}
	defer rows.Close()

	var res []model.OrderEvent
	for rows.Next() {
		var (
			e      model.OrderEvent
			status string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.UserID, &status, &e.Amount, &e.Currency, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Status = model.OrderStatus(status)
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkEventsSent помечает события как отправленные.
func (r *PostgresRepository) MarkEventsSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE order_events SET sent_at = now() WHERE id = ANY($1) AND sent_at IS NULL`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("mark events sent: %w", err)
	}

	return nil
}
