package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/imageshop/internal/model"
)

const orderColumns = `id, user_id, product_id, variant_type, variant_license, variant_price,
	amount, currency, gateway_order_ref, idempotency_key, status, created_at, resolved_at`

// CreateOrder сохраняет новый заказ в статусе pending. Если у пользователя уже есть заказ
// с тем же ключом идемпотентности, возвращает существующий заказ и признак true.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, bool, error) {
	if o.Status != model.OrderStatusPending {
		return nil, false, fmt.Errorf("%w: new order must be pending, got %s", ErrInvalidTransition, o.Status)
	}

	created := *o
	err := r.pool.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, product_id, variant_type, variant_license, variant_price,
		                     amount, currency, idempotency_key, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT ON CONSTRAINT orders_user_idempotency_key DO NOTHING
		 RETURNING created_at`,
		o.ID, o.UserID, o.ProductID,
		string(o.Variant.Type), string(o.Variant.License), o.Variant.Price,
		o.Amount, o.Currency, nullString(o.IdempotencyKey), string(o.Status),
	).Scan(&created.CreatedAt)
	if err == nil {
		return &created, false, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert order: %w", err)
	}

	existing, err := r.scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND idempotency_key = $2`,
		o.UserID, o.IdempotencyKey,
	))
	if err != nil {
		return nil, false, fmt.Errorf("select order by idempotency key: %w", err)
	}

	return existing, true, nil
}

// AttachGatewayRef записывает ссылку платёжного шлюза. Ссылку можно записать только один раз.
func (r *PostgresRepository) AttachGatewayRef(ctx context.Context, id uuid.UUID, ref string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET gateway_order_ref = $2 WHERE id = $1 AND gateway_order_ref IS NULL`,
		id, ref,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s used by another order", ErrGatewayRefAlreadySet, ref)
		}
		return fmt.Errorf("attach gateway ref: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s", ErrGatewayRefAlreadySet, id)
	}

	return nil
}

// GetOrderByID возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	o, err := r.scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// GetOrderByGatewayRef возвращает заказ по ссылке платёжного шлюза.
func (r *PostgresRepository) GetOrderByGatewayRef(ctx context.Context, ref string) (*model.Order, error) {
	o, err := r.scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE gateway_order_ref = $1`,
		ref,
	))
	if err != nil {
		return nil, fmt.Errorf("get order by gateway ref %s: %w", ref, err)
	}
	return o, nil
}

// CompareAndSetStatus переводит заказ из expected в next, только если текущий статус равен expected.
// Это единственный способ изменить статус заказа. При успешном переходе в той же транзакции
// записывается событие в outbox.
func (r *PostgresRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next model.OrderStatus) (bool, error) {
	if expected != model.OrderStatusPending || !next.IsTerminal() {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, expected, next)
	}

	var swapped bool
	err := r.withRetry(ctx, func(ctx context.Context) error {
		swapped = false

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var (
			userID   int64
			amount   int64
			currency string
		)
		err = tx.QueryRow(ctx,
			`UPDATE orders SET status = $3, resolved_at = now()
			 WHERE id = $1 AND status = $2
			 RETURNING user_id, amount, currency`,
			id, string(expected), string(next),
		).Scan(&userID, &amount, &currency)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("update order status: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO order_events (order_id, user_id, status, amount, currency) VALUES ($1, $2, $3, $4, $5)`,
			id, userID, string(next), amount, currency,
		)
		if err != nil {
			return fmt.Errorf("insert order event: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		swapped = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return swapped, nil
}

// ListOrdersByUser возвращает заказы пользователя, начиная с самых новых.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(rows)
}

// ListStalePendingOrders возвращает заказы в статусе pending, созданные раньше olderThan.
func (r *PostgresRepository) ListStalePendingOrders(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at
		 LIMIT $3`,
		string(model.OrderStatusPending), olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select stale pending orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(rows)
}

func (r *PostgresRepository) collectOrders(rows pgx.Rows) ([]model.Order, error) {
	var orders []model.Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o              model.Order
		vType          string
		license        string
		gatewayRef     *string
		idempotencyKey *string
		status         string
	)

	err := row.Scan(
		&o.ID, &o.UserID, &o.ProductID, &vType, &license, &o.Variant.Price,
		&o.Amount, &o.Currency, &gatewayRef, &idempotencyKey, &status, &o.CreatedAt, &o.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	o.Variant.Type = model.VariantType(vType)
	o.Variant.License = model.License(license)
	o.Status = model.OrderStatus(status)
	if gatewayRef != nil {
		o.GatewayOrderRef = *gatewayRef
	}
	if idempotencyKey != nil {
		o.IdempotencyKey = *idempotencyKey
	}

	return &o, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
