package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/imageshop/internal/model"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CreateProduct сохраняет товар вместе с вариантами в одной транзакции.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO products (id, name, description, image_url) VALUES ($1, $2, $3, $4) RETURNING created_at`,
			p.ID, p.Name, p.Description, p.ImageURL,
		).Scan(&p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}

		batch := &pgx.Batch{}
		for i, v := range p.Variants {
			batch.Queue(
				`INSERT INTO product_variants (product_id, position, type, license, price) VALUES ($1, $2, $3, $4, $5)`,
				p.ID, i, string(v.Type), string(v.License), v.Price,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert variants: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// GetProduct возвращает товар с вариантами в порядке каталога.
func (r *PostgresRepository) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, image_url, created_at FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	variants, err := r.variantsByProduct(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	p.Variants = variants[id]

	return &p, nil
}

// ListProducts возвращает товары, название которых начинается с search без учёта регистра.
func (r *PostgresRepository) ListProducts(ctx context.Context, search string) ([]model.Product, error) {
	pattern := likeEscaper.Replace(strings.ToLower(strings.TrimSpace(search))) + "%"

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, image_url, created_at
		 FROM products
		 WHERE lower(name) LIKE $1 ESCAPE '\'
		 ORDER BY created_at DESC`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var (
		products []model.Product
		ids      []uuid.UUID
	)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(ids) == 0 {
		return products, nil
	}

	variants, err := r.variantsByProduct(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Variants = variants[products[i].ID]
	}

	return products, nil
}

func (r *PostgresRepository) variantsByProduct(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]model.Variant, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, type, license, price
		 FROM product_variants
		 WHERE product_id = ANY($1::uuid[])
		 ORDER BY product_id, position`,
		keys,
	)
	if err != nil {
		return nil, fmt.Errorf("select variants: %w", err)
	}
	defer rows.Close()

	res := make(map[uuid.UUID][]model.Variant, len(ids))
	for rows.Next() {
		var (
			productID uuid.UUID
			vType     string
			license   string
			price     int64
		)
		if err := rows.Scan(&productID, &vType, &license, &price); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		res[productID] = append(res[productID], model.Variant{
			Type:    model.VariantType(vType),
			License: model.License(license),
			Price:   price,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
