package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalogcart/internal/domain"
	"github.com/utafrali/catalogcart/pkg/database"
	apperrors "github.com/utafrali/catalogcart/pkg/errors"
)

const productColumns = `id, name, description, stock, price, created_by, created_at, updated_by, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
// Every method runs on the transaction bound to ctx when there is one.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new product and sets its ID.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	query := `
		INSERT INTO products (name, description, stock, price, created_by, created_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "CreateProduct", query)
	defer func() { end(err) }()

	err = database.Conn(ctx, r.pool).QueryRow(ctx, query,
		p.Name,
		p.Description,
		p.Stock,
		p.Price,
		p.CreatedBy,
		p.CreatedAt,
		p.UpdatedBy,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.getOne(ctx, "GetProductByID", query, id)
}

// GetByIDForUpdate retrieves a product and locks its row until the
// surrounding transaction ends.
func (r *ProductRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "GetProductByIDForUpdate", query, id)
}

// GetAll returns every product ordered by ID.
func (r *ProductRepository) GetAll(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`
	return r.list(ctx, "GetAllProducts", query)
}

// SearchByName returns products whose name contains name, ignoring case.
func (r *ProductRepository) SearchByName(ctx context.Context, name string) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE name ILIKE '%' || $1 || '%' ORDER BY id`
	return r.list(ctx, "SearchProductsByName", query, escapeLike(name))
}

// Update persists name, description, stock, price and the update audit fields.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	query := `
		UPDATE products
		SET name = $1, description = $2, stock = $3, price = $4, updated_by = $5, updated_at = $6
		WHERE id = $7`

	ctx, end := database.TraceQuery(ctx, "UpdateProduct", query)
	defer func() { end(err) }()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		p.Name,
		p.Description,
		p.Stock,
		p.Price,
		p.UpdatedBy,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a product. It reports false when no row matched.
func (r *ProductRepository) Delete(ctx context.Context, id int64) (deleted bool, err error) {
	query := `DELETE FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteProduct", query)
	defer func() { end(err) }()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete product: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// AdjustStock adds delta to the product's stock in a single conditional
// UPDATE, so concurrent writers can never drive it below zero.
func (r *ProductRepository) AdjustStock(ctx context.Context, id int64, delta int) (stock int, err error) {
	query := `
		UPDATE products
		SET stock = stock + $1, updated_by = $2, updated_at = NOW()
		WHERE id = $3 AND stock + $1 >= 0
		RETURNING stock`

	ctx, end := database.TraceQuery(ctx, "AdjustStock", query)
	defer func() { end(err) }()

	db := database.Conn(ctx, r.pool)
	err = db.QueryRow(ctx, query, delta, domain.SystemActor, id).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if isOutOfRange(err) {
		return 0, fmt.Errorf("adjust stock of product %d by %d exceeds %d: %w", id, delta, domain.MaxStock, apperrors.ErrInvalidInput)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	// No row updated: tell a missing product apart from a short one.
	var current int
	err = db.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperrors.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}
	return current, fmt.Errorf("adjust stock of product %d by %d (have %d): %w", id, delta, current, apperrors.ErrInsufficientStock)
}

func (r *ProductRepository) getOne(ctx context.Context, op, query string, args ...any) (p *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	p, err = scanProduct(database.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *ProductRepository) list(ctx context.Context, op, query string, args ...any) (out []domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out = []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return out, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Stock,
		&p.Price,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedBy,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
