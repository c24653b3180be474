package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/utafrali/catalogcart/internal/domain"
	"github.com/utafrali/catalogcart/pkg/database"
	apperrors "github.com/utafrali/catalogcart/pkg/errors"
)

const (
	uniqueViolation   = "23505"
	numericOutOfRange = "22003"
)

// CartRepository implements repository.CartRepository using PostgreSQL.
type CartRepository struct {
	pool database.DBTX
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool database.DBTX) *CartRepository {
	return &CartRepository{pool: pool}
}

// CreateCart inserts a cart for the session. A concurrent insert for the same
// session resolves to the existing row via ON CONFLICT.
func (r *CartRepository) CreateCart(ctx context.Context, c *domain.Cart) (err error) {
	query := `
		INSERT INTO carts (session_id, created_by, created_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET session_id = EXCLUDED.session_id
		RETURNING id, created_by, created_at, updated_by, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateCart", query)
	defer func() { end(err) }()

	err = database.Conn(ctx, r.pool).QueryRow(ctx, query,
		c.SessionID, c.CreatedBy, c.CreatedAt, c.UpdatedBy, c.UpdatedAt,
	).Scan(&c.ID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedBy, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}

	return nil
}

// GetCartBySessionID loads the cart and its lines, joining each line to its
// product. Lines whose product was deleted have a nil Product.
func (r *CartRepository) GetCartBySessionID(ctx context.Context, sessionID string) (c *domain.Cart, err error) {
	cartQuery := `
		SELECT id, session_id, created_by, created_at, updated_by, updated_at
		FROM carts
		WHERE session_id = $1`

	ctx, end := database.TraceQuery(ctx, "GetCartBySessionID", cartQuery)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	db := database.Conn(ctx, r.pool)

	c = &domain.Cart{}
	err = db.QueryRow(ctx, cartQuery, sessionID).Scan(
		&c.ID, &c.SessionID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedBy, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	linesQuery := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		       ci.created_by, ci.created_at, ci.updated_by, ci.updated_at,
		       p.name, p.price
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`

	rows, err := db.Query(ctx, linesQuery, c.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart lines: %w", err)
	}
	defer rows.Close()

	c.Lines = []domain.CartLine{}
	for rows.Next() {
		var (
			l     domain.CartLine
			name  *string
			price decimal.NullDecimal
		)
		if err := rows.Scan(
			&l.ID, &l.CartID, &l.ProductID, &l.Quantity,
			&l.CreatedBy, &l.CreatedAt, &l.UpdatedBy, &l.UpdatedAt,
			&name, &price,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		if name != nil && price.Valid {
			l.Product = &domain.ProductRef{Name: *name, Price: price.Decimal}
		}
		c.Lines = append(c.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}

	return c, nil
}

// AddLine inserts a line and sets its ID.
func (r *CartRepository) AddLine(ctx context.Context, l *domain.CartLine) (err error) {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity, created_by, created_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "AddCartLine", query)
	defer func() { end(err) }()

	err = database.Conn(ctx, r.pool).QueryRow(ctx, query,
		l.CartID, l.ProductID, l.Quantity, l.CreatedBy, l.CreatedAt, l.UpdatedBy, l.UpdatedAt,
	).Scan(&l.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("add line for product %d: %w", l.ProductID, apperrors.ErrAlreadyExists)
		}
		return fmt.Errorf("insert cart line: %w", err)
	}

	return nil
}

// GetLine returns the line for (cartID, productID).
func (r *CartRepository) GetLine(ctx context.Context, cartID, productID int64) (l *domain.CartLine, err error) {
	query := `
		SELECT id, cart_id, product_id, quantity, created_by, created_at, updated_by, updated_at
		FROM cart_items
		WHERE cart_id = $1 AND product_id = $2`

	ctx, end := database.TraceQuery(ctx, "GetCartLine", query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	l = &domain.CartLine{}
	err = database.Conn(ctx, r.pool).QueryRow(ctx, query, cartID, productID).Scan(
		&l.ID, &l.CartID, &l.ProductID, &l.Quantity,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedBy, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get cart line: %w", err)
	}

	return l, nil
}

// UpdateLine persists the line's quantity.
func (r *CartRepository) UpdateLine(ctx context.Context, l *domain.CartLine) (err error) {
	query := `
		UPDATE cart_items
		SET quantity = $1, updated_by = $2, updated_at = $3
		WHERE cart_id = $4 AND product_id = $5`

	ctx, end := database.TraceQuery(ctx, "UpdateCartLine", query)
	defer func() { end(err) }()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		l.Quantity, l.UpdatedBy, l.UpdatedAt, l.CartID, l.ProductID,
	)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// RemoveLine deletes the line. It reports false when no row matched.
func (r *CartRepository) RemoveLine(ctx context.Context, cartID, productID int64) (removed bool, err error) {
	query := `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	ctx, end := database.TraceQuery(ctx, "RemoveCartLine", query)
	defer func() { end(err) }()

	ct, err := database.Conn(ctx, r.pool).Exec(ctx, query, cartID, productID)
	if err != nil {
		return false, fmt.Errorf("delete cart line: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// ClearCart deletes all lines of the cart. It reports false when the cart
// does not exist.
func (r *CartRepository) ClearCart(ctx context.Context, cartID int64) (exists bool, err error) {
	query := `DELETE FROM cart_items WHERE cart_id = $1`

	ctx, end := database.TraceQuery(ctx, "ClearCart", query)
	defer func() { end(err) }()

	db := database.Conn(ctx, r.pool)
	if err = db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM carts WHERE id = $1)`, cartID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check cart: %w", err)
	}
	if !exists {
		return false, nil
	}

	if _, err = db.Exec(ctx, query, cartID); err != nil {
		return false, fmt.Errorf("clear cart: %w", err)
	}

	return true, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isOutOfRange reports whether err is a PostgreSQL numeric overflow
// (SQLSTATE 22003), raised when stock + delta leaves the INTEGER range.
func isOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == numericOutOfRange
}
