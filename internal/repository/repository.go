package repository

import (
	"context"

	"github.com/utafrali/catalogcart/internal/domain"
)

// ProductRepository persists products and owns stock arithmetic.
type ProductRepository interface {
	// Create inserts a product and sets its ID.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID returns apperrors.ErrNotFound when the product does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Product, error)

	// GetByIDForUpdate is GetByID that also locks the row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Product, error)

	// GetAll returns every product ordered by ID.
	GetAll(ctx context.Context) ([]domain.Product, error)

	// SearchByName returns products whose name contains name, case-insensitively.
	SearchByName(ctx context.Context, name string) ([]domain.Product, error)

	// Update persists the product's mutable fields.
	Update(ctx context.Context, product *domain.Product) error

	// Delete removes the product and reports whether it existed.
	Delete(ctx context.Context, id int64) (bool, error)

	// AdjustStock atomically adds delta to the product's stock and returns the
	// new value. It fails with apperrors.ErrNotFound for a missing product and
	// apperrors.ErrInsufficientStock when the result would be negative.
	AdjustStock(ctx context.Context, id int64, delta int) (int, error)
}

// CartRepository persists carts and their lines.
type CartRepository interface {
	// CreateCart inserts a cart for cart.SessionID, or loads the existing one
	// when another writer created it first. Either way cart.ID is set.
	CreateCart(ctx context.Context, cart *domain.Cart) error

	// GetCartBySessionID loads the cart with its lines and each line's product
	// name and price. Returns apperrors.ErrNotFound when no cart exists.
	GetCartBySessionID(ctx context.Context, sessionID string) (*domain.Cart, error)

	// AddLine inserts a line and sets its ID.
	AddLine(ctx context.Context, line *domain.CartLine) error

	// GetLine returns apperrors.ErrNotFound when the cart holds no such product.
	GetLine(ctx context.Context, cartID, productID int64) (*domain.CartLine, error)

	// UpdateLine persists the line's quantity and audit fields.
	UpdateLine(ctx context.Context, line *domain.CartLine) error

	// RemoveLine deletes the line and reports whether it existed.
	RemoveLine(ctx context.Context, cartID, productID int64) (bool, error)

	// ClearCart deletes every line of the cart and reports whether the cart exists.
	ClearCart(ctx context.Context, cartID int64) (bool, error)
}

// Transactor runs fn in one storage transaction. Repository calls made with
// the context passed to fn commit or roll back together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
