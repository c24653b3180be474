package domain

import (
	"github.com/shopspring/decimal"
)

// MaxSessionIDLength bounds the opaque client session identifier.
const MaxSessionIDLength = 255

// Cart is the set of lines held by one client session.
type Cart struct {
	ID        int64      `json:"id"`
	SessionID string     `json:"session_id"`
	Lines     []CartLine `json:"items"`
	Audit
}

// CartLine pairs a product with a positive quantity. At most one line exists
// per (cart, product).
type CartLine struct {
	ID        int64       `json:"id"`
	CartID    int64       `json:"cart_id"`
	ProductID int64       `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Product   *ProductRef `json:"product,omitempty"`
	Audit
}

// ProductRef is the product data resolved alongside a cart line. It is nil
// when the referenced product has since been deleted.
type ProductRef struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

