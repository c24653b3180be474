package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalogcart/internal/domain"
)

// Money is serialized as a JSON number with two decimal places.
type Money decimal.Decimal

// MarshalJSON writes the amount unquoted, rounded to cents.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

// AuditResponse is embedded in every resource representation.
type AuditResponse struct {
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

func auditResponse(a domain.Audit) AuditResponse {
	return AuditResponse{
		CreatedBy: a.CreatedBy,
		CreatedAt: a.CreatedAt,
		UpdatedBy: a.UpdatedBy,
		UpdatedAt: a.UpdatedAt,
	}
}

// ProductResponse is the full representation of a product.
type ProductResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Stock       int     `json:"stock"`
	Price       Money   `json:"price"`
	AuditResponse
}

// ProductOverviewResponse is the compact representation used by search.
type ProductOverviewResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
	Stock int    `json:"stock"`
	AuditResponse
}

func newProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Stock:         p.Stock,
		Price:         Money(p.Price),
		AuditResponse: auditResponse(p.Audit),
	}
}

func newProductOverviewResponses(products []domain.Product) []ProductOverviewResponse {
	out := make([]ProductOverviewResponse, len(products))
	for i, p := range products {
		out[i] = ProductOverviewResponse{
			ID:            p.ID,
			Name:          p.Name,
			Price:         Money(p.Price),
			Stock:         p.Stock,
			AuditResponse: auditResponse(p.Audit),
		}
	}
	return out
}

func newProductResponses(products []domain.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = newProductResponse(&products[i])
	}
	return out
}

// CartItemResponse is one priced line of a cart.
type CartItemResponse struct {
	ID           int64  `json:"id"`
	CartID       int64  `json:"cart_id"`
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductPrice Money  `json:"product_price"`
	Quantity     int    `json:"quantity"`
	TotalPrice   Money  `json:"total_price"`
	AuditResponse
}

// CartResponse is the cart summary returned by every cart endpoint.
type CartResponse struct {
	ID          int64              `json:"id"`
	SessionID   string             `json:"session_id"`
	Items       []CartItemResponse `json:"items"`
	TotalItems  int                `json:"total_items"`
	TotalAmount Money              `json:"total_amount"`
	AuditResponse
}

func newCartResponse(s *domain.CartSummary) CartResponse {
	items := make([]CartItemResponse, len(s.Items))
	for i, it := range s.Items {
		items[i] = CartItemResponse{
			ID:           it.ID,
			CartID:       it.CartID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductPrice: Money(it.ProductPrice),
			Quantity:     it.Quantity,
			TotalPrice:   Money(it.TotalPrice),
			AuditResponse: AuditResponse{
				CreatedBy: it.CreatedBy,
				CreatedAt: it.CreatedAt,
				UpdatedBy: it.UpdatedBy,
				UpdatedAt: it.UpdatedAt,
			},
		}
	}

	return CartResponse{
		ID:            s.ID,
		SessionID:     s.SessionID,
		Items:         items,
		TotalItems:    s.TotalItems,
		TotalAmount:   Money(s.TotalAmount),
		AuditResponse: auditResponse(s.Audit),
	}
}
