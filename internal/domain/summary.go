package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartSummary is the computed view of a cart returned by every workflow
// operation. It is never persisted.
type CartSummary struct {
	ID          int64
	SessionID   string
	Items       []SummaryItem
	TotalItems  int
	TotalAmount decimal.Decimal
	Audit
}

// SummaryItem is one priced line of a CartSummary.
type SummaryItem struct {
	ID           int64
	CartID       int64
	ProductID    int64
	ProductName  string
	ProductPrice decimal.Decimal
	Quantity     int
	TotalPrice   decimal.Decimal
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedBy    string
	UpdatedAt    time.Time
}

// Summarize prices every line at the product's current price. Line totals
// and the cart total are rounded half away from zero to 2 places. A line
// whose product no longer exists is listed with an empty name and zero price.
func (c *Cart) Summarize() CartSummary {
	s := CartSummary{
		ID:          c.ID,
		SessionID:   c.SessionID,
		Items:       make([]SummaryItem, 0, len(c.Lines)),
		TotalAmount: decimal.Zero,
		Audit:       c.Audit,
	}

	sum := decimal.Zero
	for _, l := range c.Lines {
		item := SummaryItem{
			ID:           l.ID,
			CartID:       l.CartID,
			ProductID:    l.ProductID,
			ProductPrice: decimal.Zero,
			Quantity:     l.Quantity,
			TotalPrice:   decimal.Zero,
			CreatedBy:    l.CreatedBy,
			CreatedAt:    l.CreatedAt,
			UpdatedBy:    l.UpdatedBy,
			UpdatedAt:    l.UpdatedAt,
		}
		if l.Product != nil {
			item.ProductName = l.Product.Name
			item.ProductPrice = l.Product.Price
			item.TotalPrice = l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
		}

		s.Items = append(s.Items, item)
		s.TotalItems += l.Quantity
		sum = sum.Add(item.TotalPrice)
	}
	s.TotalAmount = sum.Round(2)

	return s
}
