package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/catalogcart/pkg/errors"
)

// SystemActor is recorded in audit fields for every write made by this service.
const SystemActor = "system"

// Field limits for products.
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 500
	// MaxStock is the largest value an INTEGER stock column can hold.
	MaxStock = math.MaxInt32
	// PriceScale is the number of decimal places a price may carry.
	PriceScale = 2
)

// MaxPrice is the largest value a NUMERIC(10,2) price column can hold.
var MaxPrice = decimal.RequireFromString("99999999.99")

// Audit records who created and last changed a record, and when.
type Audit struct {
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAudit returns audit fields for a record created by actor at now.
func NewAudit(actor string, now time.Time) Audit {
	return Audit{CreatedBy: actor, CreatedAt: now, UpdatedBy: actor, UpdatedAt: now}
}

// Touch marks the record as changed by actor at now.
func (a *Audit) Touch(actor string, now time.Time) {
	a.UpdatedBy = actor
	a.UpdatedAt = now
}

// Product is a catalog entry and the single source of truth for its stock.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Stock       int             `json:"stock"`
	Price       decimal.Decimal `json:"price"`
	Audit
}

// HasStock reports whether quantity units can be allocated.
func (p *Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}

// Validate checks the product's field invariants.
func (p *Product) Validate() error {
	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		return apperrors.InvalidInput("name is required")
	case utf8.RuneCountInString(p.Name) > MaxNameLength:
		return apperrors.InvalidInput("name must be at most 255 characters")
	case p.Description != nil && utf8.RuneCountInString(*p.Description) > MaxDescriptionLength:
		return apperrors.InvalidInput("description must be at most 500 characters")
	case p.Stock < 0:
		return apperrors.InvalidInput("stock must be greater than or equal to 0")
	case p.Stock > MaxStock:
		return apperrors.InvalidInput("stock must be at most 2147483647")
	case !p.Price.IsPositive():
		return apperrors.InvalidInput("price must be greater than 0")
	case p.Price.GreaterThan(MaxPrice):
		return apperrors.InvalidInput("price must be at most 99999999.99")
	case !p.Price.Equal(p.Price.Round(PriceScale)):
		return apperrors.InvalidInput("price must have at most 2 decimal places")
	}
	return nil
}

// ProductUpdate carries a partial update; nil fields are left unchanged.
type ProductUpdate struct {
	Name        *string
	Description *string
	Stock       *int
	Price       *decimal.Decimal
}

// Apply copies every non-nil field of u onto p.
func (p *Product) Apply(u ProductUpdate) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = u.Description
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
}
