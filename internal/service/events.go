package service

import (
	"context"

	"github.com/utafrali/catalogcart/internal/domain"
)

// Reasons attached to stock change events.
const (
	StockReasonCartAdd    = "cart_add"
	StockReasonCartRemove = "cart_remove"
	StockReasonUpdate     = "product_update"
	StockReasonRestock    = "restock"
)

// EventPublisher announces committed changes. Publish failures are logged by
// the services and never fail the operation that produced them.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, summary *domain.CartSummary) error
	PublishStockChanged(ctx context.Context, productID int64, stock int, reason string) error
	PublishRestorationSkipped(ctx context.Context, sessionID string, productID int64, quantity int) error
}
