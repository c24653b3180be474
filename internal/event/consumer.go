package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/utafrali/catalogcart/pkg/errors"
	pkgkafka "github.com/utafrali/catalogcart/pkg/kafka"
)

// RestockService defines the interface required by the event consumer.
type RestockService interface {
	Restock(ctx context.Context, productID int64, quantity int) (int, error)
}

// InventoryRestockedData is the expected payload of an inventory.restocked event.
type InventoryRestockedData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Consumer processes incoming inventory events.
type Consumer struct {
	logger  *slog.Logger
	service RestockService
}

// NewConsumer creates a new event consumer.
func NewConsumer(service RestockService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleInventoryRestocked adds the restocked quantity to the product.
// Malformed payloads and unknown products are not retried.
func (c *Consumer) HandleInventoryRestocked(ctx context.Context, event *pkgkafka.Event) error {
	var data InventoryRestockedData
	if err := event.UnmarshalData(&data); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("unmarshal inventory.restocked data: %w", err))
	}

	c.logger.InfoContext(ctx, "processing inventory.restocked event",
		slog.String("event_id", event.EventID),
		slog.Int64("product_id", data.ProductID),
		slog.Int("quantity", data.Quantity),
	)

	stock, err := c.service.Restock(ctx, data.ProductID, data.Quantity)
	if err != nil {
		err = fmt.Errorf("restock product %d: %w", data.ProductID, err)
		if errors.Is(err, apperrors.ErrNotFound) ||
			errors.Is(err, apperrors.ErrInvalidInput) ||
			errors.Is(err, apperrors.ErrInsufficientStock) {
			return pkgkafka.Permanent(err)
		}
		return err
	}

	c.logger.InfoContext(ctx, "product restocked from event",
		slog.Int64("product_id", data.ProductID),
		slog.Int("stock", stock),
	)

	return nil
}
