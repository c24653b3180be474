package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalogcart/internal/domain"
	"github.com/utafrali/catalogcart/internal/service"
	pkgkafka "github.com/utafrali/catalogcart/pkg/kafka"
)

// Kafka topics published by this service.
const (
	TopicCartUpdated         = "ecommerce.cart.updated"
	TopicStockChanged        = "ecommerce.inventory.stock_changed"
	TopicRestorationSkipped  = "ecommerce.inventory.restoration_skipped"
	TopicInventoryRestocked  = "ecommerce.inventory.restocked"
	SourceCatalogCartService = "catalogcart"
)

// Aggregate types.
const (
	AggregateTypeCart    = "cart"
	AggregateTypeProduct = "product"
)

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	CartID      int64           `json:"cart_id"`
	SessionID   string          `json:"session_id"`
	Items       []CartItemData  `json:"items"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CartItemData is one line within a cart.updated payload.
type CartItemData struct {
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// StockChangedData is the payload for an inventory.stock_changed event.
type StockChangedData struct {
	ProductID int64  `json:"product_id"`
	Stock     int    `json:"stock"`
	Reason    string `json:"reason"`
}

// RestorationSkippedData is the payload for an
// inventory.restoration_skipped event.
type RestorationSkippedData struct {
	SessionID string `json:"session_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Producer publishes cart and inventory events to Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

var _ service.EventPublisher = (*Producer)(nil)

// NewProducer creates a new event producer.
func NewProducer(kafka pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, summary *domain.CartSummary) error {
	items := make([]CartItemData, len(summary.Items))
	for i, item := range summary.Items {
		items[i] = CartItemData{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			TotalPrice: item.TotalPrice,
		}
	}

	data := CartUpdatedData{
		CartID:      summary.ID,
		SessionID:   summary.SessionID,
		Items:       items,
		TotalItems:  summary.TotalItems,
		TotalAmount: summary.TotalAmount,
	}

	if err := p.publish(ctx, TopicCartUpdated, "cart.updated", summary.SessionID, AggregateTypeCart, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", summary.SessionID),
		slog.Int("total_items", summary.TotalItems),
	)
	return nil
}

// PublishStockChanged publishes an inventory.stock_changed event.
func (p *Producer) PublishStockChanged(ctx context.Context, productID int64, stock int, reason string) error {
	data := StockChangedData{ProductID: productID, Stock: stock, Reason: reason}
	return p.publish(ctx, TopicStockChanged, "inventory.stock_changed",
		strconv.FormatInt(productID, 10), AggregateTypeProduct, data)
}

// PublishRestorationSkipped publishes an inventory.restoration_skipped event.
func (p *Producer) PublishRestorationSkipped(ctx context.Context, sessionID string, productID int64, quantity int) error {
	data := RestorationSkippedData{SessionID: sessionID, ProductID: productID, Quantity: quantity}
	return p.publish(ctx, TopicRestorationSkipped, "inventory.restoration_skipped",
		strconv.FormatInt(productID, 10), AggregateTypeProduct, data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, eventType, aggregateID, aggregateType, SourceCatalogCartService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

// NoopPublisher drops every event. It stands in when Kafka is disabled.
type NoopPublisher struct{}

var _ service.EventPublisher = NoopPublisher{}

func (NoopPublisher) PublishCartUpdated(context.Context, *domain.CartSummary) error { return nil }

func (NoopPublisher) PublishStockChanged(context.Context, int64, int, string) error { return nil }

func (NoopPublisher) PublishRestorationSkipped(context.Context, string, int64, int) error {
	return nil
}
