package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topic for order events.
var TopicOrderPlaced = pkgkafka.Topic("order", "placed")

// Event type, aggregate and source identifiers.
const (
	EventTypeOrderPlaced = "order.placed"
	AggregateTypeOrder   = "order"
	SourceStorefront     = "storefront"
)

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	OrderID    string          `json:"order_id"`
	SessionID  string          `json:"session_id"`
	Status     string          `json:"status"`
	Email      string          `json:"email"`
	Items      []OrderItemData `json:"items"`
	TotalCents int64           `json:"total_cents"`
}

// OrderItemData is one line within an order event.
type OrderItemData struct {
	ProductID  string `json:"product_id"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderPlaced publishes an order.placed event keyed by order id.
func (p *Producer) PublishOrderPlaced(ctx context.Context, sessionID string, result *domain.OrderResult, req domain.OrderRequest) error {
	items := make([]OrderItemData, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, OrderItemData{
			ProductID:  it.ID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
		})
	}

	data := OrderPlacedData{
		OrderID:    result.OrderID,
		SessionID:  sessionID,
		Status:     result.Status,
		Email:      req.Email,
		Items:      items,
		TotalCents: result.TotalCents,
	}

	evt, err := pkgkafka.NewEvent(EventTypeOrderPlaced, result.OrderID, AggregateTypeOrder, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create order placed event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	evt.WithMetadata("session_id", sessionID)

	if err := p.kafka.Publish(ctx, TopicOrderPlaced, evt); err != nil {
		return fmt.Errorf("publish order placed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order placed event",
		slog.String("order_id", result.OrderID),
		slog.String("event_id", evt.EventID),
	)
	return nil
}
