package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func sampleOrder() (*domain.OrderResult, domain.OrderRequest) {
	return &domain.OrderResult{OrderID: "ord-1", Status: "pending", TotalCents: 2500},
		domain.OrderRequest{
			Email: "a@b.com",
			Items: []domain.OrderItem{
				{ID: "A", Title: "Alpha", Quantity: 2, PriceCents: 1000},
				{ID: "B", Title: "Beta", Quantity: 1, PriceCents: 500},
			},
			TotalCents: 2500,
		}
}

func TestPublishOrderPlaced(t *testing.T) {
	pub := new(mockPublisher)
	var captured *pkgkafka.Event
	pub.On("Publish", mock.Anything, "storefront.order.placed", mock.AnythingOfType("*kafka.Event")).
		Run(func(args mock.Arguments) { captured = args.Get(2).(*pkgkafka.Event) }).
		Return(nil).Once()

	p := NewProducer(pub, logger.Discard())
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	result, req := sampleOrder()

	require.NoError(t, p.PublishOrderPlaced(ctx, "sess-1", result, req))
	pub.AssertExpectations(t)

	require.NotNil(t, captured)
	assert.Equal(t, EventTypeOrderPlaced, captured.EventType)
	assert.Equal(t, "ord-1", captured.AggregateID)
	assert.Equal(t, AggregateTypeOrder, captured.AggregateType)
	assert.Equal(t, SourceStorefront, captured.Source)
	assert.Equal(t, "corr-1", captured.CorrelationID)
	assert.Equal(t, "sess-1", captured.Metadata["session_id"])

	var data OrderPlacedData
	require.NoError(t, captured.UnmarshalData(&data))
	assert.Equal(t, "sess-1", data.SessionID)
	assert.Equal(t, int64(2500), data.TotalCents)
	require.Len(t, data.Items, 2)
	assert.Equal(t, "A", data.Items[0].ProductID)
	assert.Equal(t, 2, data.Items[0].Quantity)
}

func TestPublishOrderPlaced_Error(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

	p := NewProducer(pub, logger.Discard())
	result, req := sampleOrder()

	err := p.PublishOrderPlaced(context.Background(), "sess-1", result, req)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish order placed event: broker unavailable")
}
