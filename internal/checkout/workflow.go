// Package checkout turns a cart into an order. A Workflow allows a single
// submission at a time and never retries the order call.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
)

var errMissingOrderID = errors.New("order service returned no order id")

// Cart is the part of cart.Store the workflow reads and clears.
type Cart interface {
	Items() []domain.LineView
	LineCount() int
	TotalCents() int64
	Clear()
	Persist(ctx context.Context)
}

// OrderCreator places an order with the remote order service.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error)
}

// EventPublisher announces placed orders.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, sessionID string, result *domain.OrderResult, req domain.OrderRequest) error
}

// Workflow runs checkout for one cart.
type Workflow struct {
	sessionID string
	cart      Cart
	orders    OrderCreator
	events    EventPublisher
	logger    *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewWorkflow creates a workflow for the cart owned by sessionID. events may
// be nil.
func NewWorkflow(sessionID string, cart Cart, orders OrderCreator, events EventPublisher, logger *slog.Logger) *Workflow {
	return &Workflow{
		sessionID: sessionID,
		cart:      cart,
		orders:    orders,
		events:    events,
		logger:    logger,
	}
}

// IsInFlight reports whether an order call is outstanding.
func (w *Workflow) IsInFlight() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

// Submit places an order for the current cart contents. A second call while
// one is outstanding fails immediately with ErrCheckoutInProgress. The cart
// is cleared and persisted only after the order service confirms the order.
func (w *Workflow) Submit(ctx context.Context, email string) (*domain.OrderResult, error) {
	if !domain.IsValidEmail(email) {
		submissionsTotal.WithLabelValues(outcomeInvalidEmail).Inc()
		return nil, domain.InvalidEmail(email)
	}

	if !w.begin() {
		submissionsTotal.WithLabelValues(outcomeInProgress).Inc()
		return nil, domain.CheckoutInProgress()
	}
	defer w.end()

	if w.cart.LineCount() == 0 {
		submissionsTotal.WithLabelValues(outcomeEmptyCart).Inc()
		return nil, domain.EmptyCart()
	}

	req := w.buildRequest(email)
	if req.TotalCents <= 0 {
		submissionsTotal.WithLabelValues(outcomeInvalidTotal).Inc()
		return nil, domain.InvalidTotal(req.TotalCents)
	}

	// Once the order call starts the caller can no longer abort it: the order
	// may already exist remotely, and the cart must reflect that.
	callCtx := context.WithoutCancel(ctx)

	conf, err := w.orders.CreateOrder(callCtx, req)
	if err == nil && (conf == nil || conf.OrderID == "") {
		err = errMissingOrderID
	}
	if err != nil {
		submissionsTotal.WithLabelValues(outcomeOrderFailed).Inc()
		w.logger.WarnContext(ctx, "order submission failed",
			slog.Int64("total_cents", req.TotalCents),
			slog.Int("items", len(req.Items)),
			slog.String("error", err.Error()),
		)
		return nil, domain.OrderSubmission(err)
	}

	result := &domain.OrderResult{
		OrderID:    conf.OrderID,
		Status:     conf.Status,
		TotalCents: req.TotalCents,
	}

	w.cart.Clear()
	w.cart.Persist(callCtx)

	if w.events != nil {
		if err := w.events.PublishOrderPlaced(callCtx, w.sessionID, result, req); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish order placed event",
				slog.String("order_id", result.OrderID),
				slog.String("error", err.Error()),
			)
		}
	}

	submissionsTotal.WithLabelValues(outcomeSuccess).Inc()
	w.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", result.OrderID),
		slog.String("status", result.Status),
		slog.Int64("total_cents", result.TotalCents),
	)

	return result, nil
}

func (w *Workflow) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight {
		return false
	}
	w.inFlight = true
	inFlightGauge.Inc()
	return true
}

func (w *Workflow) end() {
	w.mu.Lock()
	w.inFlight = false
	w.mu.Unlock()
	inFlightGauge.Dec()
}

func (w *Workflow) buildRequest(email string) domain.OrderRequest {
	lines := w.cart.Items()
	req := domain.OrderRequest{
		Email: email,
		Items: make([]domain.OrderItem, 0, len(lines)),
	}
	for _, l := range lines {
		req.Items = append(req.Items, domain.OrderItem{
			ID:         l.ProductID,
			Title:      l.Title,
			Quantity:   l.Quantity,
			PriceCents: l.UnitPriceCents,
		})
		req.TotalCents = domain.AddCents(req.TotalCents, l.LineTotalCents)
	}
	return req
}
