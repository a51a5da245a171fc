package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// SessionProvider resolves the session for a request.
type SessionProvider interface {
	Get(ctx context.Context, id string) *session.Session
}

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	products ProductSource
	sessions SessionProvider
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(products ProductSource, sessions SessionProvider, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		products: products,
		sessions: sessions,
		logger:   logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=128"`
}

// ChangeQuantityRequest is the JSON request body for changing a line's
// quantity. A single request may move the quantity by at most 100.
type ChangeQuantityRequest struct {
	Delta *int `json:"delta" validate:"required,min=-100,max=100"`
}

// CartResponse is the cart as rendered to the shopper.
type CartResponse struct {
	Items            []domain.LineView `json:"items"`
	LineCount        int               `json:"line_count"`
	TotalCents       int64             `json:"total_cents"`
	CheckoutInFlight bool              `json:"checkout_in_flight"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, cartResponse(h.session(r)))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	product, err := h.products.Get(r.Context(), req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	s := h.session(r)
	if err := s.Cart.AddItem(product); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	s.Cart.Persist(r.Context())

	logger.FromContext(r.Context()).DebugContext(r.Context(), "item added to cart",
		slog.String("product_id", product.ID),
		slog.Int("line_count", s.Cart.LineCount()),
	)

	httputil.WriteData(w, http.StatusOK, cartResponse(s))
}

// ChangeQuantity handles PATCH /api/v1/cart/items/{productId}
func (h *CartHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req ChangeQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	s := h.session(r)
	s.Cart.ChangeQuantity(chi.URLParam(r, "productId"), *req.Delta)
	s.Cart.Persist(r.Context())

	httputil.WriteData(w, http.StatusOK, cartResponse(s))
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	s.Cart.RemoveItem(chi.URLParam(r, "productId"))
	s.Cart.Persist(r.Context())

	httputil.WriteData(w, http.StatusOK, cartResponse(s))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	s.Cart.Clear()
	s.Cart.Persist(r.Context())

	httputil.WriteData(w, http.StatusOK, cartResponse(s))
}

// --- Helpers ---

func (h *CartHandler) session(r *http.Request) *session.Session {
	return h.sessions.Get(r.Context(), logger.SessionIDFromContext(r.Context()))
}

func cartResponse(s *session.Session) CartResponse {
	return CartResponse{
		Items:            s.Cart.Items(),
		LineCount:        s.Cart.LineCount(),
		TotalCents:       s.Cart.TotalCents(),
		CheckoutInFlight: s.Checkout.IsInFlight(),
	}
}
