package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	sessions SessionProvider
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(sessions SessionProvider, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// SubmitRequest is the JSON request body for placing an order. The address
// itself is checked by the checkout workflow.
type SubmitRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

// StatusResponse reports whether a checkout is outstanding.
type StatusResponse struct {
	InFlight bool `json:"in_flight"`
}

// Submit handles POST /api/v1/checkout
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	s := h.sessions.Get(r.Context(), logger.SessionIDFromContext(r.Context()))
	result, err := s.Checkout.Submit(r.Context(), req.Email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, result)
}

// Status handles GET /api/v1/checkout/status
func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Get(r.Context(), logger.SessionIDFromContext(r.Context()))
	httputil.WriteData(w, http.StatusOK, StatusResponse{InFlight: s.Checkout.IsInFlight()})
}
