package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalogcart/internal/service"
	"github.com/utafrali/catalogcart/pkg/httputil"
	"github.com/utafrali/catalogcart/pkg/middleware"
	"github.com/utafrali/catalogcart/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddToCartRequest is the JSON request body for adding a product to a cart.
// Quantity defaults to 1 when omitted.
type AddToCartRequest struct {
	SessionID string `json:"session_id" validate:"required,max=255"`
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  *int   `json:"quantity" validate:"omitempty,gt=0"`
}

// RemoveFromCartRequest is the JSON request body for removing a product line.
type RemoveFromCartRequest struct {
	SessionID string `json:"session_id" validate:"required,max=255"`
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
}

// --- Handlers ---

// AddToCart handles POST /api/cart/add
func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	r = middleware.WithSession(r, req.SessionID)
	summary, err := h.service.AddToCart(r.Context(), req.SessionID, req.ProductID, quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, newCartResponse(summary))
}

// RemoveFromCart handles DELETE /api/cart/remove
func (h *CartHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req RemoveFromCartRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	r = middleware.WithSession(r, req.SessionID)
	summary, err := h.service.RemoveFromCart(r.Context(), req.SessionID, req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, newCartResponse(summary))
}

// GetCart handles GET /api/cart/{sessionId}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	r = middleware.WithSession(r, sessionID)

	summary, err := h.service.GetCart(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, newCartResponse(summary))
}

// ClearCart handles DELETE /api/cart/{sessionId}
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	r = middleware.WithSession(r, sessionID)

	summary, err := h.service.ClearCart(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, newCartResponse(summary))
}
