package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evanmarshall/matchbook/internal/domain"
	"github.com/evanmarshall/matchbook/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	OwnerID         string   `json:"owner_id"`
	CompanyID       string   `json:"company_id"`
	SecurityClassID string   `json:"security_class_id"`
	OrderKind       string   `json:"order_kind"`
	Side            string   `json:"side"`
	Quantity        int64    `json:"quantity"`
	Price           *float64 `json:"price"`
	ExpiresAt       *string  `json:"expires_at"`
}

// cancelOrderRequest is the JSON request body for PUT /orders/{id}/cancel.
type cancelOrderRequest struct {
	OwnerID string `json:"owner_id"`
}

// orderResponse is the JSON projection of an order. Nullable fields use
// pointers and are always present.
type orderResponse struct {
	OrderID           string              `json:"order_id"`
	OwnerID           string              `json:"owner_id"`
	CompanyID         string              `json:"company_id"`
	SecurityClassID   string              `json:"security_class_id"`
	OrderKind         string              `json:"order_kind"`
	Side              string              `json:"side"`
	Quantity          int64               `json:"quantity"`
	Price             *float64            `json:"price"`
	FilledQuantity    int64               `json:"filled_quantity"`
	RemainingQuantity int64               `json:"remaining_quantity"`
	Status            string              `json:"status"`
	CreatedAt         string              `json:"created_at"`
	ExpiresAt         *string             `json:"expires_at"`
	Executions        []executionResponse `json:"executions"`
}

// executionResponse is a single execution in an order response.
type executionResponse struct {
	ExecutionID string  `json:"execution_id"`
	BuyOrderID  string  `json:"buy_order_id"`
	SellOrderID string  `json:"sell_order_id"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
	GrossAmount float64 `json:"gross_amount"`
	BuyerFee    float64 `json:"buyer_fee"`
	SellerFee   float64 `json:"seller_fee"`
	Status      string  `json:"status"`
	SettledAt   string  `json:"settled_at"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "expires_at must be a valid RFC 3339 timestamp")
			return
		}
		expiresAt = &t
	}

	result, err := h.orderSvc.SubmitOrder(r.Context(), service.SubmitOrderRequest{
		OwnerID:         req.OwnerID,
		CompanyID:       req.CompanyID,
		SecurityClassID: req.SecurityClassID,
		Kind:            domain.OrderKind(req.OrderKind),
		Side:            domain.OrderSide(req.Side),
		Quantity:        req.Quantity,
		Price:           req.Price,
		ExpiresAt:       expiresAt,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(result))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	result, err := h.orderSvc.GetOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(result))
}

// ListOrders handles GET /orders?owner_id=...
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")

	results, err := h.orderSvc.ListOrders(ownerID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	resp := make([]orderResponse, len(results))
	for i := range results {
		resp[i] = buildOrderResponse(&results[i])
	}
	WriteJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

// CancelOrder handles PUT /orders/{order_id}/cancel.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req cancelOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.CancelOrder(orderID, req.OwnerID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(&service.OrderWithExecutions{Order: order}))
}

// buildOrderResponse converts a service result to the response shape.
func buildOrderResponse(owe *service.OrderWithExecutions) orderResponse {
	o := owe.Order

	var price *float64
	if o.Price != nil {
		v := domain.CentsToDollars(*o.Price)
		price = &v
	}
	var expiresAt *string
	if o.ExpiresAt != nil {
		s := o.ExpiresAt.UTC().Format(time.RFC3339)
		expiresAt = &s
	}

	execs := make([]executionResponse, len(owe.Executions))
	for i, e := range owe.Executions {
		execs[i] = executionResponse{
			ExecutionID: e.ID,
			BuyOrderID:  e.BuyOrderID,
			SellOrderID: e.SellOrderID,
			Quantity:    e.Quantity,
			Price:       domain.CentsToDollars(e.Price),
			GrossAmount: domain.CentsToDollars(e.GrossAmount),
			BuyerFee:    domain.CentsToDollars(e.BuyerFee),
			SellerFee:   domain.CentsToDollars(e.SellerFee),
			Status:      string(e.Status),
			SettledAt:   e.SettledAt.UTC().Format(time.RFC3339),
		}
	}

	return orderResponse{
		OrderID:           o.ID,
		OwnerID:           o.OwnerID,
		CompanyID:         o.CompanyID,
		SecurityClassID:   o.SecurityClassID,
		OrderKind:         string(o.Kind),
		Side:              string(o.Side),
		Quantity:          o.Quantity,
		Price:             price,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity,
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:         expiresAt,
		Executions:        execs,
	}
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrCompanyNotFound):
		WriteError(w, http.StatusNotFound, "company_not_found", err.Error())
	case errors.Is(err, domain.ErrSecurityClassNotFound):
		WriteError(w, http.StatusNotFound, "security_class_not_found", err.Error())
	case errors.Is(err, domain.ErrNotOrderOwner):
		WriteError(w, http.StatusBadRequest, "not_order_owner", "orders can only be cancelled by their owner")
	case errors.Is(err, domain.ErrOrderNotOpen):
		WriteError(w, http.StatusBadRequest, "order_not_open", "only open orders can be cancelled")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
