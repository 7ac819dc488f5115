package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evanmarshall/matchbook/internal/domain"
	"github.com/evanmarshall/matchbook/internal/engine"
	"github.com/evanmarshall/matchbook/internal/service"
)

// BookHandler handles order-book query endpoints.
type BookHandler struct {
	bookSvc *service.BookService
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(bookSvc *service.BookService) *BookHandler {
	return &BookHandler{bookSvc: bookSvc}
}

// bookResponse is the JSON response for GET /order-book/{companyId}/{securityClassId}.
type bookResponse struct {
	CompanyID       string          `json:"company_id"`
	SecurityClassID string          `json:"security_class_id"`
	BestBidPrice    *float64        `json:"best_bid_price"`
	BestAskPrice    *float64        `json:"best_ask_price"`
	LastTradePrice  *float64        `json:"last_trade_price"`
	UpdatedAt       string          `json:"updated_at"`
	Bids            []levelResponse `json:"bids"`
	Asks            []levelResponse `json:"asks"`
}

// levelResponse is one resting order in the depth listing. Price is null
// for resting market orders.
type levelResponse struct {
	Price     *float64 `json:"price"`
	Quantity  int64    `json:"quantity"`
	CreatedAt string   `json:"created_at"`
}

// GetBook handles GET /order-book/{companyId}/{securityClassId}?depth=N.
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "company_id")
	securityClassID := chi.URLParam(r, "security_class_id")

	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be a positive integer")
			return
		}
		depth = n
	}

	view, err := h.bookSvc.GetBook(r.Context(), companyID, securityClassID, depth)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildBookResponse(view))
}

func buildBookResponse(view *service.BookView) bookResponse {
	snap := view.Snapshot
	return bookResponse{
		CompanyID:       snap.CompanyID,
		SecurityClassID: snap.SecurityClassID,
		BestBidPrice:    centsPtrToDollars(snap.BestBidPrice),
		BestAskPrice:    centsPtrToDollars(snap.BestAskPrice),
		LastTradePrice:  centsPtrToDollars(snap.LastTradePrice),
		UpdatedAt:       snap.UpdatedAt.UTC().Format(time.RFC3339),
		Bids:            buildLevels(view.Bids),
		Asks:            buildLevels(view.Asks),
	}
}

func buildLevels(levels []engine.RestingLevel) []levelResponse {
	result := make([]levelResponse, len(levels))
	for i, lvl := range levels {
		result[i] = levelResponse{
			Price:     centsPtrToDollars(lvl.Price),
			Quantity:  lvl.Quantity,
			CreatedAt: lvl.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return result
}

func centsPtrToDollars(c *int64) *float64 {
	if c == nil {
		return nil
	}
	v := domain.CentsToDollars(*c)
	return &v
}
