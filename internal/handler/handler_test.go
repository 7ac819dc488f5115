package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanmarshall/matchbook/internal/domain"
	"github.com/evanmarshall/matchbook/internal/engine"
	"github.com/evanmarshall/matchbook/internal/refdata"
	"github.com/evanmarshall/matchbook/internal/service"
	"github.com/evanmarshall/matchbook/internal/store"
)

// noopAudit discards audit appends in handler tests.
type noopAudit struct{}

func (noopAudit) Append(entityType, entityID, action, userID string) {}

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	orders := store.NewOrderStore()
	execs := store.NewExecutionStore()
	trades := store.NewTradeStore()
	snapshots := store.NewSnapshotStore()
	books := engine.NewBookIndex()
	auditor := noopAudit{}

	recorder := engine.NewRecorder(orders, execs, trades, snapshots, books, domain.DefaultFeeSchedule(), auditor, nil, log)
	matcher := engine.NewMatcher(books, orders, recorder, 1000, 3, log)
	expiry := engine.NewExpiryManager(time.Second, books, orders, auditor, log)

	registry := refdata.NewRegistry()
	registry.Add("acme", "common")

	orderSvc := service.NewOrderService(matcher, expiry, orders, execs, registry, auditor, log)
	bookSvc := service.NewBookService(books, orders, snapshots, registry, 10)
	return NewRouter(orderSvc, bookSvc, log)
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doGet(t *testing.T, router chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func submitBody(mutate func(map[string]any)) map[string]any {
	body := map[string]any{
		"owner_id":          "alice",
		"company_id":        "acme",
		"security_class_id": "common",
		"order_kind":        "LIMIT",
		"side":              "BUY",
		"quantity":          100,
		"price":             10.00,
	}
	if mutate != nil {
		mutate(body)
	}
	return body
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := doGet(t, router, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doGet(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "matchbook_")
}

func TestSubmitOrder_Created(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/orders", submitBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	assert.NotEmpty(t, body["order_id"])
	assert.Equal(t, "OPEN", body["status"])
	assert.Equal(t, float64(100), body["remaining_quantity"])
	assert.Equal(t, 10.00, body["price"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestSubmitOrder_MatchReturnsExecutions(t *testing.T) {
	router := newTestRouter(t)

	sell := submitBody(func(b map[string]any) {
		b["owner_id"] = "bob"
		b["side"] = "SELL"
	})
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/orders", sell).Code)

	rec := doJSON(t, router, http.MethodPost, "/orders", submitBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "FILLED", body["status"])
	execs, ok := body["executions"].([]any)
	require.True(t, ok)
	require.Len(t, execs, 1)
	exec := execs[0].(map[string]any)
	assert.Equal(t, float64(100), exec["quantity"])
	assert.Equal(t, 10.00, exec["price"])
	assert.Equal(t, 1000.00, exec["gross_amount"])
	assert.Equal(t, 10.00, exec["buyer_fee"])
	assert.Equal(t, 10.00, exec["seller_fee"])
	assert.Equal(t, "SETTLED", exec["status"])
}

func TestSubmitOrder_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(map[string]any)
		wantCode int
		wantErr  string
	}{
		{"zero quantity", func(b map[string]any) { b["quantity"] = 0 }, http.StatusBadRequest, "validation_error"},
		{"bad kind", func(b map[string]any) { b["order_kind"] = "ICEBERG" }, http.StatusBadRequest, "validation_error"},
		{"market with price", func(b map[string]any) { b["order_kind"] = "MARKET" }, http.StatusBadRequest, "validation_error"},
		{"limit without price", func(b map[string]any) { delete(b, "price") }, http.StatusBadRequest, "validation_error"},
		{"three decimals", func(b map[string]any) { b["price"] = 10.001 }, http.StatusBadRequest, "validation_error"},
		{"bad expires_at", func(b map[string]any) { b["expires_at"] = "tomorrow" }, http.StatusBadRequest, "validation_error"},
		{"unknown field", func(b map[string]any) { b["leverage"] = 10 }, http.StatusBadRequest, "invalid_request"},
		{"unknown company", func(b map[string]any) { b["company_id"] = "ghost" }, http.StatusNotFound, "company_not_found"},
		{"unknown security class", func(b map[string]any) { b["security_class_id"] = "preferred-z" }, http.StatusNotFound, "security_class_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t)
			rec := doJSON(t, router, http.MethodPost, "/orders", submitBody(tt.mutate))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decode(t, rec)["error"])
		})
	}
}

func TestSubmitOrder_RequiresJSONContentType(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("<order/>"))
	req.Header.Set("Content-Type", "application/xml")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decode(t, rec)["error"])
}

func TestGetOrder(t *testing.T) {
	router := newTestRouter(t)

	created := decode(t, doJSON(t, router, http.MethodPost, "/orders", submitBody(nil)))
	orderID := created["order_id"].(string)

	rec := doGet(t, router, "/orders/"+orderID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orderID, decode(t, rec)["order_id"])

	rec = doGet(t, router, "/orders/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order_not_found", decode(t, rec)["error"])
}

func TestListOrders(t *testing.T) {
	router := newTestRouter(t)

	for i := 0; i < 2; i++ {
		doJSON(t, router, http.MethodPost, "/orders", submitBody(nil))
	}

	rec := doGet(t, router, "/orders?owner_id=alice")
	require.Equal(t, http.StatusOK, rec.Code)
	orders, ok := decode(t, rec)["orders"].([]any)
	require.True(t, ok)
	assert.Len(t, orders, 2)

	// owner_id is required.
	rec = doGet(t, router, "/orders")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelOrder(t *testing.T) {
	router := newTestRouter(t)

	created := decode(t, doJSON(t, router, http.MethodPost, "/orders", submitBody(nil)))
	orderID := created["order_id"].(string)

	cancelPath := fmt.Sprintf("/orders/%s/cancel", orderID)
	rec := doJSON(t, router, http.MethodPut, cancelPath, map[string]any{"owner_id": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decode(t, rec)["status"])

	// Wrong owner and repeated cancels are client errors.
	created = decode(t, doJSON(t, router, http.MethodPost, "/orders", submitBody(nil)))
	cancelPath = fmt.Sprintf("/orders/%s/cancel", created["order_id"].(string))

	rec = doJSON(t, router, http.MethodPut, cancelPath, map[string]any{"owner_id": "mallory"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not_order_owner", decode(t, rec)["error"])

	doJSON(t, router, http.MethodPut, cancelPath, map[string]any{"owner_id": "alice"})
	rec = doJSON(t, router, http.MethodPut, cancelPath, map[string]any{"owner_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "order_not_open", decode(t, rec)["error"])

	rec = doJSON(t, router, http.MethodPut, "/orders/missing/cancel", map[string]any{"owner_id": "alice"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBook(t *testing.T) {
	router := newTestRouter(t)

	// Empty book still answers with a snapshot row.
	rec := doGet(t, router, "/order-book/acme/common")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "acme", body["company_id"])
	assert.Nil(t, body["last_trade_price"])

	sell := submitBody(func(b map[string]any) {
		b["owner_id"] = "bob"
		b["side"] = "SELL"
		b["quantity"] = 60
	})
	doJSON(t, router, http.MethodPost, "/orders", sell)
	doJSON(t, router, http.MethodPost, "/orders", submitBody(nil))

	rec = doGet(t, router, "/order-book/acme/common")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, 10.00, body["last_trade_price"])
	assert.Equal(t, 10.00, body["best_bid_price"])
	assert.Nil(t, body["best_ask_price"])
	bids, ok := body["bids"].([]any)
	require.True(t, ok)
	require.Len(t, bids, 1)
	assert.Equal(t, float64(40), bids[0].(map[string]any)["quantity"])

	rec = doGet(t, router, "/order-book/ghost/common")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doGet(t, router, "/order-book/acme/common?depth=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
