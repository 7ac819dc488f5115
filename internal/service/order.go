package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evanmarshall/matchbook/internal/domain"
	"github.com/evanmarshall/matchbook/internal/engine"
	"github.com/evanmarshall/matchbook/internal/metrics"
	"github.com/evanmarshall/matchbook/internal/refdata"
	"github.com/evanmarshall/matchbook/internal/store"
)

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	OwnerID         string
	CompanyID       string
	SecurityClassID string
	Kind            domain.OrderKind
	Side            domain.OrderSide
	Quantity        int64
	Price           *float64   // dollars; required for LIMIT/STOP_LIMIT, forbidden for MARKET
	ExpiresAt       *time.Time // optional
}

// OrderWithExecutions pairs an order with the executions it participated in.
type OrderWithExecutions struct {
	Order      domain.Order
	Executions []domain.Execution
}

// OrderService handles order submission, retrieval, cancellation, and
// listing. Submission validates the request, checks reference data, runs
// the matching engine synchronously, and audits the creation; the result
// reflects post-matching state.
type OrderService struct {
	matcher *engine.Matcher
	expiry  *engine.ExpiryManager
	orders  *store.OrderStore
	execs   *store.ExecutionStore
	dir     refdata.Directory
	audit   engine.AuditAppender
	log     *logrus.Logger
}

// NewOrderService creates an OrderService with the given dependencies.
func NewOrderService(
	matcher *engine.Matcher,
	expiry *engine.ExpiryManager,
	orders *store.OrderStore,
	execs *store.ExecutionStore,
	dir refdata.Directory,
	auditor engine.AuditAppender,
	log *logrus.Logger,
) *OrderService {
	return &OrderService{
		matcher: matcher,
		expiry:  expiry,
		orders:  orders,
		execs:   execs,
		dir:     dir,
		audit:   auditor,
		log:     log,
	}
}

// SubmitOrder validates the request, persists the order, and runs matching
// before returning. A partially matched order comes back OPEN with
// remaining > 0; that is the expected outcome of a partial fill, not an
// error. A failed submission leaves no partial order behind: validation
// happens entirely before persistence.
func (s *OrderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*OrderWithExecutions, error) {
	order, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	execs, err := s.matcher.Match(order)
	if err != nil {
		return nil, err
	}

	s.audit.Append("Order", order.ID, "CREATE", order.OwnerID)
	metrics.OrdersSubmittedTotal.WithLabelValues(string(order.Side), string(order.Kind)).Inc()

	if order.Status == domain.OrderStatusOpen && order.RemainingQuantity > 0 {
		s.expiry.Add(order)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"company_id": order.CompanyID,
		"side":       order.Side,
		"kind":       order.Kind,
		"status":     order.Status,
		"executions": len(execs),
	}).Info("order submitted")

	return &OrderWithExecutions{Order: *order, Executions: execs}, nil
}

// validate applies the submission rules and builds the order.
func (s *OrderService) validate(ctx context.Context, req SubmitOrderRequest) (*domain.Order, error) {
	reject := func(reason, msg string) (*domain.Order, error) {
		metrics.OrdersRejectedTotal.WithLabelValues(reason).Inc()
		return nil, &domain.ValidationError{Message: msg}
	}

	switch req.Kind {
	case domain.OrderKindMarket, domain.OrderKindLimit, domain.OrderKindStopLimit:
	default:
		return reject("bad_kind", fmt.Sprintf("unknown order kind: %s, must be one of: MARKET, LIMIT, STOP_LIMIT", req.Kind))
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return reject("bad_side", "side must be BUY or SELL")
	}
	if req.OwnerID == "" {
		return reject("missing_owner", "ownerId is required")
	}
	if req.CompanyID == "" || req.SecurityClassID == "" {
		return reject("missing_security", "companyId and securityClassId are required")
	}
	if req.Quantity <= 0 {
		return reject("bad_quantity", "quantity must be a positive integer")
	}

	var price *int64
	if req.Kind == domain.OrderKindMarket {
		if req.Price != nil {
			return reject("market_with_price", "market orders cannot have a price")
		}
	} else {
		if req.Price == nil {
			return reject("limit_without_price", fmt.Sprintf("%s orders must have a price", req.Kind))
		}
		if *req.Price < 0 {
			return reject("negative_price", "price must be at least 0")
		}
		cents, err := domain.DollarsToCents(*req.Price)
		if err != nil {
			return reject("bad_price_precision", "price must have at most 2 decimal places")
		}
		price = &cents
	}

	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return reject("expired_on_arrival", "expiresAt must be a future timestamp")
	}

	ok, err := s.dir.CompanyExists(ctx, req.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("reference-data lookup: %w", err)
	}
	if !ok {
		metrics.OrdersRejectedTotal.WithLabelValues("company_not_found").Inc()
		return nil, domain.ErrCompanyNotFound
	}
	ok, err = s.dir.SecurityClassExists(ctx, req.CompanyID, req.SecurityClassID)
	if err != nil {
		return nil, fmt.Errorf("reference-data lookup: %w", err)
	}
	if !ok {
		metrics.OrdersRejectedTotal.WithLabelValues("security_class_not_found").Inc()
		return nil, domain.ErrSecurityClassNotFound
	}

	return &domain.Order{
		OwnerID:         req.OwnerID,
		CompanyID:       req.CompanyID,
		SecurityClassID: req.SecurityClassID,
		Kind:            req.Kind,
		Side:            req.Side,
		Quantity:        req.Quantity,
		Price:           price,
		ExpiresAt:       req.ExpiresAt,
	}, nil
}

// CancelOrder cancels an OPEN order on behalf of its owner. Quantity
// already filled stays filled; only the unfilled remainder leaves the book.
func (s *OrderService) CancelOrder(orderID, requesterID string) (domain.Order, error) {
	order, err := s.matcher.Cancel(orderID, requesterID)
	if err != nil {
		return domain.Order{}, err
	}

	s.expiry.Remove(orderID)
	s.audit.Append("Order", orderID, "CANCEL", requesterID)
	s.log.WithField("order_id", orderID).Info("order cancelled")
	return order, nil
}

// GetOrder retrieves an order with its executions.
func (s *OrderService) GetOrder(orderID string) (*OrderWithExecutions, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	return &OrderWithExecutions{
		Order:      order,
		Executions: s.execs.ListByOrder(orderID),
	}, nil
}

// ListOrders returns an owner's orders with executions, newest first.
func (s *OrderService) ListOrders(ownerID string) ([]OrderWithExecutions, error) {
	if ownerID == "" {
		return nil, &domain.ValidationError{Message: "ownerId is required"}
	}
	orders := s.orders.ListByOwner(ownerID)
	result := make([]OrderWithExecutions, 0, len(orders))
	for _, o := range orders {
		result = append(result, OrderWithExecutions{
			Order:      o,
			Executions: s.execs.ListByOrder(o.ID),
		})
	}
	return result, nil
}
