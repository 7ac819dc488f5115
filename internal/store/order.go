package store

import (
	"sort"
	"sync"

	"github.com/evanmarshall/matchbook/internal/domain"
)

// OrderStore is the authoritative, thread-safe in-memory store for orders,
// with a primary index by order ID and a secondary index by owner.
//
// All mutation goes through the store under its lock: fills through
// ApplyFill (a compare-and-swap on the remaining quantity), cancellation
// through Cancel, and expiry through Expire. Reads return value copies so
// callers never observe a half-applied mutation. Orders are never deleted;
// terminal states persist for audit.
type OrderStore struct {
	mu          sync.RWMutex
	orders      map[string]*domain.Order
	ownerOrders map[string][]*domain.Order // owner_id → orders (append-only)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:      make(map[string]*domain.Order),
		ownerOrders: make(map[string][]*domain.Order),
	}
}

// Create adds an order to the store and to the owner's secondary index.
// The caller provides a fully initialized order (OPEN, remaining=quantity).
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *o
	s.orders[cp.ID] = &cp
	s.ownerOrders[cp.OwnerID] = append(s.ownerOrders[cp.OwnerID], &cp)
}

// Get retrieves a copy of an order by ID. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return *o, nil
}

// ApplyFill decrements an order's remaining quantity and increments its
// filled quantity by qty, transitioning the order to FILLED when remaining
// reaches 0. The caller states the remaining quantity it observed;
// if the order's current remaining differs, nothing changes and
// domain.ErrConcurrentModification is returned. Two concurrent fills
// against the same order therefore serialize here: at most one can win a
// given remaining value.
func (s *OrderStore) ApplyFill(id string, expectedRemaining, qty int64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if o.RemainingQuantity != expectedRemaining {
		return domain.Order{}, domain.ErrConcurrentModification
	}
	if qty <= 0 || qty > o.RemainingQuantity || o.Status != domain.OrderStatusOpen {
		return domain.Order{}, domain.ErrConcurrentModification
	}

	o.RemainingQuantity -= qty
	o.FilledQuantity += qty
	if o.RemainingQuantity == 0 {
		o.Status = domain.OrderStatusFilled
	}
	return *o, nil
}

// RevertFill undoes a fill previously applied with ApplyFill. The recorder
// uses it to roll back the first leg of a settlement when the second leg
// fails its compare-and-swap.
func (s *OrderStore) RevertFill(id string, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return
	}
	o.RemainingQuantity += qty
	o.FilledQuantity -= qty
	if o.Status == domain.OrderStatusFilled && o.RemainingQuantity > 0 {
		o.Status = domain.OrderStatusOpen
	}
}

// Cancel transitions an OPEN order to CANCELLED on behalf of its owner.
// Filled and remaining quantities are left untouched: quantity already
// filled stays filled, and only the unfilled remainder is withdrawn from
// the book. Returns domain.ErrOrderNotFound for an unknown order,
// domain.ErrNotOrderOwner when requesterID is not the owner, and
// domain.ErrOrderNotOpen when the order is in a terminal state.
func (s *OrderStore) Cancel(id, requesterID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if o.OwnerID != requesterID {
		return domain.Order{}, domain.ErrNotOrderOwner
	}
	if o.Status != domain.OrderStatusOpen {
		return domain.Order{}, domain.ErrOrderNotOpen
	}

	o.Status = domain.OrderStatusCancelled
	return *o, nil
}

// Expire transitions an OPEN order to EXPIRED. Returns the updated order
// and true when the transition happened; false when the order is missing
// or already terminal (a fill or cancel that committed first wins).
func (s *OrderStore) Expire(id string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok || o.Status != domain.OrderStatusOpen {
		return domain.Order{}, false
	}
	o.Status = domain.OrderStatusExpired
	return *o, true
}

// ListByOwner returns copies of an owner's orders, newest first.
func (s *OrderStore) ListByOwner(ownerID string) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.ownerOrders[ownerID]
	result := make([]domain.Order, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		result = append(result, *all[i])
	}
	// Creation order and append order coincide, but don't rely on it.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
