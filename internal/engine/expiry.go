package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evanmarshall/matchbook/internal/domain"
	"github.com/evanmarshall/matchbook/internal/metrics"
	"github.com/evanmarshall/matchbook/internal/store"
)

// expiryItem tracks one order awaiting expiration.
type expiryItem struct {
	orderID   string
	key       domain.SecurityKey
	expiresAt time.Time
}

// ExpiryManager tracks resting orders that carry an expiry timestamp,
// sorted by expires_at, and periodically transitions past-due OPEN orders
// to EXPIRED, withdrawing them from the book.
type ExpiryManager struct {
	interval time.Duration
	books    *BookIndex
	orders   *store.OrderStore
	audit    AuditAppender
	log      *logrus.Logger
	active   []expiryItem // sorted by expiresAt ASC
	mu       sync.Mutex   // protects active
}

// NewExpiryManager creates an ExpiryManager with the given dependencies.
func NewExpiryManager(
	interval time.Duration,
	books *BookIndex,
	orders *store.OrderStore,
	audit AuditAppender,
	log *logrus.Logger,
) *ExpiryManager {
	return &ExpiryManager{
		interval: interval,
		books:    books,
		orders:   orders,
		audit:    audit,
		log:      log,
	}
}

// Add registers a resting order for expiration tracking. Orders without an
// expiry timestamp are ignored.
func (e *ExpiryManager) Add(order *domain.Order) {
	if order.ExpiresAt == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	item := expiryItem{
		orderID:   order.ID,
		key:       order.Key(),
		expiresAt: *order.ExpiresAt,
	}
	idx := sort.Search(len(e.active), func(i int) bool {
		return e.active[i].expiresAt.After(item.expiresAt)
	})
	e.active = append(e.active, expiryItem{})
	copy(e.active[idx+1:], e.active[idx:])
	e.active[idx] = item
}

// Remove drops an order from expiration tracking, e.g. after a cancel or
// full fill.
func (e *ExpiryManager) Remove(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, item := range e.active {
		if item.orderID == orderID {
			e.active = append(e.active[:i], e.active[i+1:]...)
			return
		}
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and expires past-due orders. It stops when ctx is cancelled.
func (e *ExpiryManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				e.Tick(t)
			}
		}
	}()
}

// Tick expires every tracked order whose expires_at is at or before now.
// Exported for deterministic tests.
func (e *ExpiryManager) Tick(now time.Time) {
	e.mu.Lock()
	var due []expiryItem
	cutoff := 0
	for cutoff < len(e.active) {
		if e.active[cutoff].expiresAt.After(now) {
			break
		}
		due = append(due, e.active[cutoff])
		cutoff++
	}
	if cutoff > 0 {
		e.active = e.active[cutoff:]
	}
	e.mu.Unlock()

	for _, item := range due {
		e.expire(item)
	}
}

// expire transitions one order to EXPIRED under its book lock. A fill or
// cancel that committed first wins; the store reports that by refusing the
// transition.
func (e *ExpiryManager) expire(item expiryItem) {
	b := e.books.getOrCreate(item.key)
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := e.orders.Expire(item.orderID)
	if !ok {
		return
	}
	b.remove(item.orderID)

	e.audit.Append("Order", order.ID, "EXPIRE", order.OwnerID)
	metrics.OrdersExpiredTotal.Inc()
	e.log.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"company_id": order.CompanyID,
	}).Info("order expired")
}

// ActiveCount returns the number of orders currently tracked.
func (e *ExpiryManager) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
