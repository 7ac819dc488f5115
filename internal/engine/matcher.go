package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/evanmarshall/matchbook/internal/domain"
	"github.com/evanmarshall/matchbook/internal/metrics"
	"github.com/evanmarshall/matchbook/internal/store"
)

// Matcher implements price-time priority matching. Each submission runs a
// synchronous matching pass against the opposite side of the security's
// book: best price first, creation time breaking ties, executing fills
// through the settlement recorder until the incoming order is exhausted or
// no compatible resting order remains.
type Matcher struct {
	books         *BookIndex
	orders        *store.OrderStore
	recorder      *Recorder
	maxIterations int
	settleRetries int
	log           *logrus.Logger
}

// NewMatcher creates a Matcher. maxIterations bounds the candidates
// consumed in one pass; settleRetries bounds re-reads after a settlement
// conflict on a single candidate.
func NewMatcher(
	books *BookIndex,
	orders *store.OrderStore,
	recorder *Recorder,
	maxIterations int,
	settleRetries int,
	log *logrus.Logger,
) *Matcher {
	return &Matcher{
		books:         books,
		orders:        orders,
		recorder:      recorder,
		maxIterations: maxIterations,
		settleRetries: settleRetries,
		log:           log,
	}
}

// crossable reports whether the incoming order and a resting entry can
// trade. Two priced orders cross only when the buy limit is at least the
// sell limit. A market order crosses anything priced; two market orders
// have no determinable price and never cross.
func crossable(incoming *domain.Order, e BookEntry) bool {
	if incoming.Price == nil && !e.HasPrice {
		return false
	}
	if incoming.Price == nil || !e.HasPrice {
		return true
	}
	if incoming.Side == domain.OrderSideBuy {
		return *incoming.Price >= e.Price
	}
	return e.Price >= *incoming.Price
}

// executionPrice is the resting order's limit price when it has one,
// otherwise the incoming order's. crossable already rules out the case
// where neither side carries a price.
func executionPrice(incoming *domain.Order, e BookEntry) int64 {
	if e.HasPrice {
		return e.Price
	}
	return *incoming.Price
}

// Match persists the incoming order as OPEN and runs the matching pass.
// The order pointer is updated in place to its post-matching state; the
// executions produced by the pass are returned in settlement order.
//
// The caller provides a validated order with Owner/Company/SecurityClass,
// Kind, Side, Quantity, and Price set; the matcher assigns ID and
// CreatedAt. The security's book lock is held for the entire pass, so
// matching for one security is serialized while distinct securities match
// concurrently.
func (m *Matcher) Match(order *domain.Order) ([]domain.Execution, error) {
	b := m.books.getOrCreate(order.Key())
	b.mu.Lock()
	defer b.mu.Unlock()

	order.ID = uuid.New().String()
	order.CreatedAt = time.Now()
	order.FilledQuantity = 0
	order.RemainingQuantity = order.Quantity
	order.Status = domain.OrderStatusOpen
	m.orders.Create(order)

	current := *order
	var execs []domain.Execution
	skipped := make(map[string]bool)
	iterations := 0

	for current.RemainingQuantity > 0 {
		iterations++
		if iterations > m.maxIterations {
			m.log.WithFields(logrus.Fields{
				"order_id":   current.ID,
				"iterations": m.maxIterations,
			}).Warn("matching pass hit iteration bound, resting remainder")
			break
		}

		entry, found := m.nextCandidate(b, &current, skipped)
		if !found {
			break
		}

		resting, err := m.orders.Get(entry.OrderID)
		if err != nil || resting.Status != domain.OrderStatusOpen || resting.RemainingQuantity <= 0 {
			// Stale index entry; the book only holds OPEN orders.
			b.remove(entry.OrderID)
			continue
		}

		exec, ok := m.settleWithRetry(b, &current, &resting, entry)
		if !ok {
			skipped[entry.OrderID] = true
			continue
		}
		execs = append(execs, exec)
	}

	// Rest any unfilled remainder on the book. Market orders rest too;
	// they stay OPEN until filled, cancelled, or expired.
	current, _ = m.orders.Get(current.ID)
	if current.RemainingQuantity > 0 && current.Status == domain.OrderStatusOpen {
		b.insert(current.Side, EntryFor(&current))
	}

	*order = current
	return execs, nil
}

// nextCandidate returns the highest-priority resting entry on the opposite
// side that is price-compatible with the order, skipping entries already
// given up on during this pass.
func (m *Matcher) nextCandidate(b *book, order *domain.Order, skipped map[string]bool) (BookEntry, bool) {
	var candidate BookEntry
	var found bool
	b.walk(order.Side.Opposite(), func(e BookEntry) bool {
		if skipped[e.OrderID] {
			return true
		}
		if crossable(order, e) {
			candidate, found = e, true
			return false
		}
		// Incompatible priced entries may still be followed by resting
		// market orders, which sort last; keep walking.
		return true
	})
	return candidate, found
}

// settleWithRetry executes one match against the candidate, re-reading
// state and retrying on a settlement conflict. Conflicts are a local,
// retry-able condition and are never surfaced to the submitter. Returns
// false when the candidate should be abandoned; current is refreshed to
// the incoming order's latest state either way.
func (m *Matcher) settleWithRetry(b *book, current, resting *domain.Order, entry BookEntry) (domain.Execution, bool) {
	for attempt := 0; ; attempt++ {
		qty := current.RemainingQuantity
		if resting.RemainingQuantity < qty {
			qty = resting.RemainingQuantity
		}
		price := executionPrice(current, entry)

		buy, sell := *current, *resting
		if current.Side != domain.OrderSideBuy {
			buy, sell = *resting, *current
		}

		exec, updBuy, updSell, err := m.recorder.Settle(buy, sell, qty, price)
		if err == nil {
			if current.Side == domain.OrderSideBuy {
				*current, *resting = updBuy, updSell
			} else {
				*current, *resting = updSell, updBuy
			}
			return exec, true
		}

		if !errors.Is(err, domain.ErrConcurrentModification) {
			// The candidate vanished underneath us; drop it from the book.
			b.remove(entry.OrderID)
			m.refresh(current)
			return domain.Execution{}, false
		}

		if attempt >= m.settleRetries {
			m.log.WithField("order_id", entry.OrderID).Debug("settlement retry budget exhausted, skipping candidate")
			m.refresh(current)
			return domain.Execution{}, false
		}

		// Stale read: re-fetch both sides and recompute the match.
		m.refresh(current)
		re, err := m.orders.Get(entry.OrderID)
		if err != nil || re.Status != domain.OrderStatusOpen || re.RemainingQuantity <= 0 {
			b.remove(entry.OrderID)
			return domain.Execution{}, false
		}
		*resting = re
		if current.RemainingQuantity <= 0 {
			return domain.Execution{}, false
		}
	}
}

func (m *Matcher) refresh(o *domain.Order) {
	if latest, err := m.orders.Get(o.ID); err == nil {
		*o = latest
	}
}

// Cancel cancels an OPEN order on behalf of its owner. The security's book
// lock is acquired so a cancel and an in-flight matching pass on the same
// book serialize; whichever commits first wins, and the store's status
// check makes the loser fail cleanly.
func (m *Matcher) Cancel(orderID, requesterID string) (domain.Order, error) {
	o, err := m.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	b := m.books.getOrCreate(o.Key())
	b.mu.Lock()
	defer b.mu.Unlock()

	updated, err := m.orders.Cancel(orderID, requesterID)
	if err != nil {
		return domain.Order{}, err
	}
	b.remove(orderID)
	metrics.OrdersCancelledTotal.Inc()
	return updated, nil
}
