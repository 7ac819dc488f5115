package engine

import (
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/evanmarshall/matchbook/internal/domain"
)

// BookEntry represents a single OPEN order resting on the book. Entries
// carry only the sort key; current quantities are always re-read from the
// order store, so the index never serves stale fill state.
type BookEntry struct {
	OrderID   string
	Price     int64 // cents, meaningful only when HasPrice
	HasPrice  bool  // false for resting market orders
	CreatedAt time.Time
}

// buyLess defines ordering for the buy side: priced entries before
// unpriced ones, price descending, then created_at ascending, then
// order_id ascending. Min() returns the best bid.
//
// Resting market orders sort after every priced order: they accept any
// price, so priced orders keep priority among candidates.
func buyLess(a, b BookEntry) bool {
	if a.HasPrice != b.HasPrice {
		return a.HasPrice
	}
	if a.HasPrice && a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// sellLess defines ordering for the sell side: priced entries before
// unpriced ones, price ascending, then created_at ascending, then
// order_id ascending. Min() returns the best ask.
func sellLess(a, b BookEntry) bool {
	if a.HasPrice != b.HasPrice {
		return a.HasPrice
	}
	if a.HasPrice && a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// book maintains the buy and sell sides for a single security using
// B-trees with a secondary index for O(log n) removal by order ID.
//
// The embedded mutex serializes matching, cancellation, and expiry passes
// per security; the matcher holds it for an entire pass.
type book struct {
	key   domain.SecurityKey
	mu    sync.Mutex
	buys  *btree.BTreeG[BookEntry]
	sells *btree.BTreeG[BookEntry]
	index map[string]BookEntry // order_id → entry
}

func newBook(key domain.SecurityKey) *book {
	const degree = 32
	return &book{
		key:   key,
		buys:  btree.NewG[BookEntry](degree, buyLess),
		sells: btree.NewG[BookEntry](degree, sellLess),
		index: make(map[string]BookEntry),
	}
}

func (b *book) tree(side domain.OrderSide) *btree.BTreeG[BookEntry] {
	if side == domain.OrderSideBuy {
		return b.buys
	}
	return b.sells
}

// insert adds a resting order's entry to the given side.
func (b *book) insert(side domain.OrderSide, entry BookEntry) {
	b.tree(side).ReplaceOrInsert(entry)
	b.index[entry.OrderID] = entry
}

// remove deletes an order from the book by order ID using the secondary
// index. It tries both sides since the caller may not know which side the
// order is on.
func (b *book) remove(orderID string) {
	entry, ok := b.index[orderID]
	if !ok {
		return
	}
	delete(b.index, orderID)
	// Delete is a no-op when the entry isn't found on a side.
	b.buys.Delete(entry)
	b.sells.Delete(entry)
}

// walk iterates the side in priority order. The callback returns true to
// continue, false to stop.
func (b *book) walk(side domain.OrderSide, fn func(BookEntry) bool) {
	b.tree(side).Ascend(fn)
}

// bestPriced returns the best priced entry on the given side: the highest
// buy or the lowest sell. Resting market orders are skipped; they carry no
// quotable price.
func (b *book) bestPriced(side domain.OrderSide) (BookEntry, bool) {
	var best BookEntry
	var found bool
	b.tree(side).Ascend(func(e BookEntry) bool {
		if !e.HasPrice {
			return false
		}
		best, found = e, true
		return false
	})
	return best, found
}

func (b *book) count(side domain.OrderSide) int {
	return b.tree(side).Len()
}

// BookIndex is a thread-safe map of security → book. It is a read-mostly
// cache over the order store: it only ever holds OPEN orders, and it can
// be rebuilt from store state at any time.
type BookIndex struct {
	mu    sync.RWMutex
	books map[domain.SecurityKey]*book
}

// NewBookIndex creates an empty BookIndex.
func NewBookIndex() *BookIndex {
	return &BookIndex{
		books: make(map[domain.SecurityKey]*book),
	}
}

// getOrCreate returns the book for the security, creating one if needed.
func (bi *BookIndex) getOrCreate(key domain.SecurityKey) *book {
	bi.mu.RLock()
	b, ok := bi.books[key]
	bi.mu.RUnlock()
	if ok {
		return b
	}

	bi.mu.Lock()
	defer bi.mu.Unlock()
	// Double-check after acquiring write lock.
	if b, ok = bi.books[key]; ok {
		return b
	}
	b = newBook(key)
	bi.books[key] = b
	return b
}

// EntryFor builds the book entry for an order about to rest.
func EntryFor(o *domain.Order) BookEntry {
	e := BookEntry{
		OrderID:   o.ID,
		CreatedAt: o.CreatedAt,
	}
	if o.Price != nil {
		e.Price = *o.Price
		e.HasPrice = true
	}
	return e
}

// TopOfBook returns up to depth resting entries per side in priority
// order, with each entry's current remaining quantity resolved through
// remaining. Entries whose remaining resolves to 0 are skipped.
func (bi *BookIndex) TopOfBook(key domain.SecurityKey, depth int, remaining func(orderID string) (int64, bool)) (buys, sells []RestingLevel) {
	b := bi.getOrCreate(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	collect := func(side domain.OrderSide) []RestingLevel {
		levels := make([]RestingLevel, 0, depth)
		b.walk(side, func(e BookEntry) bool {
			qty, ok := remaining(e.OrderID)
			if !ok || qty <= 0 {
				return true
			}
			lvl := RestingLevel{Quantity: qty, CreatedAt: e.CreatedAt}
			if e.HasPrice {
				p := e.Price
				lvl.Price = &p
			}
			levels = append(levels, lvl)
			return len(levels) < depth
		})
		return levels
	}

	return collect(domain.OrderSideBuy), collect(domain.OrderSideSell)
}

// RestingLevel is one resting order as exposed by book-depth queries:
// price (nil for market orders), remaining quantity, and age. Ownership is
// deliberately not exposed.
type RestingLevel struct {
	Price     *int64
	Quantity  int64
	CreatedAt time.Time
}
