package engine

import (
	"testing"
	"time"

	"github.com/evanmarshall/matchbook/internal/domain"
)

func entry(id string, price int64, createdAt time.Time) BookEntry {
	return BookEntry{OrderID: id, Price: price, HasPrice: true, CreatedAt: createdAt}
}

func marketEntry(id string, createdAt time.Time) BookEntry {
	return BookEntry{OrderID: id, CreatedAt: createdAt}
}

func collectIDs(b *book, side domain.OrderSide) []string {
	var ids []string
	b.walk(side, func(e BookEntry) bool {
		ids = append(ids, e.OrderID)
		return true
	})
	return ids
}

func TestBook_BuySideOrdering(t *testing.T) {
	base := time.Now()
	b := newBook(domain.SecurityKey{CompanyID: "acme", SecurityClassID: "common"})

	// Inserted out of order on purpose.
	b.insert(domain.OrderSideBuy, entry("low", 900, base))
	b.insert(domain.OrderSideBuy, marketEntry("mkt", base))
	b.insert(domain.OrderSideBuy, entry("high", 1100, base.Add(2*time.Second)))
	b.insert(domain.OrderSideBuy, entry("mid-late", 1000, base.Add(time.Second)))
	b.insert(domain.OrderSideBuy, entry("mid-early", 1000, base))

	got := collectIDs(b, domain.OrderSideBuy)
	want := []string{"high", "mid-early", "mid-late", "low", "mkt"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("buy side order = %v, want %v", got, want)
		}
	}
}

func TestBook_SellSideOrdering(t *testing.T) {
	base := time.Now()
	b := newBook(domain.SecurityKey{CompanyID: "acme", SecurityClassID: "common"})

	b.insert(domain.OrderSideSell, entry("high", 1100, base))
	b.insert(domain.OrderSideSell, marketEntry("mkt", base))
	b.insert(domain.OrderSideSell, entry("low-late", 900, base.Add(time.Second)))
	b.insert(domain.OrderSideSell, entry("low-early", 900, base))

	got := collectIDs(b, domain.OrderSideSell)
	want := []string{"low-early", "low-late", "high", "mkt"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sell side order = %v, want %v", got, want)
		}
	}
}

func TestBook_SameInstantTieBreaksByOrderID(t *testing.T) {
	ts := time.Now()
	b := newBook(domain.SecurityKey{CompanyID: "acme", SecurityClassID: "common"})
	b.insert(domain.OrderSideBuy, entry("b", 1000, ts))
	b.insert(domain.OrderSideBuy, entry("a", 1000, ts))

	got := collectIDs(b, domain.OrderSideBuy)
	if got[0] != "a" || got[1] != "b" {
		t.Errorf("expected deterministic [a b], got %v", got)
	}
}

func TestBook_RemoveByOrderID(t *testing.T) {
	base := time.Now()
	b := newBook(domain.SecurityKey{CompanyID: "acme", SecurityClassID: "common"})
	b.insert(domain.OrderSideBuy, entry("o1", 1000, base))
	b.insert(domain.OrderSideSell, entry("o2", 1100, base))

	b.remove("o1")
	if b.count(domain.OrderSideBuy) != 0 {
		t.Error("expected buy side empty after remove")
	}
	if b.count(domain.OrderSideSell) != 1 {
		t.Error("sell side must be unaffected")
	}

	// Removing twice, or removing an unknown ID, is a no-op.
	b.remove("o1")
	b.remove("missing")
	if b.count(domain.OrderSideSell) != 1 {
		t.Error("no-op removes must not disturb the book")
	}
}

func TestBook_BestPricedSkipsMarketOrders(t *testing.T) {
	base := time.Now()
	b := newBook(domain.SecurityKey{CompanyID: "acme", SecurityClassID: "common"})

	if _, ok := b.bestPriced(domain.OrderSideBuy); ok {
		t.Fatal("empty side must have no best price")
	}

	b.insert(domain.OrderSideBuy, marketEntry("mkt", base))
	if _, ok := b.bestPriced(domain.OrderSideBuy); ok {
		t.Fatal("a lone market order must not quote a best price")
	}

	b.insert(domain.OrderSideBuy, entry("o1", 950, base))
	b.insert(domain.OrderSideBuy, entry("o2", 1000, base))
	best, ok := b.bestPriced(domain.OrderSideBuy)
	if !ok || best.Price != 1000 {
		t.Errorf("best bid = %+v, want price 1000", best)
	}
}

func TestBookIndex_TopOfBook(t *testing.T) {
	base := time.Now()
	bi := NewBookIndex()
	key := domain.SecurityKey{CompanyID: "acme", SecurityClassID: "common"}
	b := bi.getOrCreate(key)

	b.insert(domain.OrderSideBuy, entry("b1", 1000, base))
	b.insert(domain.OrderSideBuy, entry("b2", 990, base))
	b.insert(domain.OrderSideBuy, entry("b3", 980, base))
	b.insert(domain.OrderSideSell, entry("s1", 1010, base))
	b.insert(domain.OrderSideSell, marketEntry("s2", base))

	remaining := map[string]int64{"b1": 100, "b2": 0, "b3": 25, "s1": 40, "s2": 60}
	lookup := func(id string) (int64, bool) {
		q, ok := remaining[id]
		return q, ok
	}

	buys, sells := bi.TopOfBook(key, 2, lookup)

	// b2 has nothing left and is skipped; depth 2 still fills from b3.
	if len(buys) != 2 || *buys[0].Price != 1000 || buys[0].Quantity != 100 || *buys[1].Price != 980 {
		t.Errorf("unexpected buy levels: %+v", buys)
	}
	if len(sells) != 2 {
		t.Fatalf("expected 2 sell levels, got %d", len(sells))
	}
	if *sells[0].Price != 1010 || sells[0].Quantity != 40 {
		t.Errorf("unexpected first sell level: %+v", sells[0])
	}
	if sells[1].Price != nil {
		t.Errorf("market order level must have nil price, got %+v", sells[1])
	}
}

func TestEntryFor(t *testing.T) {
	price := int64(1000)
	now := time.Now()
	limit := &domain.Order{ID: "o1", Price: &price, CreatedAt: now}
	e := EntryFor(limit)
	if !e.HasPrice || e.Price != 1000 || e.OrderID != "o1" || !e.CreatedAt.Equal(now) {
		t.Errorf("unexpected entry for limit order: %+v", e)
	}

	market := &domain.Order{ID: "o2", CreatedAt: now}
	e = EntryFor(market)
	if e.HasPrice {
		t.Errorf("market order entry must be unpriced: %+v", e)
	}
}
