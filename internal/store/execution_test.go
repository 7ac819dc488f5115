package store

import (
	"testing"
	"time"

	"github.com/evanmarshall/matchbook/internal/domain"
)

func TestExecutionStore_AppendAndListByOrder(t *testing.T) {
	s := NewExecutionStore()

	e1 := domain.Execution{ID: "e1", BuyOrderID: "buy1", SellOrderID: "sell1", Quantity: 100, Price: 500, SettledAt: time.Now()}
	e2 := domain.Execution{ID: "e2", BuyOrderID: "buy1", SellOrderID: "sell2", Quantity: 50, Price: 500, SettledAt: time.Now()}
	s.Append(e1)
	s.Append(e2)

	if s.Count() != 2 {
		t.Fatalf("expected 2 executions, got %d", s.Count())
	}

	// The buy order took part in both executions, in order.
	buyExecs := s.ListByOrder("buy1")
	if len(buyExecs) != 2 {
		t.Fatalf("expected 2 executions for buy1, got %d", len(buyExecs))
	}
	if buyExecs[0].ID != "e1" || buyExecs[1].ID != "e2" {
		t.Errorf("expected chronological [e1 e2], got [%s %s]", buyExecs[0].ID, buyExecs[1].ID)
	}

	// Each sell order appears in exactly one.
	if got := s.ListByOrder("sell2"); len(got) != 1 || got[0].ID != "e2" {
		t.Errorf("unexpected executions for sell2: %+v", got)
	}

	if got := s.ListByOrder("unknown"); len(got) != 0 {
		t.Errorf("expected empty slice for unknown order, got %d", len(got))
	}
}

func TestTradeStore_AppendAndListBySecurity(t *testing.T) {
	s := NewTradeStore()
	key := domain.SecurityKey{CompanyID: "acme", SecurityClassID: "common"}

	s.Append(domain.Trade{ID: "t1", CompanyID: "acme", SecurityClassID: "common", Price: 500, Quantity: 100})
	s.Append(domain.Trade{ID: "t2", CompanyID: "acme", SecurityClassID: "common", Price: 510, Quantity: 50})
	s.Append(domain.Trade{ID: "t3", CompanyID: "other", SecurityClassID: "common", Price: 900, Quantity: 10})

	got := s.ListBySecurity(key)
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	if got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("expected chronological [t1 t2], got [%s %s]", got[0].ID, got[1].ID)
	}

	empty := s.ListBySecurity(domain.SecurityKey{CompanyID: "none", SecurityClassID: "none"})
	if len(empty) != 0 {
		t.Errorf("expected empty tape, got %d", len(empty))
	}
}

func TestSnapshotStore_UpsertAndGet(t *testing.T) {
	s := NewSnapshotStore()
	key := domain.SecurityKey{CompanyID: "acme", SecurityClassID: "common"}

	if _, ok := s.Get(key); ok {
		t.Fatal("expected no snapshot before first upsert")
	}

	bid, ask, last := int64(490), int64(510), int64(500)
	snap := s.Upsert(key, &bid, &ask, &last)
	if snap.CompanyID != "acme" || snap.SecurityClassID != "common" {
		t.Errorf("unexpected snapshot identity: %+v", snap)
	}
	if *snap.BestBidPrice != 490 || *snap.BestAskPrice != 510 || *snap.LastTradePrice != 500 {
		t.Errorf("unexpected snapshot prices: %+v", snap)
	}

	// Upsert replaces the whole row, including clearing sides.
	snap = s.Upsert(key, nil, nil, &last)
	if snap.BestBidPrice != nil || snap.BestAskPrice != nil {
		t.Error("expected cleared bid/ask after upsert with nil sides")
	}

	got, ok := s.Get(key)
	if !ok {
		t.Fatal("expected snapshot after upsert")
	}
	if got.BestBidPrice != nil || *got.LastTradePrice != 500 {
		t.Errorf("unexpected stored snapshot: %+v", got)
	}
}
