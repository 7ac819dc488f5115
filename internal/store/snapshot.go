package store

import (
	"sync"
	"time"

	"github.com/evanmarshall/matchbook/internal/domain"
)

// SnapshotStore holds the per-security order-book snapshot cache: one row
// per security with upsert semantics. Last-writer-wins is acceptable here;
// the snapshot is a display cache, not authoritative state.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[domain.SecurityKey]domain.OrderBookSnapshot
}

// NewSnapshotStore creates an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[domain.SecurityKey]domain.OrderBookSnapshot),
	}
}

// Upsert replaces the snapshot row for the security.
func (s *SnapshotStore) Upsert(key domain.SecurityKey, bestBid, bestAsk, lastTrade *int64) domain.OrderBookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.OrderBookSnapshot{
		CompanyID:       key.CompanyID,
		SecurityClassID: key.SecurityClassID,
		BestBidPrice:    bestBid,
		BestAskPrice:    bestAsk,
		LastTradePrice:  lastTrade,
		UpdatedAt:       time.Now(),
	}
	s.snapshots[key] = snap
	return snap
}

// Get returns the snapshot for the security and whether one exists.
func (s *SnapshotStore) Get(key domain.SecurityKey) (domain.OrderBookSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[key]
	return snap, ok
}
