package store

import (
	"sync"

	"github.com/evanmarshall/matchbook/internal/domain"
)

// TradeStore is a thread-safe in-memory store for trades, keyed by
// security. Trades are append-only and chronological.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[domain.SecurityKey][]domain.Trade
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[domain.SecurityKey][]domain.Trade),
	}
}

// Append adds a trade to the security's chronological tape.
func (s *TradeStore) Append(t domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.SecurityKey{CompanyID: t.CompanyID, SecurityClassID: t.SecurityClassID}
	s.trades[key] = append(s.trades[key], t)
}

// ListBySecurity returns all trades for a security in chronological order.
// Returns an empty slice when none exist.
func (s *TradeStore) ListBySecurity(key domain.SecurityKey) []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[key]
	result := make([]domain.Trade, len(trades))
	copy(result, trades)
	return result
}
