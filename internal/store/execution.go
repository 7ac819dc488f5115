package store

import (
	"sync"

	"github.com/evanmarshall/matchbook/internal/domain"
)

// ExecutionStore is a thread-safe append-only store for executions, with a
// secondary index by participating order ID. Executions are immutable once
// appended.
type ExecutionStore struct {
	mu      sync.RWMutex
	execs   []domain.Execution
	byOrder map[string][]int // order_id → indexes into execs (chronological)
}

// NewExecutionStore creates an empty ExecutionStore.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		byOrder: make(map[string][]int),
	}
}

// Append records an execution against both of its orders.
func (s *ExecutionStore) Append(e domain.Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.execs)
	s.execs = append(s.execs, e)
	s.byOrder[e.BuyOrderID] = append(s.byOrder[e.BuyOrderID], idx)
	s.byOrder[e.SellOrderID] = append(s.byOrder[e.SellOrderID], idx)
}

// ListByOrder returns all executions referencing the given order, in
// chronological order. Returns an empty slice when none exist.
func (s *ExecutionStore) ListByOrder(orderID string) []domain.Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.byOrder[orderID]
	result := make([]domain.Execution, 0, len(idxs))
	for _, i := range idxs {
		result = append(result, s.execs[i])
	}
	return result
}

// Count returns the total number of executions recorded.
func (s *ExecutionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.execs)
}
