package audit

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogSink writes audit records as structured log lines.
type LogSink struct {
	log *logrus.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log}
}

// Write logs the record at info level.
func (s *LogSink) Write(_ context.Context, rec Record) error {
	s.log.WithFields(logrus.Fields{
		"audit_id":    rec.ID,
		"entity_type": rec.EntityType,
		"entity_id":   rec.EntityID,
		"action":      rec.Action,
		"user_id":     rec.UserID,
		"occurred_at": rec.OccurredAt,
	}).Info("audit")
	return nil
}

// MemorySink retains records in memory. Used in tests and available as a
// queryable trail in single-process deployments.
type MemorySink struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write appends the record.
func (s *MemorySink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of all records written so far.
func (s *MemorySink) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// ByEntity returns records for one entity, in append order.
func (s *MemorySink) ByEntity(entityType, entityID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.EntityType == entityType && r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out
}
