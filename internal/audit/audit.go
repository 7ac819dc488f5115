// Package audit appends immutable audit records for every state-changing
// action in the engine: order creation, cancellation, expiry, and each
// execution against both participant orders.
//
// Emission is decoupled from the business transaction: Append never
// blocks, and a sink failure is logged, never propagated. Matching success
// must not depend on audit success.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/evanmarshall/matchbook/internal/metrics"
)

// Record is one immutable audit entry.
type Record struct {
	ID         string    `json:"id" db:"id"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Action     string    `json:"action" db:"action"`
	UserID     string    `json:"user_id" db:"user_id"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// Sink receives audit records. Writes are best-effort; a sink error only
// gets logged.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// Emitter buffers audit records on a channel and drains them to its sinks
// from a single background goroutine. When the buffer is full the record
// is dropped and counted rather than blocking the caller.
type Emitter struct {
	queue chan Record
	sinks []Sink
	log   *logrus.Logger
	wg    sync.WaitGroup
}

// NewEmitter creates an Emitter with the given queue capacity and sinks.
func NewEmitter(buffer int, log *logrus.Logger, sinks ...Sink) *Emitter {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Emitter{
		queue: make(chan Record, buffer),
		sinks: sinks,
		log:   log,
	}
}

// Start launches the drain goroutine. It stops after the context is
// cancelled and the queue has been drained.
func (e *Emitter) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case rec := <-e.queue:
				e.write(rec)
			case <-ctx.Done():
				// Drain whatever is already queued, then stop.
				for {
					select {
					case rec := <-e.queue:
						e.write(rec)
					default:
						return
					}
				}
			}
		}
	}()
}

// Wait blocks until the drain goroutine has exited.
func (e *Emitter) Wait() {
	e.wg.Wait()
}

// Append enqueues a record. It never blocks: under backpressure the record
// is dropped and counted.
func (e *Emitter) Append(entityType, entityID, action, userID string) {
	rec := Record{
		ID:         uuid.New().String(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     userID,
		OccurredAt: time.Now(),
	}
	select {
	case e.queue <- rec:
	default:
		metrics.AuditDropped.Inc()
		e.log.WithFields(logrus.Fields{
			"entity_type": entityType,
			"entity_id":   entityID,
			"action":      action,
		}).Warn("audit queue full, record dropped")
	}
}

func (e *Emitter) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, s := range e.sinks {
		if err := s.Write(ctx, rec); err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"entity_type": rec.EntityType,
				"entity_id":   rec.EntityID,
				"action":      rec.Action,
			}).Warn("audit sink write failed")
		}
	}
}
