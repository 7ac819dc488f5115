package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/evanmarshall/matchbook/internal/domain"
	"github.com/evanmarshall/matchbook/internal/metrics"
	"github.com/evanmarshall/matchbook/internal/store"
)

// AuditAppender receives immutable audit records for state-changing
// actions. Appends are best-effort and must never block or fail the
// caller's success path.
type AuditAppender interface {
	Append(entityType, entityID, action, userID string)
}

// Ledger archives immutable settlement records to durable storage.
// Archival is write-behind and best-effort; the in-memory stores stay
// authoritative.
type Ledger interface {
	SaveExecution(ctx context.Context, e domain.Execution) error
	SaveTrade(ctx context.Context, t domain.Trade) error
}

// Recorder is the atomic unit of settlement. Given a buy and a sell order
// and a matched quantity and price, it applies the fill to both orders,
// creates the Execution and Trade records, refreshes the book snapshot,
// and emits audit records — all-or-nothing with respect to order state.
//
// Settle must be called with the security's book lock held; the store's
// compare-and-swap on remaining quantity is the last line of defense
// against a concurrent fill of either order.
type Recorder struct {
	orders    *store.OrderStore
	execs     *store.ExecutionStore
	trades    *store.TradeStore
	snapshots *store.SnapshotStore
	books     *BookIndex
	fees      domain.FeeSchedule
	audit     AuditAppender
	ledger    Ledger // nil when archival is disabled
	log       *logrus.Logger
}

// NewRecorder creates a Recorder. ledger may be nil.
func NewRecorder(
	orders *store.OrderStore,
	execs *store.ExecutionStore,
	trades *store.TradeStore,
	snapshots *store.SnapshotStore,
	books *BookIndex,
	fees domain.FeeSchedule,
	audit AuditAppender,
	ledger Ledger,
	log *logrus.Logger,
) *Recorder {
	return &Recorder{
		orders:    orders,
		execs:     execs,
		trades:    trades,
		snapshots: snapshots,
		books:     books,
		fees:      fees,
		audit:     audit,
		ledger:    ledger,
		log:       log,
	}
}

// Settle records one match between buy and sell for qty shares at price.
// The callers' order snapshots state the remaining quantities they
// observed; if either order's remaining has moved since, Settle applies
// nothing and returns domain.ErrConcurrentModification so the matcher can
// re-read and retry.
//
// On success it returns the created execution and the post-fill state of
// both orders.
func (r *Recorder) Settle(buy, sell domain.Order, qty, price int64) (domain.Execution, domain.Order, domain.Order, error) {
	// Two-phase compare-and-swap: the buy leg first, then the sell leg,
	// reverting the buy leg if the sell leg loses its swap.
	updatedBuy, err := r.orders.ApplyFill(buy.ID, buy.RemainingQuantity, qty)
	if err != nil {
		metrics.SettlementConflicts.Inc()
		return domain.Execution{}, domain.Order{}, domain.Order{}, err
	}
	updatedSell, err := r.orders.ApplyFill(sell.ID, sell.RemainingQuantity, qty)
	if err != nil {
		r.orders.RevertFill(buy.ID, qty)
		metrics.SettlementConflicts.Inc()
		return domain.Execution{}, domain.Order{}, domain.Order{}, err
	}

	now := time.Now()
	gross := qty * price
	exec := domain.Execution{
		ID:          uuid.New().String(),
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Quantity:    qty,
		Price:       price,
		GrossAmount: gross,
		BuyerFee:    r.fees.Fee(gross),
		SellerFee:   r.fees.Fee(gross),
		Status:      domain.ExecutionStatusSettled,
		SettledAt:   now,
	}
	r.execs.Append(exec)

	key := buy.Key()
	trade := domain.Trade{
		ID:              uuid.New().String(),
		ExecutionID:     exec.ID,
		CompanyID:       key.CompanyID,
		SecurityClassID: key.SecurityClassID,
		Price:           price,
		Quantity:        qty,
		GrossAmount:     gross,
		TradedAt:        now,
	}
	r.trades.Append(trade)

	// Drop fully filled orders from the book before quoting the snapshot.
	b := r.books.getOrCreate(key)
	if updatedBuy.RemainingQuantity == 0 {
		b.remove(updatedBuy.ID)
	}
	if updatedSell.RemainingQuantity == 0 {
		b.remove(updatedSell.ID)
	}
	r.refreshSnapshot(b, key, price)

	r.audit.Append("Order", buy.ID, "EXECUTE", buy.OwnerID)
	r.audit.Append("Order", sell.ID, "EXECUTE", sell.OwnerID)

	metrics.ExecutionsTotal.Inc()
	metrics.ExecutedSharesTotal.Add(float64(qty))

	if r.ledger != nil {
		go r.archive(exec, trade)
	}

	return exec, updatedBuy, updatedSell, nil
}

// refreshSnapshot recomputes the security's best bid/ask from the book and
// upserts the snapshot row with the execution's price as last trade.
// Caller holds the book lock.
func (r *Recorder) refreshSnapshot(b *book, key domain.SecurityKey, lastTrade int64) {
	var bestBid, bestAsk *int64
	if e, ok := b.bestPriced(domain.OrderSideBuy); ok {
		p := e.Price
		bestBid = &p
	}
	if e, ok := b.bestPriced(domain.OrderSideSell); ok {
		p := e.Price
		bestAsk = &p
	}
	last := lastTrade
	r.snapshots.Upsert(key, bestBid, bestAsk, &last)
}

// archive writes the execution and trade rows to the durable ledger.
// Failures are logged and never surfaced; the archive is rebuildable.
func (r *Recorder) archive(exec domain.Execution, trade domain.Trade) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.ledger.SaveExecution(ctx, exec); err != nil {
		r.log.WithError(err).WithField("execution_id", exec.ID).Warn("ledger: execution archive failed")
	}
	if err := r.ledger.SaveTrade(ctx, trade); err != nil {
		r.log.WithError(err).WithField("trade_id", trade.ID).Warn("ledger: trade archive failed")
	}
}
