// Package postgres provides a write-behind archive of the engine's
// immutable records — executions, trades, and audit entries — in
// PostgreSQL. The in-memory stores remain authoritative; the archive
// exists for durability and offline queries and is rebuildable.
package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/evanmarshall/matchbook/internal/audit"
	"github.com/evanmarshall/matchbook/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id            TEXT PRIMARY KEY,
	buy_order_id  TEXT NOT NULL,
	sell_order_id TEXT NOT NULL,
	quantity      BIGINT NOT NULL,
	price         BIGINT NOT NULL,
	gross_amount  BIGINT NOT NULL,
	buyer_fee     BIGINT NOT NULL,
	seller_fee    BIGINT NOT NULL,
	status        TEXT NOT NULL,
	settled_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id                TEXT PRIMARY KEY,
	execution_id      TEXT NOT NULL,
	company_id        TEXT NOT NULL,
	security_class_id TEXT NOT NULL,
	price             BIGINT NOT NULL,
	quantity          BIGINT NOT NULL,
	gross_amount      BIGINT NOT NULL,
	traded_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	action      TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS trades_security_idx ON trades (company_id, security_class_id, traded_at);
CREATE INDEX IF NOT EXISTS audit_entity_idx ON audit_log (entity_type, entity_id);
`

// executionRow mirrors domain.Execution for sqlx named queries.
type executionRow struct {
	ID          string    `db:"id"`
	BuyOrderID  string    `db:"buy_order_id"`
	SellOrderID string    `db:"sell_order_id"`
	Quantity    int64     `db:"quantity"`
	Price       int64     `db:"price"`
	GrossAmount int64     `db:"gross_amount"`
	BuyerFee    int64     `db:"buyer_fee"`
	SellerFee   int64     `db:"seller_fee"`
	Status      string    `db:"status"`
	SettledAt   time.Time `db:"settled_at"`
}

type tradeRow struct {
	ID              string    `db:"id"`
	ExecutionID     string    `db:"execution_id"`
	CompanyID       string    `db:"company_id"`
	SecurityClassID string    `db:"security_class_id"`
	Price           int64     `db:"price"`
	Quantity        int64     `db:"quantity"`
	GrossAmount     int64     `db:"gross_amount"`
	TradedAt        time.Time `db:"traded_at"`
}

// Archive holds the database handle. It implements engine.Ledger and
// audit.Sink.
type Archive struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL with the given DSN.
func Open(dsn string) (*Archive, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

// NewArchive wraps an existing connection.
func NewArchive(db *sqlx.DB) *Archive {
	return &Archive{db: db}
}

// EnsureSchema creates the archive tables when missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, schema)
	return err
}

// SaveExecution inserts an execution row. Conflicting IDs are ignored;
// executions are immutable so a replay is harmless.
func (a *Archive) SaveExecution(ctx context.Context, e domain.Execution) error {
	_, err := a.db.NamedExecContext(ctx, `
		INSERT INTO executions (id, buy_order_id, sell_order_id, quantity, price, gross_amount, buyer_fee, seller_fee, status, settled_at)
		VALUES (:id, :buy_order_id, :sell_order_id, :quantity, :price, :gross_amount, :buyer_fee, :seller_fee, :status, :settled_at)
		ON CONFLICT (id) DO NOTHING`,
		executionRow{
			ID:          e.ID,
			BuyOrderID:  e.BuyOrderID,
			SellOrderID: e.SellOrderID,
			Quantity:    e.Quantity,
			Price:       e.Price,
			GrossAmount: e.GrossAmount,
			BuyerFee:    e.BuyerFee,
			SellerFee:   e.SellerFee,
			Status:      string(e.Status),
			SettledAt:   e.SettledAt,
		})
	return err
}

// SaveTrade inserts a trade row.
func (a *Archive) SaveTrade(ctx context.Context, t domain.Trade) error {
	_, err := a.db.NamedExecContext(ctx, `
		INSERT INTO trades (id, execution_id, company_id, security_class_id, price, quantity, gross_amount, traded_at)
		VALUES (:id, :execution_id, :company_id, :security_class_id, :price, :quantity, :gross_amount, :traded_at)
		ON CONFLICT (id) DO NOTHING`,
		tradeRow{
			ID:              t.ID,
			ExecutionID:     t.ExecutionID,
			CompanyID:       t.CompanyID,
			SecurityClassID: t.SecurityClassID,
			Price:           t.Price,
			Quantity:        t.Quantity,
			GrossAmount:     t.GrossAmount,
			TradedAt:        t.TradedAt,
		})
	return err
}

// Write archives an audit record, satisfying audit.Sink.
func (a *Archive) Write(ctx context.Context, rec audit.Record) error {
	_, err := a.db.NamedExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, user_id, occurred_at)
		VALUES (:id, :entity_type, :entity_id, :action, :user_id, :occurred_at)
		ON CONFLICT (id) DO NOTHING`, rec)
	return err
}

// Close closes the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
