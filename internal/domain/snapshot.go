package domain

import "time"

// OrderBookSnapshot is the cached per-security view of the book: best bid,
// best ask, and last trade price. One row per security, upserted by the
// settlement recorder after every execution. It is a display cache, always
// rebuildable from order and trade state, never authoritative.
type OrderBookSnapshot struct {
	CompanyID       string
	SecurityClassID string
	BestBidPrice    *int64 // cents, nil when no open priced buy order
	BestAskPrice    *int64 // cents, nil when no open priced sell order
	LastTradePrice  *int64 // cents, nil until the first execution
	UpdatedAt       time.Time
}
