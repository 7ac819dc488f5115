package domain

import "time"

// Trade is the public market-data projection of an Execution: it carries
// no order ownership, only what the tape shows. Trades form an append-only
// log per security, derivable from Execution + Order state.
type Trade struct {
	ID              string
	ExecutionID     string
	CompanyID       string
	SecurityClassID string
	Price           int64 // cents
	Quantity        int64
	GrossAmount     int64 // cents
	TradedAt        time.Time
}
