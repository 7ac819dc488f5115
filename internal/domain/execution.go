package domain

import "time"

// ExecutionStatus represents the settlement state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusSettled ExecutionStatus = "SETTLED"
)

// Execution represents one atomic match between exactly two orders: a buy
// and a sell, for a quantity at a price. Executions are created once by the
// settlement recorder and never mutated afterwards.
type Execution struct {
	ID          string
	BuyOrderID  string
	SellOrderID string
	Quantity    int64
	Price       int64 // cents
	GrossAmount int64 // Quantity × Price, cents
	BuyerFee    int64 // cents
	SellerFee   int64 // cents
	Status      ExecutionStatus
	SettledAt   time.Time
}
