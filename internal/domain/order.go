package domain

import "time"

// OrderKind distinguishes market orders from limit and stop-limit orders.
type OrderKind string

const (
	OrderKindMarket    OrderKind = "MARKET"
	OrderKindLimit     OrderKind = "LIMIT"
	OrderKindStopLimit OrderKind = "STOP_LIMIT"
)

// Priced reports whether this kind of order carries a limit price.
func (k OrderKind) Priced() bool {
	return k == OrderKindLimit || k == OrderKindStopLimit
}

// OrderSide indicates whether an order buys or sells a security.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the other side of the book.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// Order represents a standing instruction to buy or sell a quantity of a
// security class issued by a company.
//
// Invariants maintained by the store: FilledQuantity + RemainingQuantity
// always equals Quantity, and Status is FILLED exactly when
// RemainingQuantity reaches 0. A market order carries no price; limit and
// stop-limit orders always do.
type Order struct {
	ID                string
	OwnerID           string
	CompanyID         string
	SecurityClassID   string
	Kind              OrderKind
	Side              OrderSide
	Quantity          int64
	Price             *int64 // cents, nil for market orders
	FilledQuantity    int64
	RemainingQuantity int64
	Status            OrderStatus
	CreatedAt         time.Time
	ExpiresAt         *time.Time
}

// Key returns the security the order trades.
func (o *Order) Key() SecurityKey {
	return SecurityKey{CompanyID: o.CompanyID, SecurityClassID: o.SecurityClassID}
}

// SecurityKey identifies one tradable security: a security class issued by
// a company. It keys order books, trade logs, and book snapshots.
type SecurityKey struct {
	CompanyID       string
	SecurityClassID string
}
