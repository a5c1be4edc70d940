// Package domain holds the immutable identities and mutable residual state
// of orders and trades, adapted from the teacher's internal/trading/types
// order model but redefined around exact decimals and the order-state
// machine used by the matching engine.
package domain

import (
	"fmt"
	"time"

	"github.com/obmatch/matchcore/internal/decimal"
)

// Side is the side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Kind is the order type.
type Kind string

const (
	KindMarket     Kind = "MARKET"
	KindLimit      Kind = "LIMIT"
	KindStop       Kind = "STOP"
	KindStopLimit  Kind = "STOP_LIMIT"
)

// TimeInForce governs how long an order may rest and how partial fills are
// handled.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
	TIFGTD TimeInForce = "GTD"
)

// State is a position in the order lifecycle state machine described in
// spec §4.F. Terminal states are Filled, Cancelled, Expired, Rejected.
type State string

const (
	StatePendingTrigger State = "PENDING_TRIGGER"
	StateOpen           State = "OPEN"
	StatePartial        State = "PARTIAL"
	StateFilled         State = "FILLED"
	StateCancelled      State = "CANCELLED"
	StateExpired        State = "EXPIRED"
	StateRejected       State = "REJECTED"
)

// IsTerminal reports whether state cannot transition further.
func (s State) IsTerminal() bool {
	switch s {
	case StateFilled, StateCancelled, StateExpired, StateRejected:
		return true
	default:
		return false
	}
}

// Order is the mutable residual state of a single order. Once accepted it
// is owned exclusively by the single-writer matcher loop for its pair.
type Order struct {
	OrderID       string
	Pair          string
	UserID        string
	Side          Side
	Kind          Kind
	LimitPrice    decimal.Decimal
	HasLimitPrice bool
	StopPrice     decimal.Decimal
	HasStopPrice  bool
	TimeInForce   TimeInForce
	ExpiresAt     time.Time
	HasExpiresAt  bool

	OriginalQty  decimal.Decimal
	RemainingQty decimal.Decimal

	AcceptedSeq   uint64
	ClientOrderID string
	State         State

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRestable reports whether the order, if unfilled, may rest in the
// ladder (LIMIT only; MARKET never rests per spec §4.F).
func (o *Order) IsRestable() bool {
	return o.Kind == KindLimit
}

// Filled reports whether the order has no quantity left to fill.
func (o *Order) Filled() bool {
	return o.RemainingQty.IsZero()
}

// ExecutedQty returns the quantity already traded away: original minus
// whatever remains.
func (o *Order) ExecutedQty() (decimal.Decimal, error) {
	return o.OriginalQty.Sub(o.RemainingQty)
}

// Fill decrements remaining quantity by qty and advances state to PARTIAL
// or FILLED. It never re-opens a terminal order.
func (o *Order) Fill(qty decimal.Decimal) error {
	if o.State.IsTerminal() {
		return fmt.Errorf("domain: cannot fill order %s in terminal state %s", o.OrderID, o.State)
	}
	remaining, err := o.RemainingQty.Sub(qty)
	if err != nil {
		return err
	}
	o.RemainingQty = remaining
	if o.RemainingQty.IsZero() {
		o.State = StateFilled
	} else {
		o.State = StatePartial
	}
	o.UpdatedAt = time.Now()
	return nil
}
