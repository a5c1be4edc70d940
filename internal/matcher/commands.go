package matcher

import (
	"time"

	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
)

// PlaceOrderCommand is the validated input to Matcher.Place. The command
// router (internal/router) is responsible for everything upstream of this
// point: parsing, auth, idempotency dedup, and backpressure; the matcher
// itself only ever sees commands already addressed to its one pair.
type PlaceOrderCommand struct {
	Pair          string
	UserID        string
	ClientOrderID string
	Side          domain.Side
	Kind          domain.Kind
	TimeInForce   domain.TimeInForce
	LimitPrice    decimal.Decimal
	HasLimitPrice bool
	StopPrice     decimal.Decimal
	HasStopPrice  bool
	Qty           decimal.Decimal
	ExpiresAt     time.Time
	HasExpiresAt  bool
}

// CancelOrderCommand requests removal of a live order. UserID must match
// the order's owner; a mismatch is a no-op rejection with reason
// UNAUTHORIZED, distinct from the NOT_FOUND given for an unknown order.
type CancelOrderCommand struct {
	Pair    string
	OrderID string
	UserID  string
}

// ModifyOrderCommand requests an atomic cancel-and-resubmit of a resting
// order (spec §4.F Modify): only the fields with Has* set are changed,
// everything else carries over from the existing order. The resubmitted
// order is assigned a new AcceptedSeq and loses time priority.
type ModifyOrderCommand struct {
	Pair           string
	OrderID        string
	UserID         string
	NewPrice       decimal.Decimal
	HasNewPrice    bool
	NewQty         decimal.Decimal
	HasNewQty      bool
	NewExpiresAt   time.Time
	HasNewExpiresAt bool
}
