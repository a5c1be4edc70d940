package domain

import (
	"time"

	"github.com/obmatch/matchcore/internal/decimal"
)

// Trade is an immutable record of one execution between a resting maker
// order and an incoming taker order. Adapted from the teacher's
// core/matching Trade type, stripped of the fee fields the spec explicitly
// keeps out of the matcher (§9: fees belong to a downstream subscriber).
type Trade struct {
	TradeID      string
	Pair         string
	MakerOrderID string
	TakerOrderID string
	Price        decimal.Decimal
	Qty          decimal.Decimal
	TakerSide    Side
	Ts           time.Time
	Seq          uint64
}

// RejectReason is a stable machine-readable code surfaced on a rejected
// command, per spec §7.
type RejectReason string

const (
	ReasonValidation        RejectReason = "VALIDATION_ERROR"
	ReasonUnknownPair       RejectReason = "UNKNOWN_PAIR"
	ReasonTickLotViolation  RejectReason = "TICK_LOT_VIOLATION"
	ReasonFillOrKill        RejectReason = "FILL_OR_KILL_REJECTED"
	ReasonNotFound          RejectReason = "NOT_FOUND"
	ReasonUnauthorized      RejectReason = "UNAUTHORIZED"
	ReasonDuplicateClientID RejectReason = "DUPLICATE_CLIENT_ORDER_ID"
)

// CancelReason is the reason an order left the book via cancellation.
type CancelReason string

const (
	CancelReasonUser             CancelReason = "USER_REQUESTED"
	CancelReasonIOCRemainder     CancelReason = "IOC_REMAINDER"
	CancelReasonMarketNoLiquidity CancelReason = "MARKET_NO_LIQUIDITY"
	CancelReasonModifyReplaced   CancelReason = "MODIFY_REPLACED"
)
