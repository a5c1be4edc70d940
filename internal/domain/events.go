package domain

import "time"

// EventType names the concrete payload carried by an Event.
type EventType string

const (
	EventOrderAccepted         EventType = "OrderAccepted"
	EventOrderRejected         EventType = "OrderRejected"
	EventTrade                 EventType = "Trade"
	EventOrderResting          EventType = "OrderResting"
	EventOrderPartiallyFilled  EventType = "OrderPartiallyFilled"
	EventOrderFilled           EventType = "OrderFilled"
	EventOrderCancelled        EventType = "OrderCancelled"
	EventOrderExpired          EventType = "OrderExpired"
	EventCancelRejected        EventType = "CancelRejected"
	EventModifyRejected        EventType = "ModifyRejected"
	EventBookSnapshot          EventType = "BookSnapshot"
	EventPairHalted            EventType = "PairHalted"
	EventPairClosed            EventType = "PairClosed"
)

// Event is the envelope every matcher-emitted fact travels in. Every event
// for a pair carries that pair's seq, and the bus guarantees per-pair
// delivery in strictly increasing seq order (spec §4.H).
type Event struct {
	Pair string
	Seq  uint64
	Ts   time.Time
	Type EventType

	OrderAccepted        *OrderAcceptedPayload        `json:",omitempty"`
	OrderRejected        *OrderRejectedPayload         `json:",omitempty"`
	Trade                *TradePayload                 `json:",omitempty"`
	OrderResting         *OrderRestingPayload          `json:",omitempty"`
	OrderPartiallyFilled *OrderPartiallyFilledPayload  `json:",omitempty"`
	OrderFilled          *OrderFilledPayload           `json:",omitempty"`
	OrderCancelled       *OrderCancelledPayload        `json:",omitempty"`
	OrderExpired         *OrderExpiredPayload          `json:",omitempty"`
	CancelRejected       *RejectPayload                `json:",omitempty"`
	ModifyRejected       *RejectPayload                `json:",omitempty"`
	BookSnapshot         *BookSnapshotPayload           `json:",omitempty"`
	PairHalted           *PairHaltedPayload             `json:",omitempty"`
}

type OrderAcceptedPayload struct {
	OrderID       string
	ClientOrderID string
	AcceptedSeq   uint64
	InitialState  State
}

type OrderRejectedPayload struct {
	ClientOrderID string
	Reason        RejectReason
	Detail        string
}

type RejectPayload struct {
	OrderID string
	Reason  RejectReason
	Detail  string
}

type TradePayload struct {
	TradeID      string
	MakerOrderID string
	TakerOrderID string
	Price        string
	Qty          string
	TakerSide    Side
}

type OrderRestingPayload struct {
	OrderID      string
	Side         Side
	Price        string
	RemainingQty string
}

type OrderPartiallyFilledPayload struct {
	OrderID      string
	RemainingQty string
}

type OrderFilledPayload struct {
	OrderID string
}

type OrderCancelledPayload struct {
	OrderID string
	Reason  CancelReason
}

type OrderExpiredPayload struct {
	OrderID string
}

type PriceLevelView struct {
	Price      string
	TotalQty   string
	OrderCount int
}

type BookSnapshotPayload struct {
	Bids      []PriceLevelView
	Asks      []PriceLevelView
	LastPrice string
	HasLast   bool
	Depth     int
}

type PairHaltedPayload struct {
	Reason string
}
