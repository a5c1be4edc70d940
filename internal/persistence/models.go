// Package persistence is the secondary read-model: a Postgres projection
// of trades and terminal order states built by subscribing to the event
// bus, kept deliberately outside the matching hot path (spec §9 keeps
// reporting/read concerns out of the matcher core). Writes go through
// gorm.io/gorm for its migration and struct-tag ergonomics; reporting
// queries that need hand-tuned SQL (aggregation, time-bucketing) go
// through jmoiron/sqlx instead, the common "gorm writes, sqlx complex
// reads" split this corpus uses when both libraries are present.
package persistence

import "time"

// TradeRecord is the gorm-managed row written for every matcher Trade
// event.
type TradeRecord struct {
	TradeID      string `gorm:"primaryKey"`
	Pair         string `gorm:"index"`
	MakerOrderID string `gorm:"index"`
	TakerOrderID string `gorm:"index"`
	Price        string
	Qty          string
	TakerSide    string
	Seq          uint64 `gorm:"index"`
	Ts           time.Time
}

// TableName pins the table name so it doesn't follow gorm's pluralization
// guess.
func (TradeRecord) TableName() string { return "trades" }

// OrderTerminalRecord records the final disposition of an order (filled,
// cancelled, expired) for audit and customer-facing history; rejected
// orders get no record.
type OrderTerminalRecord struct {
	OrderID       string `gorm:"primaryKey"`
	Pair          string `gorm:"index"`
	State         string
	Reason        string
	Seq           uint64 `gorm:"index"`
	Ts            time.Time
}

func (OrderTerminalRecord) TableName() string { return "order_terminal_states" }
