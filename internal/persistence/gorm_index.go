package persistence

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/obmatch/matchcore/internal/domain"
)

// Indexer subscribes to matcher events (via internal/eventbus.Bus) and
// projects them into Postgres. It is a pure read-model builder: nothing
// here feeds back into matching, so a slow or down database degrades
// reporting, never trading.
type Indexer struct {
	db *gorm.DB
}

// OpenIndexer connects to dsn and migrates the read-model schema.
func OpenIndexer(dsn string) (*Indexer, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: connect: %w", err)
	}
	if err := db.AutoMigrate(&TradeRecord{}, &OrderTerminalRecord{}); err != nil {
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}
	return &Indexer{db: db}, nil
}

// Handle implements eventbus.Handler, projecting the events the
// reporting read-model cares about.
func (ix *Indexer) Handle(ev domain.Event) error {
	switch ev.Type {
	case domain.EventTrade:
		return ix.indexTrade(ev)
	case domain.EventOrderFilled, domain.EventOrderCancelled, domain.EventOrderExpired, domain.EventOrderRejected:
		return ix.indexTerminal(ev)
	default:
		return nil
	}
}

func (ix *Indexer) indexTrade(ev domain.Event) error {
	t := ev.Trade
	record := TradeRecord{
		TradeID:      t.TradeID,
		Pair:         ev.Pair,
		MakerOrderID: t.MakerOrderID,
		TakerOrderID: t.TakerOrderID,
		Price:        t.Price,
		Qty:          t.Qty,
		TakerSide:    string(t.TakerSide),
		Seq:          ev.Seq,
		Ts:           ev.Ts,
	}
	return ix.db.Create(&record).Error
}

func (ix *Indexer) indexTerminal(ev domain.Event) error {
	var orderID, reason string
	switch ev.Type {
	case domain.EventOrderFilled:
		orderID = ev.OrderFilled.OrderID
	case domain.EventOrderCancelled:
		orderID = ev.OrderCancelled.OrderID
		reason = string(ev.OrderCancelled.Reason)
	case domain.EventOrderExpired:
		orderID = ev.OrderExpired.OrderID
	case domain.EventOrderRejected:
		// Rejections never reached an order id (the order was never
		// accepted); skip the terminal-state table for these.
		return nil
	}
	record := OrderTerminalRecord{
		OrderID: orderID,
		Pair:    ev.Pair,
		State:   string(ev.Type),
		Reason:  reason,
		Seq:     ev.Seq,
		Ts:      ev.Ts,
	}
	return ix.db.Save(&record).Error
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetConnMaxLifetime(0)
	return sqlDB.Close()
}
