// Package orderbook implements the per-pair price ladder, the stop-order
// index, and the composite Book, adapted from the teacher's
// internal/core/matching/order_book.go heap-based book. The heap approach
// is replaced with a price-sorted level map plus an intrusive FIFO per
// level, matching the spec's requirement that maker priority within a
// level be strict acceptance order and that an arbitrary order be
// removable from its level in O(1).
package orderbook

import (
	"container/list"
	"sort"

	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
)

// PriceLevel is one price point on a Ladder: a FIFO of resting orders in
// acceptance order, plus the running total of their remaining quantity.
type PriceLevel struct {
	Price    decimal.Decimal
	Orders   *list.List // of *domain.Order
	TotalQty decimal.Decimal
}

type ladderEntry struct {
	elem *list.Element
	side *PriceLevel
}

// Ladder is one side (bid or ask) of a Book: levels ordered by price,
// best-first, with best meaning highest price for bids and lowest for
// asks.
type Ladder struct {
	side   domain.Side
	levels map[string]*PriceLevel // price.String() -> level
	order  []decimal.Decimal      // kept sorted best-first
	index  map[string]*ladderEntry
}

// NewLadder builds an empty ladder for the given side.
func NewLadder(side domain.Side) *Ladder {
	return &Ladder{
		side:   side,
		levels: make(map[string]*PriceLevel),
		index:  make(map[string]*ladderEntry),
	}
}

func (l *Ladder) better(a, b decimal.Decimal) bool {
	if l.side == domain.SideBuy {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// Insert appends order to the FIFO at order.LimitPrice, creating the level
// if absent. O(log L) for the level lookup/insertion point, where L is the
// number of distinct price levels.
func (l *Ladder) Insert(order *domain.Order) {
	key := order.LimitPrice.String()
	level, ok := l.levels[key]
	if !ok {
		level = &PriceLevel{Price: order.LimitPrice, Orders: list.New(), TotalQty: decimal.Zero(order.RemainingQty.Scale())}
		l.levels[key] = level
		l.insertSorted(order.LimitPrice)
	}
	elem := level.Orders.PushBack(order)
	l.index[order.OrderID] = &ladderEntry{elem: elem, side: level}
	total, err := level.TotalQty.Add(order.RemainingQty)
	if err != nil {
		// Overflow is fatal to the pair; callers surface it via
		// InvariantViolation (spec §7). Keep TotalQty unchanged so the
		// caller's subsequent halt sees consistent state.
		return
	}
	level.TotalQty = total
}

func (l *Ladder) insertSorted(price decimal.Decimal) {
	i := sort.Search(len(l.order), func(i int) bool {
		return !l.better(l.order[i], price)
	})
	l.order = append(l.order, decimal.Decimal{})
	copy(l.order[i+1:], l.order[i:])
	l.order[i] = price
}

func (l *Ladder) removeSorted(price decimal.Decimal) {
	for i, p := range l.order {
		if p.Equal(price) {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

// Remove deletes orderID from its level by identity, in O(1) given the
// auxiliary index, dropping the level eagerly if it becomes empty.
func (l *Ladder) Remove(orderID string) (*domain.Order, bool) {
	entry, ok := l.index[orderID]
	if !ok {
		return nil, false
	}
	order := entry.elem.Value.(*domain.Order)
	entry.side.Orders.Remove(entry.elem)
	newTotal, err := entry.side.TotalQty.Sub(order.RemainingQty)
	if err == nil {
		entry.side.TotalQty = newTotal
	}
	delete(l.index, orderID)
	if entry.side.Orders.Len() == 0 {
		key := entry.side.Price.String()
		delete(l.levels, key)
		l.removeSorted(entry.side.Price)
	}
	return order, true
}

// AdjustTotal sets the total quantity of the level containing orderID to
// newTotal; called after a maker at that level trades, before a fully
// filled maker is removed.
func (l *Ladder) AdjustTotal(orderID string, newTotal decimal.Decimal) {
	if entry, ok := l.index[orderID]; ok {
		entry.side.TotalQty = newTotal
	}
}

// Best returns the best level, or false if the ladder is empty.
func (l *Ladder) Best() (*PriceLevel, bool) {
	if len(l.order) == 0 {
		return nil, false
	}
	return l.levels[l.order[0].String()], true
}

// Levels returns up to maxLevels levels, best-first, for snapshotting.
func (l *Ladder) Levels(maxLevels int) []*PriceLevel {
	n := len(l.order)
	if maxLevels > 0 && maxLevels < n {
		n = maxLevels
	}
	out := make([]*PriceLevel, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, l.levels[l.order[i].String()])
	}
	return out
}

// Len returns the number of distinct price levels.
func (l *Ladder) Len() int { return len(l.order) }

// PopBestLevel returns the best level without removing it; matching callers
// drain its FIFO head-first via the returned *list.List.
func (l *Ladder) PopBestLevel() (*PriceLevel, bool) {
	return l.Best()
}
