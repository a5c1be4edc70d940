package orderbook

import (
	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
)

// Book is the complete state of one trading pair: the two resting-order
// ladders, the pending-stop index, and the last traded price used to
// evaluate stop triggers. One Book is owned exclusively by its pair's
// matcher goroutine (spec §4.D single-writer-per-pair) — Book itself does
// no locking.
type Book struct {
	Pair      string
	Config    domain.PairConfig
	Bids      *Ladder
	Asks      *Ladder
	Stops     *StopIndex
	LastPrice decimal.Decimal
	HasLast   bool
}

// NewBook constructs an empty book for cfg.
func NewBook(cfg domain.PairConfig) *Book {
	return &Book{
		Pair:   cfg.Pair,
		Config: cfg,
		Bids:   NewLadder(domain.SideBuy),
		Asks:   NewLadder(domain.SideSell),
		Stops:  NewStopIndex(),
	}
}

// LadderFor returns the resting ladder an order of the given side would
// rest on (bids hold resting buy interest, asks resting sell interest).
func (b *Book) LadderFor(side domain.Side) *Ladder {
	if side == domain.SideBuy {
		return b.Bids
	}
	return b.Asks
}

// OppositeLadder returns the ladder a taker of the given side matches
// against.
func (b *Book) OppositeLadder(takerSide domain.Side) *Ladder {
	if takerSide == domain.SideBuy {
		return b.Asks
	}
	return b.Bids
}

// FindResting locates a resting order by id across both ladders.
func (b *Book) FindResting(orderID string) (*domain.Order, bool) {
	if entry, ok := b.Bids.index[orderID]; ok {
		return entry.elem.Value.(*domain.Order), true
	}
	if entry, ok := b.Asks.index[orderID]; ok {
		return entry.elem.Value.(*domain.Order), true
	}
	return nil, false
}

// RemoveResting removes an order from whichever ladder holds it.
func (b *Book) RemoveResting(orderID string) (*domain.Order, bool) {
	if o, ok := b.Bids.Remove(orderID); ok {
		return o, true
	}
	return b.Asks.Remove(orderID)
}

// RecordTrade updates the book's last-traded price, the input to stop
// triggering.
func (b *Book) RecordTrade(price decimal.Decimal) {
	b.LastPrice = price
	b.HasLast = true
}

// DepthSnapshot materializes up to maxLevels per side as the wire view used
// by BookSnapshot events and periodic snapshotting (spec §4.I).
func (b *Book) DepthSnapshot(maxLevels int) domain.BookSnapshotPayload {
	toView := func(levels []*PriceLevel) []domain.PriceLevelView {
		views := make([]domain.PriceLevelView, 0, len(levels))
		for _, l := range levels {
			views = append(views, domain.PriceLevelView{
				Price:      l.Price.String(),
				TotalQty:   l.TotalQty.String(),
				OrderCount: l.Orders.Len(),
			})
		}
		return views
	}
	payload := domain.BookSnapshotPayload{
		Bids:  toView(b.Bids.Levels(maxLevels)),
		Asks:  toView(b.Asks.Levels(maxLevels)),
		Depth: maxLevels,
	}
	if b.HasLast {
		payload.LastPrice = b.LastPrice.String()
		payload.HasLast = true
	}
	return payload
}
