package orderbook

import (
	"container/list"
	"sort"

	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
)

// StopIndex holds STOP and STOP_LIMIT orders that have not yet triggered,
// bucketed by stop price per side, so a post-trade price move can find
// every order whose trigger condition now holds without scanning the
// whole book (spec §4.C stop cascade).
type StopIndex struct {
	buyStops  map[string]*list.List // stop price -> FIFO of *domain.Order (buy stops trigger on price rising through stop)
	sellStops map[string]*list.List // sell stops trigger on price falling through stop
	elems     map[string]*list.Element
	lists     map[string]*list.List
	buyKeys   []decimal.Decimal
	sellKeys  []decimal.Decimal
}

// NewStopIndex builds an empty index.
func NewStopIndex() *StopIndex {
	return &StopIndex{
		buyStops:  make(map[string]*list.List),
		sellStops: make(map[string]*list.List),
		elems:     make(map[string]*list.Element),
		lists:     make(map[string]*list.List),
	}
}

// Add inserts a not-yet-triggered stop order into its side's index.
func (s *StopIndex) Add(o *domain.Order) {
	key := o.StopPrice.String()
	var bucket map[string]*list.List
	var keys *[]decimal.Decimal
	if o.Side == domain.SideBuy {
		bucket = s.buyStops
		keys = &s.buyKeys
	} else {
		bucket = s.sellStops
		keys = &s.sellKeys
	}
	l, ok := bucket[key]
	if !ok {
		l = list.New()
		bucket[key] = l
		// Keep keys in cascade order: ascending for buys, descending for sells.
		i := sort.Search(len(*keys), func(i int) bool {
			if o.Side == domain.SideBuy {
				return (*keys)[i].GreaterThan(o.StopPrice)
			}
			return (*keys)[i].LessThan(o.StopPrice)
		})
		*keys = append(*keys, decimal.Decimal{})
		copy((*keys)[i+1:], (*keys)[i:])
		(*keys)[i] = o.StopPrice
	}
	elem := l.PushBack(o)
	s.elems[o.OrderID] = elem
	s.lists[o.OrderID] = l
}

// Remove deletes a pending stop order by id (used by explicit cancel).
func (s *StopIndex) Remove(orderID string) (*domain.Order, bool) {
	elem, ok := s.elems[orderID]
	if !ok {
		return nil, false
	}
	l := s.lists[orderID]
	o := elem.Value.(*domain.Order)
	l.Remove(elem)
	delete(s.elems, orderID)
	delete(s.lists, orderID)
	return o, true
}

// Triggered returns, and removes from the index, every buy stop whose stop
// price is <= lastPrice and every sell stop whose stop price is >=
// lastPrice — the classic "stop triggers when the market trades through
// it" rule, applied once per trade per spec §4.C. Orders are returned in
// the order they should be cascaded: ascending stop price for buys and
// descending stop price for sells mirrors how far the market has moved,
// then FIFO within a price.
func (s *StopIndex) Triggered(lastPrice decimal.Decimal) []*domain.Order {
	var out []*domain.Order
	out = s.drain(s.buyStops, &s.buyKeys, lastPrice, true, out)
	out = s.drain(s.sellStops, &s.sellKeys, lastPrice, false, out)
	return out
}

func (s *StopIndex) drain(bucket map[string]*list.List, keys *[]decimal.Decimal, lastPrice decimal.Decimal, buySide bool, out []*domain.Order) []*domain.Order {
	remaining := (*keys)[:0]
	for _, price := range *keys {
		fires := price.LessThanOrEqual(lastPrice)
		if buySide {
			fires = lastPrice.GreaterThanOrEqual(price)
		} else {
			fires = lastPrice.LessThanOrEqual(price)
		}
		key := price.String()
		l := bucket[key]
		if fires {
			for e := l.Front(); e != nil; e = e.Next() {
				o := e.Value.(*domain.Order)
				delete(s.elems, o.OrderID)
				delete(s.lists, o.OrderID)
				out = append(out, o)
			}
			delete(bucket, key)
		} else {
			remaining = append(remaining, price)
		}
	}
	*keys = remaining
	return out
}

// Len reports how many stop orders are pending across both sides.
func (s *StopIndex) Len() int { return len(s.elems) }
