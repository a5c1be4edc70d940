// Package matcher is the single consolidated price-time-priority matching
// engine. It supersedes the teacher's several divergent engines
// (internal/orders/matching, internal/matching/unified_engine,
// internal/trading/order_matching) with one implementation of the exact
// MARKET/LIMIT/STOP/STOP_LIMIT x GTC/IOC/FOK/GTD taxonomy the spec
// requires, grounded on the teacher's core matching loop structure
// (incoming command -> match against the opposite ladder -> rest or
// cancel remainder -> cascade triggered stops) but rebuilt on exact
// decimals and a single resting-order model.
//
// A Matcher owns exactly one pair's Book and is never called concurrently
// by more than one goroutine (spec §4.D single-writer-per-pair); the
// command router is responsible for that serialization.
package matcher

import (
	"fmt"
	"time"

	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
	"github.com/obmatch/matchcore/internal/idgen"
	"github.com/obmatch/matchcore/internal/orderbook"
	"github.com/obmatch/matchcore/internal/selftrade"
)

// EventSink receives every event the matcher emits, in the order they
// occur. A real sink (internal/eventbus) assigns delivery and durability
// semantics; the matcher only guarantees per-pair seq is strictly
// increasing across everything it publishes.
type EventSink interface {
	Publish(domain.Event) error
}

// Clock is injectable so tests can control time without sleeping.
type Clock func() time.Time

// Matcher is the sole matching engine instance for one pair.
type Matcher struct {
	book   *orderbook.Book
	stp    selftrade.Policy
	ids    *idgen.Generator
	sink   EventSink
	clock  Clock
	seq    uint64
	seenID map[string]string // ClientOrderID -> OrderID, for duplicate detection
	halted error             // set once a publish fails; the pair refuses further commands
}

// New builds a Matcher for cfg's pair, publishing events to sink.
func New(cfg domain.PairConfig, stp selftrade.Policy, ids *idgen.Generator, sink EventSink, clock Clock) *Matcher {
	if clock == nil {
		clock = time.Now
	}
	return &Matcher{
		book:   orderbook.NewBook(cfg),
		stp:    stp,
		ids:    ids,
		sink:   sink,
		clock:  clock,
		seenID: make(map[string]string),
	}
}

// Book exposes the read-only book state for snapshotting.
func (m *Matcher) Book() *orderbook.Book { return m.book }

func (m *Matcher) nextSeq() uint64 {
	m.seq++
	return m.seq
}

func (m *Matcher) publish(ev domain.Event) {
	if m.halted != nil {
		return
	}
	ev.Pair = m.book.Pair
	ev.Seq = m.nextSeq()
	ev.Ts = m.clock()
	// A publish failure (journal write failure propagated through the
	// sink) is fatal to the pair: the matcher stops emitting further
	// events and Place/Cancel return the error so the router can halt the
	// pair per spec §7 InvariantViolation / JournalWriteFailure. The
	// matcher itself does not retry.
	if err := m.sink.Publish(ev); err != nil {
		m.halted = err
	}
}

// Place validates and executes a new order. The only error returned is
// the sink's publish failure once the pair has halted (returned on the
// command that hit it and on every later command); ordinary rejections are
// communicated via the OrderRejected event, not an error return.
func (m *Matcher) Place(cmd PlaceOrderCommand) error {
	if m.halted != nil {
		return m.halted
	}
	if reason, detail, ok := m.validate(cmd); !ok {
		m.publish(domain.Event{
			Type: domain.EventOrderRejected,
			OrderRejected: &domain.OrderRejectedPayload{
				ClientOrderID: cmd.ClientOrderID,
				Reason:        reason,
				Detail:        detail,
			},
		})
		return nil
	}

	order := &domain.Order{
		OrderID:       m.ids.New(),
		Pair:          cmd.Pair,
		UserID:        cmd.UserID,
		ClientOrderID: cmd.ClientOrderID,
		Side:          cmd.Side,
		Kind:          cmd.Kind,
		LimitPrice:    cmd.LimitPrice,
		HasLimitPrice: cmd.HasLimitPrice,
		StopPrice:     cmd.StopPrice,
		HasStopPrice:  cmd.HasStopPrice,
		TimeInForce:   cmd.TimeInForce,
		ExpiresAt:     cmd.ExpiresAt,
		HasExpiresAt:  cmd.HasExpiresAt,
		OriginalQty:   cmd.Qty,
		RemainingQty:  cmd.Qty,
		State:         domain.StateOpen,
		CreatedAt:     m.clock(),
		UpdatedAt:     m.clock(),
	}
	if cmd.ClientOrderID != "" {
		m.seenID[cmd.ClientOrderID] = order.OrderID
	}
	order.AcceptedSeq = m.seq + 1 // the seq the OrderAccepted event below will carry

	m.publish(domain.Event{
		Type: domain.EventOrderAccepted,
		OrderAccepted: &domain.OrderAcceptedPayload{
			OrderID:       order.OrderID,
			ClientOrderID: order.ClientOrderID,
			AcceptedSeq:   order.AcceptedSeq,
			InitialState:  order.State,
		},
	})

	m.dispatch(order)
	return m.halted
}

func (m *Matcher) validate(cmd PlaceOrderCommand) (domain.RejectReason, string, bool) {
	if m.book.Config.Disabled {
		return domain.ReasonUnknownPair, "pair is disabled", false
	}
	if cmd.Qty.IsZero() || cmd.Qty.Sign() < 0 {
		return domain.ReasonValidation, "quantity must be positive", false
	}
	if !m.book.Config.ConformsToLot(cmd.Qty) {
		return domain.ReasonTickLotViolation, "quantity is not a multiple of lot size", false
	}
	if (cmd.Kind == domain.KindLimit || cmd.Kind == domain.KindStopLimit) && cmd.HasLimitPrice {
		if !m.book.Config.ConformsToTick(cmd.LimitPrice) {
			return domain.ReasonTickLotViolation, "price is not a multiple of tick size", false
		}
	}
	if (cmd.Kind == domain.KindStop || cmd.Kind == domain.KindStopLimit) && cmd.HasStopPrice {
		if !m.book.Config.ConformsToTick(cmd.StopPrice) {
			return domain.ReasonTickLotViolation, "stop price is not a multiple of tick size", false
		}
	}
	if cmd.ClientOrderID != "" {
		if _, dup := m.seenID[cmd.ClientOrderID]; dup {
			return domain.ReasonDuplicateClientID, "client order id already accepted", false
		}
	}
	return "", "", true
}

// dispatch routes a freshly-accepted order to the right handling path by
// kind, then cascades any stops the resulting trades trigger.
func (m *Matcher) dispatch(order *domain.Order) {
	switch order.Kind {
	case domain.KindStop, domain.KindStopLimit:
		if m.book.HasLast && m.triggerCondition(order, m.book.LastPrice) {
			m.activateStop(order)
		} else {
			order.State = domain.StatePendingTrigger
			m.book.Stops.Add(order)
		}
	default:
		m.matchIncoming(order)
	}
}

func (m *Matcher) triggerCondition(order *domain.Order, lastPrice decimal.Decimal) bool {
	if order.Side == domain.SideBuy {
		return lastPrice.GreaterThanOrEqual(order.StopPrice)
	}
	return lastPrice.LessThanOrEqual(order.StopPrice)
}

// activateStop converts a triggered STOP into a MARKET order and a
// triggered STOP_LIMIT into a LIMIT order at its original limit price,
// then feeds it back through ordinary matching (spec §4.C).
func (m *Matcher) activateStop(order *domain.Order) {
	if order.Kind == domain.KindStop {
		order.Kind = domain.KindMarket
	} else {
		order.Kind = domain.KindLimit
	}
	order.State = domain.StateOpen
	m.matchIncoming(order)
}

// matchIncoming runs price-time-priority matching for a taker order
// (MARKET or LIMIT) against the opposite ladder, then applies
// time-in-force disposition to any remainder, then cascades stops.
func (m *Matcher) matchIncoming(taker *domain.Order) {
	if taker.TimeInForce == domain.TIFFOK && !m.canFullyFill(taker) {
		m.rejectFillOrKill(taker)
		return
	}

	opposite := m.book.OppositeLadder(taker.Side)
	m.matchAgainst(taker, opposite)

	if taker.State == domain.StateCancelled {
		// Self-trade prevention cancelled the taker; its remainder never rests.
		m.publish(domain.Event{
			Type:           domain.EventOrderCancelled,
			OrderCancelled: &domain.OrderCancelledPayload{OrderID: taker.OrderID, Reason: domain.CancelReasonUser},
		})
	} else if taker.Filled() {
		m.publish(domain.Event{Type: domain.EventOrderFilled, OrderFilled: &domain.OrderFilledPayload{OrderID: taker.OrderID}})
	} else {
		m.disposeRemainder(taker)
	}

	m.cascadeStops()
}

// canFullyFill reports whether the resting book currently holds enough
// price-eligible quantity to fill taker completely, without mutating any
// state — the FOK precheck (spec §4.B).
func (m *Matcher) canFullyFill(taker *domain.Order) bool {
	opposite := m.book.OppositeLadder(taker.Side)
	remaining := taker.RemainingQty
	for _, level := range opposite.Levels(0) {
		if taker.HasLimitPrice && !m.priceEligible(taker, level.Price) {
			break
		}
		remaining, _ = remaining.Sub(level.TotalQty)
		if remaining.Sign() <= 0 {
			return true
		}
	}
	return remaining.Sign() <= 0
}

func (m *Matcher) rejectFillOrKill(taker *domain.Order) {
	taker.State = domain.StateRejected
	m.publish(domain.Event{
		Type: domain.EventOrderRejected,
		OrderRejected: &domain.OrderRejectedPayload{
			ClientOrderID: taker.ClientOrderID,
			Reason:        domain.ReasonFillOrKill,
			Detail:        "insufficient resting liquidity to fully fill",
		},
	})
}

// priceEligible reports whether a taker may trade at level price given its
// own limit (MARKET takers are eligible at any price).
func (m *Matcher) priceEligible(taker *domain.Order, levelPrice decimal.Decimal) bool {
	if !taker.HasLimitPrice {
		return true
	}
	if taker.Side == domain.SideBuy {
		return levelPrice.LessThanOrEqual(taker.LimitPrice)
	}
	return levelPrice.GreaterThanOrEqual(taker.LimitPrice)
}

// matchAgainst walks opposite best-first, executing trades against resting
// makers in strict FIFO until taker is filled, the book runs out of
// price-eligible liquidity, or self-trade prevention exhausts a level.
func (m *Matcher) matchAgainst(taker *domain.Order, opposite *orderbook.Ladder) {
	for !taker.Filled() {
		level, ok := opposite.Best()
		if !ok {
			break
		}
		if !m.priceEligible(taker, level.Price) {
			break
		}
		front := level.Orders.Front()
		if front == nil {
			break
		}
		maker := front.Value.(*domain.Order)

		switch m.stp.Decide(maker, taker) {
		case selftrade.CancelTaker:
			taker.State = domain.StateCancelled
			return
		case selftrade.CancelBoth:
			m.cancelResting(maker, domain.CancelReasonUser)
			taker.State = domain.StateCancelled
			return
		case selftrade.SkipMaker:
			m.cancelResting(maker, domain.CancelReasonUser)
			continue
		}

		tradeQty := decimal.Min(taker.RemainingQty, maker.RemainingQty)
		price := maker.LimitPrice

		if err := maker.Fill(tradeQty); err != nil {
			return
		}
		if err := taker.Fill(tradeQty); err != nil {
			return
		}

		if total, err := level.TotalQty.Sub(tradeQty); err == nil {
			opposite.AdjustTotal(maker.OrderID, total)
		}
		if maker.Filled() {
			opposite.Remove(maker.OrderID)
			m.publish(domain.Event{Type: domain.EventOrderFilled, OrderFilled: &domain.OrderFilledPayload{OrderID: maker.OrderID}})
		} else {
			m.publish(domain.Event{
				Type:                 domain.EventOrderPartiallyFilled,
				OrderPartiallyFilled: &domain.OrderPartiallyFilledPayload{OrderID: maker.OrderID, RemainingQty: maker.RemainingQty.String()},
			})
		}

		m.publish(domain.Event{
			Type: domain.EventTrade,
			Trade: &domain.TradePayload{
				TradeID:      m.ids.New(),
				MakerOrderID: maker.OrderID,
				TakerOrderID: taker.OrderID,
				Price:        price.String(),
				Qty:          tradeQty.String(),
				TakerSide:    taker.Side,
			},
		})
		m.book.RecordTrade(price)
	}
}

func (m *Matcher) cancelResting(order *domain.Order, reason domain.CancelReason) {
	m.book.RemoveResting(order.OrderID)
	order.State = domain.StateCancelled
	m.publish(domain.Event{
		Type:           domain.EventOrderCancelled,
		OrderCancelled: &domain.OrderCancelledPayload{OrderID: order.OrderID, Reason: reason},
	})
}

// disposeRemainder applies time-in-force rules to whatever quantity is
// left on a taker after matching: IOC and MARKET remainders are cancelled
// outright, GTC/GTD LIMIT remainders rest in the book.
func (m *Matcher) disposeRemainder(taker *domain.Order) {
	if !taker.IsRestable() || taker.TimeInForce == domain.TIFIOC {
		reason := domain.CancelReasonIOCRemainder
		if taker.Kind == domain.KindMarket {
			reason = domain.CancelReasonMarketNoLiquidity
		}
		taker.State = domain.StateCancelled
		m.publish(domain.Event{
			Type:           domain.EventOrderCancelled,
			OrderCancelled: &domain.OrderCancelledPayload{OrderID: taker.OrderID, Reason: reason},
		})
		return
	}

	ladder := m.book.LadderFor(taker.Side)
	ladder.Insert(taker)
	m.publish(domain.Event{
		Type: domain.EventOrderResting,
		OrderResting: &domain.OrderRestingPayload{
			OrderID:      taker.OrderID,
			Side:         taker.Side,
			Price:        taker.LimitPrice.String(),
			RemainingQty: taker.RemainingQty.String(),
		},
	})
}

// cascadeStops repeatedly drains any stop orders the book's new last price
// triggers, feeding each through matchIncoming in turn, until no further
// stop fires — a single trade can trigger a chain of stops (spec §4.C).
func (m *Matcher) cascadeStops() {
	for m.book.HasLast {
		triggered := m.book.Stops.Triggered(m.book.LastPrice)
		if len(triggered) == 0 {
			return
		}
		for _, o := range triggered {
			m.activateStop(o)
		}
	}
}

// Cancel removes a live order (resting or pending-trigger) belonging to
// userID.
func (m *Matcher) Cancel(cmd CancelOrderCommand) error {
	if m.halted != nil {
		return m.halted
	}
	if order, ok := m.book.FindResting(cmd.OrderID); ok {
		if order.UserID != cmd.UserID {
			m.rejectCancel(cmd, "order does not belong to requester")
			return m.halted
		}
		m.book.RemoveResting(cmd.OrderID)
		order.State = domain.StateCancelled
		m.publish(domain.Event{
			Type:           domain.EventOrderCancelled,
			OrderCancelled: &domain.OrderCancelledPayload{OrderID: order.OrderID, Reason: domain.CancelReasonUser},
		})
		return m.halted
	}
	if order, ok := m.book.Stops.Remove(cmd.OrderID); ok {
		if order.UserID != cmd.UserID {
			m.book.Stops.Add(order)
			m.rejectCancel(cmd, "order does not belong to requester")
			return m.halted
		}
		order.State = domain.StateCancelled
		m.publish(domain.Event{
			Type:           domain.EventOrderCancelled,
			OrderCancelled: &domain.OrderCancelledPayload{OrderID: order.OrderID, Reason: domain.CancelReasonUser},
		})
		return m.halted
	}
	m.rejectCancel(cmd, "order not found")
	return m.halted
}

func (m *Matcher) rejectCancel(cmd CancelOrderCommand, detail string) {
	reason := domain.ReasonNotFound
	if detail == "order does not belong to requester" {
		reason = domain.ReasonUnauthorized
	}
	m.publish(domain.Event{
		Type:           domain.EventCancelRejected,
		CancelRejected: &domain.RejectPayload{OrderID: cmd.OrderID, Reason: reason, Detail: detail},
	})
}

// Modify atomically cancels a resting or pending-trigger order and
// resubmits it with the requested changes applied (spec §4.F Modify):
// the replacement gets a new AcceptedSeq and loses time priority. Only
// LIMIT/STOP_LIMIT orders carry a modifiable price; quantity may not drop
// below what has already executed.
func (m *Matcher) Modify(cmd ModifyOrderCommand) error {
	if m.halted != nil {
		return m.halted
	}

	order, fromStops, found, owned := m.findOwned(cmd.OrderID, cmd.UserID)
	if !found {
		m.rejectModify(cmd, domain.ReasonNotFound, "order not found")
		return m.halted
	}
	if !owned {
		m.rejectModify(cmd, domain.ReasonUnauthorized, "order does not belong to requester")
		return m.halted
	}

	executed, err := order.ExecutedQty()
	if err != nil {
		m.rejectModify(cmd, domain.ReasonValidation, "corrupt executed quantity")
		return m.halted
	}

	newOriginalQty := order.OriginalQty
	if cmd.HasNewQty {
		newOriginalQty = cmd.NewQty
	}
	if newOriginalQty.LessThan(executed) {
		m.rejectModify(cmd, domain.ReasonValidation, "new quantity is below already-executed quantity")
		return m.halted
	}
	newRemaining, err := newOriginalQty.Sub(executed)
	if err != nil {
		m.rejectModify(cmd, domain.ReasonValidation, "new quantity overflow")
		return m.halted
	}

	newPrice, hasNewPrice := order.LimitPrice, order.HasLimitPrice
	if cmd.HasNewPrice {
		if order.Kind == domain.KindStop {
			m.rejectModify(cmd, domain.ReasonValidation, "STOP orders carry no limit price")
			return m.halted
		}
		newPrice, hasNewPrice = cmd.NewPrice, true
	}
	if hasNewPrice && !m.book.Config.ConformsToTick(newPrice) {
		m.rejectModify(cmd, domain.ReasonTickLotViolation, "new price is not a multiple of tick size")
		return m.halted
	}

	expiresAt, hasExpiresAt := order.ExpiresAt, order.HasExpiresAt
	if cmd.HasNewExpiresAt {
		expiresAt, hasExpiresAt = cmd.NewExpiresAt, true
	}

	// Remove the existing order before resubmitting — the replacement is a
	// brand-new order identity that starts over at the back of its price
	// level's FIFO (spec: "the resubmitted order loses time priority").
	if fromStops {
		m.book.Stops.Remove(order.OrderID)
	} else {
		m.book.RemoveResting(order.OrderID)
	}
	order.State = domain.StateCancelled
	m.publish(domain.Event{
		Type:           domain.EventOrderCancelled,
		OrderCancelled: &domain.OrderCancelledPayload{OrderID: order.OrderID, Reason: domain.CancelReasonModifyReplaced},
	})

	replacement := PlaceOrderCommand{
		Pair:          cmd.Pair,
		UserID:        order.UserID,
		ClientOrderID: order.ClientOrderID,
		Side:          order.Side,
		Kind:          order.Kind,
		TimeInForce:   order.TimeInForce,
		LimitPrice:    newPrice,
		HasLimitPrice: hasNewPrice,
		StopPrice:     order.StopPrice,
		HasStopPrice:  order.HasStopPrice,
		Qty:           newRemaining,
		ExpiresAt:     expiresAt,
		HasExpiresAt:  hasExpiresAt,
	}
	// The replacement is a new order identity; duplicate-ClientOrderID
	// detection must not reject it against the order we just cancelled.
	delete(m.seenID, order.ClientOrderID)
	return m.Place(replacement)
}

// findOwned locates orderID among resting or pending-trigger orders and
// reports whether it was found at all and, if so, whether userID owns it.
func (m *Matcher) findOwned(orderID, userID string) (order *domain.Order, fromStops, found, owned bool) {
	if o, ok := m.book.FindResting(orderID); ok {
		return o, false, true, o.UserID == userID
	}
	if o, ok := m.book.Stops.Remove(orderID); ok {
		m.book.Stops.Add(o) // peek: put back, Modify removes it itself once authorized
		return o, true, true, o.UserID == userID
	}
	return nil, false, false, false
}

func (m *Matcher) rejectModify(cmd ModifyOrderCommand, reason domain.RejectReason, detail string) {
	m.publish(domain.Event{
		Type:           domain.EventModifyRejected,
		ModifyRejected: &domain.RejectPayload{OrderID: cmd.OrderID, Reason: reason, Detail: detail},
	})
}

// ExpireGTD scans resting GTD orders (both ladders; pending stops are not
// scanned) for expiry against now, expiring any that have passed their
// deadline. The router does not call it: a GTD order expires only when a
// caller invokes ExpireGTD on its pair's Matcher.
func (m *Matcher) ExpireGTD(now time.Time) {
	var expired []*domain.Order
	for _, level := range m.book.Bids.Levels(0) {
		for e := level.Orders.Front(); e != nil; e = e.Next() {
			if o := e.Value.(*domain.Order); o.TimeInForce == domain.TIFGTD && o.HasExpiresAt && !now.Before(o.ExpiresAt) {
				expired = append(expired, o)
			}
		}
	}
	for _, level := range m.book.Asks.Levels(0) {
		for e := level.Orders.Front(); e != nil; e = e.Next() {
			if o := e.Value.(*domain.Order); o.TimeInForce == domain.TIFGTD && o.HasExpiresAt && !now.Before(o.ExpiresAt) {
				expired = append(expired, o)
			}
		}
	}
	for _, o := range expired {
		m.book.RemoveResting(o.OrderID)
		o.State = domain.StateExpired
		m.publish(domain.Event{Type: domain.EventOrderExpired, OrderExpired: &domain.OrderExpiredPayload{OrderID: o.OrderID}})
	}
}

// InvariantViolation is the error resilience.GuardedSink returns for a
// failed journal write, which the matcher then returns from every
// command once the pair has halted; kept as a typed
// error so router-level halting logic can type-switch on it rather than
// string-matching.
type InvariantViolation struct {
	Pair   string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("matcher: invariant violation on %s: %s", e.Pair, e.Detail)
}
