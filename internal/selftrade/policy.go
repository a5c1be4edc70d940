// Package selftrade implements self-trade prevention, checked by the
// matcher before a taker is allowed to execute against a resting maker
// from the same user. Grounded on the teacher's
// internal/trading/matching/algorithm/plugin registry pattern: policies are
// named, versioned implementations resolved from a registry rather than a
// single hardcoded branch, so a venue can switch policy per pair without a
// code change.
package selftrade

import "github.com/obmatch/matchcore/internal/domain"

// Decision is what a Policy tells the matcher to do when taker and maker
// belong to the same user.
type Decision int

const (
	// Allow lets the trade proceed (self-trade prevention disabled).
	Allow Decision = iota
	// SkipMaker cancels the maker's quantity at this level and continues
	// matching against the next resting order; the conservative default
	// (spec §4.E).
	SkipMaker
	// CancelTaker cancels the remainder of the taker order outright.
	CancelTaker
	// CancelBoth cancels both the maker (remaining qty) and the taker.
	CancelBoth
)

// Policy decides the self-trade outcome for a single maker/taker pair.
type Policy interface {
	Name() string
	Decide(maker, taker *domain.Order) Decision
}

// SkipMakerPolicy is the conservative default: the resting maker is pulled
// and matching continues against the next price/time priority order,
// preserving the taker's ability to fill against unrelated liquidity.
type SkipMakerPolicy struct{}

func (SkipMakerPolicy) Name() string { return "skip-maker" }

func (SkipMakerPolicy) Decide(maker, taker *domain.Order) Decision {
	if maker.UserID == taker.UserID {
		return SkipMaker
	}
	return Allow
}

// NoopPolicy never intervenes; used by pairs that explicitly disable STP.
type NoopPolicy struct{}

func (NoopPolicy) Name() string                                  { return "none" }
func (NoopPolicy) Decide(maker, taker *domain.Order) Decision { return Allow }
