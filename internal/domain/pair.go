package domain

import "github.com/obmatch/matchcore/internal/decimal"

// PairConfig is the per-pair trading configuration recognized by the
// engine (spec §6 Configuration).
type PairConfig struct {
	Pair       string
	TickSize   decimal.Decimal
	LotSize    decimal.Decimal
	MinQty     decimal.Decimal
	PriceScale int32
	QtyScale   int32
	Disabled   bool
}

// ConformsToTick reports whether price is an exact multiple of the pair's
// tick size.
func (c PairConfig) ConformsToTick(price decimal.Decimal) bool {
	return conformsToStep(price, c.TickSize)
}

// ConformsToLot reports whether qty is an exact multiple of the pair's lot
// size.
func (c PairConfig) ConformsToLot(qty decimal.Decimal) bool {
	return conformsToStep(qty, c.LotSize)
}

func conformsToStep(v, step decimal.Decimal) bool {
	if step.IsZero() {
		return true
	}
	// Checked once at acceptance time only; the matching hot path never
	// divides (spec §4.A).
	return v.Mod(step).IsZero()
}
