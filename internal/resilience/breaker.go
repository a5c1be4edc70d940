// Package resilience adapts the teacher's fx CircuitBreakerFactory
// (internal/architecture/fx/resilience) to guard journal durability: every
// append goes through the "journal-write" breaker, and any failed append
// (the journal's own error, or the breaker refusing the call while open)
// halts the pair rather than letting it keep matching against a resting
// book nothing is durably recording (spec §7 JournalWriteFailure).
package resilience

import (
	"fmt"

	"github.com/obmatch/matchcore/internal/architecture/fx/resilience"
	"github.com/obmatch/matchcore/internal/domain"
	"github.com/obmatch/matchcore/internal/matcher"
)

const journalWriteBreaker = "journal-write"

// JournalAppender is the subset of *journal.Journal the guard needs,
// narrowed to avoid an import cycle between journal and resilience.
type JournalAppender interface {
	Append(domain.Event) error
}

// GuardedSink wraps a JournalAppender with circuit breaker protection and
// satisfies matcher.EventSink, so the matcher can publish directly through
// it without knowing breaker state exists.
type GuardedSink struct {
	journal  JournalAppender
	breakers *resilience.CircuitBreakerFactory
	pair     string
}

// NewGuardedSink builds a breaker-protected sink for one pair's journal
// writes.
func NewGuardedSink(pair string, journal JournalAppender, breakers *resilience.CircuitBreakerFactory) *GuardedSink {
	return &GuardedSink{journal: journal, breakers: breakers, pair: pair}
}

// Publish appends ev through the circuit breaker. Every failure, whether
// the append's own error or an open breaker's refusal, surfaces as a
// *matcher.InvariantViolation so the router's halt logic can recognize it
// by type.
func (g *GuardedSink) Publish(ev domain.Event) error {
	result := g.breakers.Execute(journalWriteBreaker, func() (interface{}, error) {
		return nil, g.journal.Append(ev)
	})
	if result.Error != nil {
		return &matcher.InvariantViolation{
			Pair:   g.pair,
			Detail: fmt.Sprintf("journal write failed: %v", result.Error),
		}
	}
	return nil
}
