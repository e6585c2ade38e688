// Package spin implements the spin transaction engine: eligibility policy
// and the coordinator that applies a draw's consequences atomically.
package spin

import (
	"time"

	"github.com/xc9973/spinwheel-service/internal/model"
)

// DecisionKind is the result of an eligibility evaluation.
type DecisionKind int

const (
	// DecisionNone means no spin is available.
	DecisionNone DecisionKind = iota
	// DecisionFree means the daily free spin is available.
	DecisionFree
	// DecisionBonus means a banked bonus spin is available.
	DecisionBonus
)

// Decision carries the eligibility outcome.
type Decision struct {
	Kind DecisionKind
}

// Evaluate decides whether a free spin, a bonus spin, or no spin is
// available. The free spin resets at the calendar-day boundary in loc;
// the boundary is derived from now exactly once so a decision cannot
// straddle midnight. Pure function, safe to re-run inside a transaction.
func Evaluate(state *model.SpinState, now time.Time, loc *time.Location) Decision {
	if freeSpinAvailable(state, now, loc) {
		return Decision{Kind: DecisionFree}
	}
	if state.BonusSpins > 0 {
		return Decision{Kind: DecisionBonus}
	}
	return Decision{Kind: DecisionNone}
}

// freeSpinAvailable reports whether the daily free spin can be consumed.
func freeSpinAvailable(state *model.SpinState, now time.Time, loc *time.Location) bool {
	if !state.FreeSpinUsed {
		return true
	}
	if state.LastFreeSpinAt == nil {
		return true
	}

	ly, lm, ld := state.LastFreeSpinAt.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	return ly != ny || lm != nm || ld != nd
}
