// Package strategy contains signal evaluators: small, stateless deciders that
// turn two adjacent indicator snapshots into an enter/exit/no-action signal.
// Evaluators never look at position state; gating a signal against the
// current position is the trading loop's job.
package strategy

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
)

// Snapshot is one timestamp-aligned point across the indicator series an
// evaluator consumes, keyed by series name. Entries may be undefined during
// indicator warm-up.
type Snapshot map[string]optional.Option[float64]

// Value returns the value for a key, reporting false when the key is missing
// or still in warm-up. Missing is never treated as zero.
func (s Snapshot) Value(key string) (float64, bool) {
	opt, exists := s[key]
	if !exists || opt.IsNone() {
		return 0, false
	}

	value, err := opt.Take()
	if err != nil {
		return 0, false
	}

	return value, true
}

// Evaluator decides enter/exit/no-action from two adjacent snapshots of the
// indicator series it requests. Implementations must return a no-action
// signal, never an error, when a required value is undefined at either point.
type Evaluator interface {
	// Name returns the name of the evaluator.
	Name() string
	// Indicators returns the indicators whose series the evaluator reads,
	// keyed by series name as it appears in snapshots.
	Indicators() map[string]indicator.Indicator
	// Evaluate produces a signal from the previous and current snapshots.
	Evaluate(previous, current Snapshot, at time.Time) (types.Signal, error)
}

// crossedAbove reports a strict upward crossing of a over b between the two
// snapshots. Both inequalities must hold so the crossing itself is observed;
// "currently above" alone must not re-trigger every cycle.
func crossedAbove(previous, current Snapshot, aKey, bKey string) (bool, bool) {
	prevA, ok := previous.Value(aKey)
	if !ok {
		return false, false
	}

	prevB, ok := previous.Value(bKey)
	if !ok {
		return false, false
	}

	curA, ok := current.Value(aKey)
	if !ok {
		return false, false
	}

	curB, ok := current.Value(bKey)
	if !ok {
		return false, false
	}

	return prevA < prevB && curA > curB, true
}
