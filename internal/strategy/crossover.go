package strategy

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// Crossover emits enter on a golden cross (fast series crossing above the
// slow series) and exit on the symmetric death cross. It works for any pair
// of aligned series: SMA pairs, EMA pairs, or MACD line vs signal line.
type Crossover struct {
	symbol string
	fast   indicator.Indicator
	slow   indicator.Indicator
}

// NewCrossover creates a crossover evaluator over the given fast and slow
// indicators for a symbol.
func NewCrossover(symbol string, fast, slow indicator.Indicator) (*Crossover, error) {
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeEvaluatorConfig, "crossover evaluator requires a symbol")
	}

	if fast == nil || slow == nil {
		return nil, errors.New(errors.ErrCodeEvaluatorConfig, "crossover evaluator requires fast and slow indicators")
	}

	if fast.Name() == slow.Name() {
		return nil, errors.Newf(errors.ErrCodeEvaluatorConfig, "crossover fast and slow series must differ, both are %s", fast.Name())
	}

	return &Crossover{
		symbol: symbol,
		fast:   fast,
		slow:   slow,
	}, nil
}

// Name returns the name of the evaluator.
func (c *Crossover) Name() string {
	return fmt.Sprintf("crossover_%s_%s", c.fast.Name(), c.slow.Name())
}

// Indicators returns the fast and slow indicators keyed by series name.
func (c *Crossover) Indicators() map[string]indicator.Indicator {
	return map[string]indicator.Indicator{
		c.fast.Name(): c.fast,
		c.slow.Name(): c.slow,
	}
}

// Evaluate detects a strict crossing between the previous and current point.
// Undefined values at either point yield no-action.
func (c *Crossover) Evaluate(previous, current Snapshot, at time.Time) (types.Signal, error) {
	goldenCross, defined := crossedAbove(previous, current, c.fast.Name(), c.slow.Name())
	if !defined {
		return types.NoAction(c.Name(), c.symbol, at, "indicator warm-up"), nil
	}

	if goldenCross {
		return types.Signal{
			Time:   at,
			Type:   types.SignalTypeEnterLong,
			Name:   c.Name(),
			Reason: fmt.Sprintf("%s crossed above %s", c.fast.Name(), c.slow.Name()),
			RawValue: map[string]Snapshot{
				"previous": previous,
				"current":  current,
			},
			Symbol: c.symbol,
		}, nil
	}

	deathCross, _ := crossedAbove(previous, current, c.slow.Name(), c.fast.Name())
	if deathCross {
		return types.Signal{
			Time:   at,
			Type:   types.SignalTypeExitLong,
			Name:   c.Name(),
			Reason: fmt.Sprintf("%s crossed below %s", c.fast.Name(), c.slow.Name()),
			RawValue: map[string]Snapshot{
				"previous": previous,
				"current":  current,
			},
			Symbol: c.symbol,
		}, nil
	}

	return types.NoAction(c.Name(), c.symbol, at, "no crossover"), nil
}
