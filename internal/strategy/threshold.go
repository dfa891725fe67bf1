package strategy

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// Threshold emits enter when the series crosses up through the entry level
// and exit when it crosses down through the exit level. The crossed
// discipline applies on both sides: a value merely sitting beyond a level
// never re-triggers. The canonical use is RSI with entry at the oversold
// level and exit at the overbought level.
type Threshold struct {
	symbol     string
	source     indicator.Indicator
	entryLevel float64
	exitLevel  float64
}

// NewThreshold creates a threshold evaluator over one indicator series.
func NewThreshold(symbol string, source indicator.Indicator, entryLevel, exitLevel float64) (*Threshold, error) {
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeEvaluatorConfig, "threshold evaluator requires a symbol")
	}

	if source == nil {
		return nil, errors.New(errors.ErrCodeEvaluatorConfig, "threshold evaluator requires an indicator")
	}

	if entryLevel >= exitLevel {
		return nil, errors.Newf(errors.ErrCodeEvaluatorConfig,
			"threshold entry level %.2f must be below exit level %.2f", entryLevel, exitLevel)
	}

	return &Threshold{
		symbol:     symbol,
		source:     source,
		entryLevel: entryLevel,
		exitLevel:  exitLevel,
	}, nil
}

// Name returns the name of the evaluator.
func (t *Threshold) Name() string {
	return fmt.Sprintf("threshold_%s", t.source.Name())
}

// Indicators returns the single indicator the evaluator reads.
func (t *Threshold) Indicators() map[string]indicator.Indicator {
	return map[string]indicator.Indicator{
		t.source.Name(): t.source,
	}
}

// Evaluate detects strict level crossings between the previous and current
// point. Undefined values at either point yield no-action.
func (t *Threshold) Evaluate(previous, current Snapshot, at time.Time) (types.Signal, error) {
	prev, ok := previous.Value(t.source.Name())
	if !ok {
		return types.NoAction(t.Name(), t.symbol, at, "indicator warm-up"), nil
	}

	cur, ok := current.Value(t.source.Name())
	if !ok {
		return types.NoAction(t.Name(), t.symbol, at, "indicator warm-up"), nil
	}

	raw := map[string]float64{
		"previous": prev,
		"current":  cur,
	}

	if prev < t.entryLevel && cur > t.entryLevel {
		return types.Signal{
			Time:     at,
			Type:     types.SignalTypeEnterLong,
			Name:     t.Name(),
			Reason:   fmt.Sprintf("%s crossed above %.2f", t.source.Name(), t.entryLevel),
			RawValue: raw,
			Symbol:   t.symbol,
		}, nil
	}

	if prev > t.exitLevel && cur < t.exitLevel {
		return types.Signal{
			Time:     at,
			Type:     types.SignalTypeExitLong,
			Name:     t.Name(),
			Reason:   fmt.Sprintf("%s crossed below %.2f", t.source.Name(), t.exitLevel),
			RawValue: raw,
			Symbol:   t.symbol,
		}, nil
	}

	return types.NoAction(t.Name(), t.symbol, at, "no level crossing"), nil
}
