package strategy

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// Confirmation combines two evaluators: entry requires both to emit
// enter on the same cycle, while exit follows the primary evaluator alone.
// The looser exit is a deliberate strategy choice, not an oversight: waiting
// for two indicators to agree on the way out tends to give back profit.
type Confirmation struct {
	symbol     string
	primary    Evaluator
	confirming Evaluator
}

// NewConfirmation creates a confirmation evaluator from a primary and a
// confirming evaluator.
func NewConfirmation(symbol string, primary, confirming Evaluator) (*Confirmation, error) {
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeEvaluatorConfig, "confirmation evaluator requires a symbol")
	}

	if primary == nil || confirming == nil {
		return nil, errors.New(errors.ErrCodeEvaluatorConfig, "confirmation evaluator requires primary and confirming evaluators")
	}

	return &Confirmation{
		symbol:     symbol,
		primary:    primary,
		confirming: confirming,
	}, nil
}

// Name returns the name of the evaluator.
func (c *Confirmation) Name() string {
	return fmt.Sprintf("confirmed_%s_by_%s", c.primary.Name(), c.confirming.Name())
}

// Indicators merges the indicators of both sub-evaluators. Series names
// collide only when both sides read the same series, which is harmless.
func (c *Confirmation) Indicators() map[string]indicator.Indicator {
	merged := make(map[string]indicator.Indicator)

	for name, ind := range c.primary.Indicators() {
		merged[name] = ind
	}

	for name, ind := range c.confirming.Indicators() {
		merged[name] = ind
	}

	return merged
}

// Evaluate requires agreement of both sub-evaluators for entry and only the
// primary for exit.
func (c *Confirmation) Evaluate(previous, current Snapshot, at time.Time) (types.Signal, error) {
	primarySignal, err := c.primary.Evaluate(previous, current, at)
	if err != nil {
		return types.Signal{}, err
	}

	if primarySignal.Type == types.SignalTypeExitLong {
		primarySignal.Name = c.Name()

		return primarySignal, nil
	}

	if primarySignal.Type != types.SignalTypeEnterLong {
		return types.NoAction(c.Name(), c.symbol, at, "primary signal absent"), nil
	}

	confirmingSignal, err := c.confirming.Evaluate(previous, current, at)
	if err != nil {
		return types.Signal{}, err
	}

	if confirmingSignal.Type != types.SignalTypeEnterLong {
		return types.NoAction(c.Name(), c.symbol, at, "entry not confirmed"), nil
	}

	return types.Signal{
		Time:   at,
		Type:   types.SignalTypeEnterLong,
		Name:   c.Name(),
		Reason: fmt.Sprintf("%s confirmed by %s", primarySignal.Reason, confirmingSignal.Reason),
		RawValue: map[string]any{
			"primary":    primarySignal.RawValue,
			"confirming": confirmingSignal.RawValue,
		},
		Symbol: c.symbol,
	}, nil
}
