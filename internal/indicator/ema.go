package indicator

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// EMA implements the Exponential Moving Average over closing prices,
// seeded with the SMA of the first period values.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator for the given period.
func NewEMA(period int) (*EMA, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "ema period must be a positive integer, got %d", period)
	}

	return &EMA{period: period}, nil
}

// Type returns the indicator family.
func (e *EMA) Type() types.IndicatorType {
	return types.IndicatorTypeEMA
}

// Name returns the series name.
func (e *EMA) Name() string {
	return fmt.Sprintf("ema_%d", e.period)
}

// Compute derives the EMA series. The first period-1 entries are undefined.
func (e *EMA) Compute(bars []types.MarketData) (Series, error) {
	series := NewSeries(e.Name(), len(bars))
	values := emaOver(closes(bars), e.period)

	for i, v := range values {
		series.Values[i] = v
	}

	return series, nil
}

// emaOver computes an EMA over raw values, returning one optional per input.
// Shared with MACD, which runs EMAs over prices and over its own line.
func emaOver(values []float64, period int) []optional.Option[float64] {
	out := make([]optional.Option[float64], len(values))
	for i := range out {
		out[i] = optional.None[float64]()
	}

	if len(values) < period {
		return out
	}

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}

	prev := seed / float64(period)
	out[period-1] = optional.Some(prev)

	multiplier := 2.0 / (float64(period) + 1.0)

	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*multiplier + prev
		out[i] = optional.Some(prev)
	}

	return out
}
