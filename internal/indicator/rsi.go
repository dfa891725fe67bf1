package indicator

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// RSI implements the Relative Strength Index using Wilder's smoothing.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator for the given period.
func NewRSI(period int) (*RSI, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "rsi period must be a positive integer, got %d", period)
	}

	return &RSI{period: period}, nil
}

// Type returns the indicator family.
func (r *RSI) Type() types.IndicatorType {
	return types.IndicatorTypeRSI
}

// Name returns the series name.
func (r *RSI) Name() string {
	return fmt.Sprintf("rsi_%d", r.period)
}

// Compute derives the RSI series. The first period entries are undefined
// since the first value needs period price changes.
func (r *RSI) Compute(bars []types.MarketData) (Series, error) {
	series := NewSeries(r.Name(), len(bars))
	prices := closes(bars)

	if len(prices) <= r.period {
		return series, nil
	}

	avgGain := 0.0
	avgLoss := 0.0

	for i := 1; i <= r.period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}

	avgGain /= float64(r.period)
	avgLoss /= float64(r.period)
	series.Values[r.period] = optional.Some(rsiFromAverages(avgGain, avgLoss))

	for i := r.period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]

		gain := 0.0
		loss := 0.0

		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		avgGain = (avgGain*float64(r.period-1) + gain) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + loss) / float64(r.period)
		series.Values[i] = optional.Some(rsiFromAverages(avgGain, avgLoss))
	}

	return series, nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss

	return 100 - 100/(1+rs)
}
