package indicator

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// SMA implements the Simple Moving Average over closing prices.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator for the given period.
func NewSMA(period int) (*SMA, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "sma period must be a positive integer, got %d", period)
	}

	return &SMA{period: period}, nil
}

// Type returns the indicator family.
func (s *SMA) Type() types.IndicatorType {
	return types.IndicatorTypeSMA
}

// Name returns the series name.
func (s *SMA) Name() string {
	return fmt.Sprintf("sma_%d", s.period)
}

// Compute derives the SMA series. The first period-1 entries are undefined.
func (s *SMA) Compute(bars []types.MarketData) (Series, error) {
	series := NewSeries(s.Name(), len(bars))
	prices := closes(bars)

	sum := 0.0

	for i, price := range prices {
		sum += price
		if i >= s.period {
			sum -= prices[i-s.period]
		}

		if i >= s.period-1 {
			series.Values[i] = optional.Some(sum / float64(s.period))
		}
	}

	return series, nil
}
