package indicator

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// MACDLine selects which of the three MACD outputs a MACD instance produces.
type MACDLine string

const (
	// MACDLineMACD is the fast EMA minus slow EMA line.
	MACDLineMACD MACDLine = "macd"
	// MACDLineSignal is the EMA of the MACD line.
	MACDLineSignal MACDLine = "signal"
	// MACDLineHistogram is the MACD line minus the signal line.
	MACDLineHistogram MACDLine = "histogram"
)

// MACD implements Moving Average Convergence Divergence. Each instance
// produces one of the three lines so it fits the one-series Indicator
// contract; evaluators that need both the MACD and signal lines register two
// instances sharing the same periods.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
	line         MACDLine
}

// NewMACD creates a new MACD indicator producing the selected line.
func NewMACD(fastPeriod, slowPeriod, signalPeriod int, line MACDLine) (*MACD, error) {
	if fastPeriod <= 0 || slowPeriod <= 0 || signalPeriod <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"macd periods must be positive integers, got fast=%d slow=%d signal=%d",
			fastPeriod, slowPeriod, signalPeriod)
	}

	if fastPeriod >= slowPeriod {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"macd fast period %d must be shorter than slow period %d", fastPeriod, slowPeriod)
	}

	switch line {
	case MACDLineMACD, MACDLineSignal, MACDLineHistogram:
	default:
		return nil, errors.Newf(errors.ErrCodeEvaluatorConfig, "unknown macd line: %s", line)
	}

	return &MACD{
		fastPeriod:   fastPeriod,
		slowPeriod:   slowPeriod,
		signalPeriod: signalPeriod,
		line:         line,
	}, nil
}

// Type returns the indicator family.
func (m *MACD) Type() types.IndicatorType {
	return types.IndicatorTypeMACD
}

// Name returns the series name.
func (m *MACD) Name() string {
	return fmt.Sprintf("macd_%d_%d_%d_%s", m.fastPeriod, m.slowPeriod, m.signalPeriod, m.line)
}

// Compute derives the selected MACD line. The MACD line is undefined until
// the slow EMA warms up; the signal and histogram lines additionally need
// signalPeriod MACD values.
func (m *MACD) Compute(bars []types.MarketData) (Series, error) {
	series := NewSeries(m.Name(), len(bars))
	prices := closes(bars)

	fast := emaOver(prices, m.fastPeriod)
	slow := emaOver(prices, m.slowPeriod)

	macdLine := make([]optional.Option[float64], len(prices))
	for i := range macdLine {
		macdLine[i] = optional.None[float64]()

		if fast[i].IsNone() || slow[i].IsNone() {
			continue
		}

		fastValue, err := fast[i].Take()
		if err != nil {
			return Series{}, errors.Wrap(errors.ErrCodeIndicatorCalculation, "failed to take fast ema value", err)
		}

		slowValue, err := slow[i].Take()
		if err != nil {
			return Series{}, errors.Wrap(errors.ErrCodeIndicatorCalculation, "failed to take slow ema value", err)
		}

		macdLine[i] = optional.Some(fastValue - slowValue)
	}

	if m.line == MACDLineMACD {
		series.Values = macdLine

		return series, nil
	}

	// The signal line is an EMA over the defined region of the MACD line.
	definedStart := m.slowPeriod - 1
	if definedStart >= len(prices) {
		return series, nil
	}

	defined := make([]float64, 0, len(prices)-definedStart)

	for i := definedStart; i < len(prices); i++ {
		value, err := macdLine[i].Take()
		if err != nil {
			return Series{}, errors.Wrap(errors.ErrCodeIndicatorCalculation, "macd line undefined in defined region", err)
		}

		defined = append(defined, value)
	}

	signal := emaOver(defined, m.signalPeriod)

	for i, v := range signal {
		if v.IsNone() {
			continue
		}

		signalValue, err := v.Take()
		if err != nil {
			return Series{}, errors.Wrap(errors.ErrCodeIndicatorCalculation, "failed to take signal value", err)
		}

		idx := definedStart + i

		if m.line == MACDLineSignal {
			series.Values[idx] = optional.Some(signalValue)

			continue
		}

		macdValue, err := macdLine[idx].Take()
		if err != nil {
			return Series{}, errors.Wrap(errors.ErrCodeIndicatorCalculation, "failed to take macd value", err)
		}

		series.Values[idx] = optional.Some(macdValue - signalValue)
	}

	return series, nil
}
