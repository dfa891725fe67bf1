package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/types"
)

// Series is a named sequence of indicator values aligned index-for-index with
// the bar sequence it was derived from. Leading entries are None until enough
// history exists; this is the expected warm-up condition, not an error, and
// warm-up values are never reported as zero.
type Series struct {
	// Name identifies the derived series, e.g. "sma_20" or "rsi_14".
	Name string
	// Values holds one optional value per input bar.
	Values []optional.Option[float64]
}

// NewSeries creates a series of the given length with all values undefined.
func NewSeries(name string, length int) Series {
	values := make([]optional.Option[float64], length)
	for i := range values {
		values[i] = optional.None[float64]()
	}

	return Series{
		Name:   name,
		Values: values,
	}
}

// Len returns the number of entries in the series.
func (s Series) Len() int {
	return len(s.Values)
}

// At returns the value at index i, or None when i is out of range.
func (s Series) At(i int) optional.Option[float64] {
	if i < 0 || i >= len(s.Values) {
		return optional.None[float64]()
	}

	return s.Values[i]
}

// Last returns the most recent value of the series.
func (s Series) Last() optional.Option[float64] {
	return s.At(len(s.Values) - 1)
}

// Indicator computes one derived series from a bar sequence. Implementations
// are pure functions of their input: no side effects, deterministic, and the
// output is aligned index-for-index with the input bars.
type Indicator interface {
	// Type returns the indicator family this series belongs to.
	Type() types.IndicatorType
	// Name returns the series name, e.g. "sma_20".
	Name() string
	// Compute derives the series from the given bars.
	Compute(bars []types.MarketData) (Series, error)
}

// closes extracts the close prices from a bar sequence.
func closes(bars []types.MarketData) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = bar.Close
	}

	return out
}
