package types

import "time"

// MarketData represents one OHLCV bar for a symbol.
// Bars are immutable once produced and ordered ascending by Time within a series.
type MarketData struct {
	// Symbol is the trading symbol this bar belongs to
	Symbol string `json:"symbol" yaml:"symbol"`
	// Time is the bar timestamp, monotonically increasing per series
	Time   time.Time `json:"time" yaml:"time"`
	Open   float64   `json:"open" yaml:"open"`
	High   float64   `json:"high" yaml:"high"`
	Low    float64   `json:"low" yaml:"low"`
	Close  float64   `json:"close" yaml:"close"`
	Volume float64   `json:"volume" yaml:"volume"`
}
