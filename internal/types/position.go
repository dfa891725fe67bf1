package types

import (
	"fmt"
	"time"
)

// PositionState is the persisted record of whether a strategy currently holds
// an open position for a symbol. It is the only durable state the bot owns.
//
// Invariant: EntryPrice is set if and only if IsInPosition is true. The state
// is mutated only by the trading loop, only after a confirmed order, and is
// overwritten in place for the lifetime of the strategy.
type PositionState struct {
	Symbol       string    `json:"symbol" yaml:"symbol"`
	IsInPosition bool      `json:"is_in_position" yaml:"is_in_position"`
	EntryPrice   *float64  `json:"entry_price" yaml:"entry_price"`
	LastUpdated  time.Time `json:"last_updated" yaml:"last_updated"`
}

// NewPositionState returns the default flat state for a symbol, used on first
// run when no prior record exists.
func NewPositionState(symbol string) PositionState {
	return PositionState{
		Symbol:       symbol,
		IsInPosition: false,
		EntryPrice:   nil,
		LastUpdated:  time.Now().UTC(),
	}
}

// Validate checks the entry-price invariant.
func (p PositionState) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("position state has empty symbol")
	}

	if p.IsInPosition && p.EntryPrice == nil {
		return fmt.Errorf("position state for %s is in position but has no entry price", p.Symbol)
	}

	if !p.IsInPosition && p.EntryPrice != nil {
		return fmt.Errorf("position state for %s is flat but has entry price %.2f", p.Symbol, *p.EntryPrice)
	}

	return nil
}

// Entered returns a copy of the state transitioned to in-position at the
// given entry price.
func (p PositionState) Entered(entryPrice float64, at time.Time) PositionState {
	p.IsInPosition = true
	p.EntryPrice = &entryPrice
	p.LastUpdated = at

	return p
}

// Exited returns a copy of the state transitioned back to flat.
func (p PositionState) Exited(at time.Time) PositionState {
	p.IsInPosition = false
	p.EntryPrice = nil
	p.LastUpdated = at

	return p
}
