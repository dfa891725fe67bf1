package types

import "time"

type SignalType string

const (
	// SignalTypeEnterLong tells the trading loop to open a long position
	SignalTypeEnterLong SignalType = "enter_long"
	// SignalTypeExitLong tells the trading loop to close the long position
	SignalTypeExitLong SignalType = "exit_long"
	// SignalTypeNoAction tells the trading loop to take no action
	SignalTypeNoAction SignalType = "no_action"
)

// Signal is the transient output of one evaluation cycle. It is produced
// fresh each cycle and never persisted.
type Signal struct {
	// Time is the time of the signal
	Time time.Time
	// Type is the type of the signal
	Type SignalType
	// Name is the name of the evaluator that produced the signal
	Name string
	// Reason is the human-readable reason for the signal
	Reason string
	// RawValue carries the indicator values that triggered the signal
	RawValue any
	// Symbol is the symbol of the signal
	Symbol string
}

// NoAction returns a no-action signal for the given evaluator and symbol.
func NoAction(name, symbol string, t time.Time, reason string) Signal {
	return Signal{
		Time:   t,
		Type:   SignalTypeNoAction,
		Name:   name,
		Reason: reason,
		Symbol: symbol,
	}
}
