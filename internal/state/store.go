// Package state persists one PositionState record per symbol. The store is a
// cache of broker truth: it is read once at startup, written once per state
// transition, and reconciliation against the broker self-heals any drift.
package state

import "github.com/rxtech-lab/argo-bot/internal/types"

// Store is durable persistence for position state, surviving process
// restarts. Exactly one writer (the trading loop for that symbol) mutates a
// given record.
type Store interface {
	// Load returns the persisted state for a symbol. Absence of a record is
	// not an error: the flat default state is returned on first run.
	Load(symbol string) (types.PositionState, error)
	// Save overwrites the record for the state's symbol.
	Save(state types.PositionState) error
}
