// Package market supplies time-ordered OHLCV bars for a symbol, either by
// polling a REST endpoint or by streaming closed candles over a WebSocket.
package market

import (
	"context"

	"github.com/rxtech-lab/argo-bot/internal/types"
)

// Source supplies recent bars for a symbol.
type Source interface {
	// GetRecentBars returns up to lookback bars for the symbol, ascending by
	// timestamp. Fewer bars than requested is not an error when the symbol
	// has insufficient history. Network and auth failures are reported as
	// recoverable data-unavailable errors.
	GetRecentBars(ctx context.Context, symbol string, lookback int) ([]types.MarketData, error)
}
