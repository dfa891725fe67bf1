// Package broker executes orders and reports holdings. The broker is the
// single source of truth for positions; local state defers to it during
// reconciliation.
package broker

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/types"
)

// Broker is the gateway the trading loop uses to act on the market.
// "No position" is a valid, expected result and is reported as None, never
// as an error.
type Broker interface {
	// GetPosition returns the current holding for a symbol, or None when the
	// broker reports no open position.
	GetPosition(ctx context.Context, symbol string) (optional.Option[types.Holding], error)
	// GetAccountInfo returns balance and buying power for position sizing.
	GetAccountInfo(ctx context.Context) (types.AccountInfo, error)
	// SubmitMarketOrder submits a market order and returns the broker's
	// acknowledgement. Rejections are reported as order-rejected errors
	// carrying the broker's reason.
	SubmitMarketOrder(ctx context.Context, symbol string, quantity float64, side types.OrderSide) (types.OrderResult, error)
	// SubmitBracketOrder submits an entry order atomically linked with a
	// take-profit and stop-loss so that triggering one cancels the other.
	SubmitBracketOrder(ctx context.Context, symbol string, quantity float64, side types.OrderSide, bracket types.BracketParams) (types.OrderResult, error)
	// SubmitStopOrder places a standalone stop-loss sell at the given stop
	// price, used by the manual trailing-stop scheme.
	SubmitStopOrder(ctx context.Context, symbol string, quantity float64, stopPrice float64) (types.OrderResult, error)
	// ReplaceStopOrder cancels an existing stop order and places a new one at
	// the ratcheted stop price.
	ReplaceStopOrder(ctx context.Context, symbol string, orderID string, quantity float64, newStopPrice float64) (types.OrderResult, error)
	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, symbol string, orderID string) error
	// ClosePosition sells the entire current holding for a symbol at market.
	ClosePosition(ctx context.Context, symbol string) (types.OrderResult, error)
}
