package types

import "time"

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderStatus string

const (
	OrderStatusAccepted OrderStatus = "accepted"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusCanceled OrderStatus = "canceled"
)

// OrderResult is the broker's acknowledgement of a submitted order.
type OrderResult struct {
	// OrderID is the broker-assigned order identifier
	OrderID string `json:"order_id" yaml:"order_id"`
	// ClientOrderID is the identifier generated on our side before submission
	ClientOrderID string `json:"client_order_id" yaml:"client_order_id"`
	// Status is the acknowledged status of the order
	Status OrderStatus `json:"status" yaml:"status"`
	// FilledPrice is the average fill price, zero if not yet filled
	FilledPrice float64 `json:"filled_price" yaml:"filled_price"`
	// FilledQuantity is the filled quantity, zero if not yet filled
	FilledQuantity float64 `json:"filled_quantity" yaml:"filled_quantity"`
	// SubmittedAt is the submission time
	SubmittedAt time.Time `json:"submitted_at" yaml:"submitted_at"`
}

// BracketParams links a take-profit and stop-loss to an entry order so that
// triggering one cancels the other.
type BracketParams struct {
	TakeProfitPrice float64 `json:"take_profit_price" yaml:"take_profit_price"`
	StopPrice       float64 `json:"stop_price" yaml:"stop_price"`
}

// Holding is a broker-reported open position for a symbol. The broker is the
// source of truth for holdings; local state is reconciled against it.
type Holding struct {
	Symbol        string  `json:"symbol" yaml:"symbol"`
	Quantity      float64 `json:"quantity" yaml:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price" yaml:"avg_entry_price"`
}

// AccountInfo is the subset of account state needed for position sizing.
type AccountInfo struct {
	// Balance is the current cash balance
	Balance float64 `json:"balance" yaml:"balance"`
	// BuyingPower is the available amount for new purchases
	BuyingPower float64 `json:"buying_power" yaml:"buying_power"`
}
