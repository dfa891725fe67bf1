package broker

import (
	"context"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

const (
	// binanceDecimalPrecision is a default decimal precision used as a fallback.
	// 8 decimals allows for satoshi-level precision (0.00000001 BTC) for BTC-like assets.
	// Production systems should use symbol-specific precision from Binance exchange info.
	binanceDecimalPrecision = 8

	// dustQuantity is the minimum balance treated as an actual holding.
	// Fee remainders below this are ignored during position lookup.
	dustQuantity = 1e-6
)

// BinanceConfig holds credentials and environment selection for the Binance
// spot broker.
type BinanceConfig struct {
	APIKey    string `json:"api_key" yaml:"api_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	// QuoteAsset is the quote currency of traded symbols, e.g. "USDT" for
	// BTCUSDT. Needed to derive the base asset for balance lookups.
	QuoteAsset string `json:"quote_asset" yaml:"quote_asset"`
	// BaseURL overrides the API endpoint; takes precedence over UseTestnet.
	BaseURL    string `json:"base_url" yaml:"base_url"`
	UseTestnet bool   `json:"use_testnet" yaml:"use_testnet"`
}

// BinanceBroker implements Broker on the Binance spot API. It is stateless;
// all data is fetched directly from the exchange.
type BinanceBroker struct {
	client     *binance.Client
	quoteAsset string
}

// NewBinanceBroker creates a Binance spot broker.
func NewBinanceBroker(config BinanceConfig) (*BinanceBroker, error) {
	if config.APIKey == "" || config.SecretKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidCredentials, "binance broker requires api key and secret key")
	}

	if config.QuoteAsset == "" {
		config.QuoteAsset = "USDT"
	}

	if config.UseTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(config.APIKey, config.SecretKey)
	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	return &BinanceBroker{
		client:     client,
		quoteAsset: config.QuoteAsset,
	}, nil
}

// GetPosition derives the holding for a symbol from account balances. The
// average entry price is filled best-effort from the most recent trade.
func (b *BinanceBroker) GetPosition(ctx context.Context, symbol string) (optional.Option[types.Holding], error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return optional.None[types.Holding](), wrapBinanceError(err, "failed to get account info from Binance")
	}

	baseAsset := strings.TrimSuffix(symbol, b.quoteAsset)

	for _, balance := range account.Balances {
		if balance.Asset != baseAsset {
			continue
		}

		free, _ := strconv.ParseFloat(balance.Free, 64)
		locked, _ := strconv.ParseFloat(balance.Locked, 64)

		total := free + locked
		if total < dustQuantity {
			break
		}

		return optional.Some(types.Holding{
			Symbol:        symbol,
			Quantity:      total,
			AvgEntryPrice: b.lastTradePrice(ctx, symbol),
		}), nil
	}

	return optional.None[types.Holding](), nil
}

// lastTradePrice returns the price of the most recent trade for the symbol,
// or zero when unavailable. Best-effort only.
func (b *BinanceBroker) lastTradePrice(ctx context.Context, symbol string) float64 {
	trades, err := b.client.NewListTradesService().Symbol(symbol).Limit(1).Do(ctx)
	if err != nil || len(trades) == 0 {
		return 0
	}

	price, err := strconv.ParseFloat(trades[0].Price, 64)
	if err != nil {
		return 0
	}

	return price
}

// GetAccountInfo reports the free quote-asset balance as both balance and
// buying power; spot accounts have no margin.
func (b *BinanceBroker) GetAccountInfo(ctx context.Context) (types.AccountInfo, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return types.AccountInfo{}, wrapBinanceError(err, "failed to get account info from Binance")
	}

	for _, balance := range account.Balances {
		if balance.Asset != b.quoteAsset {
			continue
		}

		free, _ := strconv.ParseFloat(balance.Free, 64)

		return types.AccountInfo{
			Balance:     free,
			BuyingPower: free,
		}, nil
	}

	return types.AccountInfo{}, nil
}

// SubmitMarketOrder submits a market order.
func (b *BinanceBroker) SubmitMarketOrder(ctx context.Context, symbol string, quantity float64, side types.OrderSide) (types.OrderResult, error) {
	binanceSide, err := toBinanceSide(side)
	if err != nil {
		return types.OrderResult{}, err
	}

	quantityStr, err := formatQuantity(quantity)
	if err != nil {
		return types.OrderResult{}, err
	}

	clientOrderID := uuid.New().String()

	response, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binanceSide).
		Type(binance.OrderTypeMarket).
		Quantity(quantityStr).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return types.OrderResult{}, wrapBinanceError(err, "failed to place market order on Binance")
	}

	return orderResultFromResponse(response, clientOrderID), nil
}

// SubmitBracketOrder submits a market entry followed by an OCO exit linking
// the take-profit and stop-loss legs. Only BUY entries are supported on spot.
func (b *BinanceBroker) SubmitBracketOrder(ctx context.Context, symbol string, quantity float64, side types.OrderSide, bracket types.BracketParams) (types.OrderResult, error) {
	if side != types.OrderSideBuy {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidOrder, "bracket orders support BUY entries only, got %s", side)
	}

	if bracket.TakeProfitPrice <= bracket.StopPrice {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidOrder,
			"take profit %.8f must be above stop price %.8f", bracket.TakeProfitPrice, bracket.StopPrice)
	}

	entry, err := b.SubmitMarketOrder(ctx, symbol, quantity, types.OrderSideBuy)
	if err != nil {
		return types.OrderResult{}, err
	}

	quantityStr, err := formatQuantity(entry.FilledQuantity)
	if err != nil {
		return types.OrderResult{}, err
	}

	_, err = b.client.NewCreateOCOService().
		Symbol(symbol).
		Side(binance.SideTypeSell).
		Quantity(quantityStr).
		Price(formatPrice(bracket.TakeProfitPrice)).
		StopPrice(formatPrice(bracket.StopPrice)).
		StopLimitPrice(formatPrice(bracket.StopPrice)).
		StopLimitTimeInForce(binance.TimeInForceTypeGTC).
		Do(ctx)
	if err != nil {
		// The entry already filled; surface the broken exit legs loudly so
		// the operator can place protection manually.
		return entry, wrapBinanceError(err, "entry filled but failed to place bracket exit legs")
	}

	return entry, nil
}

// SubmitStopOrder places a standalone stop-loss-limit sell.
func (b *BinanceBroker) SubmitStopOrder(ctx context.Context, symbol string, quantity float64, stopPrice float64) (types.OrderResult, error) {
	quantityStr, err := formatQuantity(quantity)
	if err != nil {
		return types.OrderResult{}, err
	}

	clientOrderID := uuid.New().String()

	response, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeStopLossLimit).
		Quantity(quantityStr).
		StopPrice(formatPrice(stopPrice)).
		Price(formatPrice(stopPrice)).
		TimeInForce(binance.TimeInForceTypeGTC).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return types.OrderResult{}, wrapBinanceError(err, "failed to place stop order on Binance")
	}

	return orderResultFromResponse(response, clientOrderID), nil
}

// ReplaceStopOrder cancels the existing stop order and places a new one at
// the ratcheted price. Binance spot has no atomic replace.
func (b *BinanceBroker) ReplaceStopOrder(ctx context.Context, symbol string, orderID string, quantity float64, newStopPrice float64) (types.OrderResult, error) {
	if err := b.CancelOrder(ctx, symbol, orderID); err != nil {
		return types.OrderResult{}, err
	}

	return b.SubmitStopOrder(ctx, symbol, quantity, newStopPrice)
}

// CancelOrder cancels an open order by broker order ID.
func (b *BinanceBroker) CancelOrder(ctx context.Context, symbol string, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidOrder, err, "invalid binance order id %q", orderID)
	}

	_, err = b.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeOrderCancelFailed, err, "failed to cancel order %s", orderID)
	}

	return nil
}

// ClosePosition sells the entire current holding at market.
func (b *BinanceBroker) ClosePosition(ctx context.Context, symbol string) (types.OrderResult, error) {
	holding, err := b.GetPosition(ctx, symbol)
	if err != nil {
		return types.OrderResult{}, err
	}

	if holding.IsNone() {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidOrder, "no open position to close for %s", symbol)
	}

	position, err := holding.Take()
	if err != nil {
		return types.OrderResult{}, errors.Wrap(errors.ErrCodeUnknown, "failed to take holding", err)
	}

	return b.SubmitMarketOrder(ctx, symbol, position.Quantity, types.OrderSideSell)
}

func toBinanceSide(side types.OrderSide) (binance.SideType, error) {
	switch side {
	case types.OrderSideBuy:
		return binance.SideTypeBuy, nil
	case types.OrderSideSell:
		return binance.SideTypeSell, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order side: %s", side)
	}
}

func formatQuantity(quantity float64) (string, error) {
	if quantity <= 0 {
		return "", errors.Newf(errors.ErrCodeInvalidOrder, "order quantity must be greater than zero, got %.8f", quantity)
	}

	return strconv.FormatFloat(quantity, 'f', binanceDecimalPrecision, 64), nil
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// orderResultFromResponse maps the Binance acknowledgement to our result,
// computing the average fill price across partial fills.
func orderResultFromResponse(response *binance.CreateOrderResponse, clientOrderID string) types.OrderResult {
	result := types.OrderResult{
		OrderID:       strconv.FormatInt(response.OrderID, 10),
		ClientOrderID: clientOrderID,
		Status:        mapOrderStatus(response.Status),
		SubmittedAt:   time.UnixMilli(response.TransactTime).UTC(),
	}

	executedQty, err := strconv.ParseFloat(response.ExecutedQuantity, 64)
	if err == nil {
		result.FilledQuantity = executedQty
	}

	totalQty := 0.0
	totalCost := 0.0

	for _, fill := range response.Fills {
		price, priceErr := strconv.ParseFloat(fill.Price, 64)
		qty, qtyErr := strconv.ParseFloat(fill.Quantity, 64)

		if priceErr != nil || qtyErr != nil {
			continue
		}

		totalQty += qty
		totalCost += price * qty
	}

	if totalQty > 0 {
		result.FilledPrice = totalCost / totalQty
	}

	return result
}

func mapOrderStatus(status binance.OrderStatusType) types.OrderStatus {
	switch status {
	case binance.OrderStatusTypeFilled, binance.OrderStatusTypePartiallyFilled:
		return types.OrderStatusFilled
	case binance.OrderStatusTypeNew:
		return types.OrderStatusAccepted
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired, binance.OrderStatusTypePendingCancel:
		return types.OrderStatusCanceled
	case binance.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	default:
		return types.OrderStatusAccepted
	}
}

// wrapBinanceError classifies API errors as rejections and transport errors
// as broker-unavailable, so the loop can treat both as recoverable.
func wrapBinanceError(err error, message string) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return errors.Wrapf(errors.ErrCodeOrderRejected, err, "%s: %s", message, apiErr.Message)
	}

	return errors.Wrap(errors.ErrCodeBrokerUnavailable, message, err)
}
