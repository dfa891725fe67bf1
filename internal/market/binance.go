package market

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// BinanceSource fetches klines from the Binance REST API.
type BinanceSource struct {
	client   *binance.Client
	interval string
}

// NewBinanceSource creates a Binance market data source for the given
// candlestick interval (e.g. "1m", "1h", "1d"). Public kline endpoints do
// not require credentials.
func NewBinanceSource(interval string) (*BinanceSource, error) {
	if interval == "" {
		return nil, errors.New(errors.ErrCodeInvalidInterval, "binance source requires a candlestick interval")
	}

	return &BinanceSource{
		client:   binance.NewClient("", ""),
		interval: interval,
	}, nil
}

// GetRecentBars fetches the most recent klines for the symbol.
func (s *BinanceSource) GetRecentBars(ctx context.Context, symbol string, lookback int) ([]types.MarketData, error) {
	if lookback <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "lookback must be positive, got %d", lookback)
	}

	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(s.interval).
		Limit(lookback).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataUnavailable, err, "failed to fetch klines for %s from Binance", symbol)
	}

	bars := make([]types.MarketData, 0, len(klines))

	for _, kline := range klines {
		bar, err := klineToMarketData(symbol, kline)
		if err != nil {
			return nil, err
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

// klineToMarketData converts a Binance kline to our internal bar format.
func klineToMarketData(symbol string, kline *binance.Kline) (types.MarketData, error) {
	open, err := strconv.ParseFloat(kline.Open, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse open price %q", kline.Open)
	}

	high, err := strconv.ParseFloat(kline.High, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse high price %q", kline.High)
	}

	low, err := strconv.ParseFloat(kline.Low, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse low price %q", kline.Low)
	}

	closePrice, err := strconv.ParseFloat(kline.Close, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse close price %q", kline.Close)
	}

	volume, err := strconv.ParseFloat(kline.Volume, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse volume %q", kline.Volume)
	}

	return types.MarketData{
		Symbol: symbol,
		Time:   time.UnixMilli(kline.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
