package market

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// DefaultStreamEndpoint is the public Binance combined-stream endpoint.
const DefaultStreamEndpoint = "wss://stream.binance.com:9443/ws"

// KlineStream subscribes to a Binance kline WebSocket stream and yields one
// bar per closed candle. It drives the event-driven variant of the trading
// loop: each yielded bar triggers one complete, non-overlapping cycle.
type KlineStream struct {
	endpoint string
	interval string
}

// NewKlineStream creates a kline stream against the given endpoint for the
// given candlestick interval. Pass DefaultStreamEndpoint for production.
func NewKlineStream(endpoint, interval string) (*KlineStream, error) {
	if endpoint == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "kline stream requires an endpoint")
	}

	if interval == "" {
		return nil, errors.New(errors.ErrCodeInvalidInterval, "kline stream requires a candlestick interval")
	}

	return &KlineStream{
		endpoint: endpoint,
		interval: interval,
	}, nil
}

// klineEvent mirrors the Binance kline stream payload, limited to the fields
// we read.
type klineEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTime int64  `json:"t"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Close     string `json:"c"`
		Volume    string `json:"v"`
		IsClosed  bool   `json:"x"`
	} `json:"k"`
}

// Stream connects and yields closed candles for the symbol until the context
// is cancelled or the connection fails. The iterator yields bar/error pairs;
// a yielded error ends the stream.
func (s *KlineStream) Stream(ctx context.Context, symbol string) iter.Seq2[types.MarketData, error] {
	return func(yield func(types.MarketData, error) bool) {
		url := fmt.Sprintf("%s/%s@kline_%s", s.endpoint, strings.ToLower(symbol), s.interval)

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			yield(types.MarketData{}, errors.Wrapf(errors.ErrCodeDataUnavailable, err, "failed to connect to kline stream for %s", symbol))

			return
		}

		defer func() {
			_ = conn.Close()
		}()

		// Unblock the read loop when the context is cancelled.
		done := make(chan struct{})
		defer close(done)

		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}

				yield(types.MarketData{}, errors.Wrapf(errors.ErrCodeStreamClosed, err, "kline stream for %s closed", symbol))

				return
			}

			var event klineEvent
			if err := json.Unmarshal(message, &event); err != nil {
				yield(types.MarketData{}, errors.Wrap(errors.ErrCodeDataParseFailed, "failed to decode kline event", err))

				return
			}

			if event.EventType != "kline" || !event.Kline.IsClosed {
				continue
			}

			bar, err := streamKlineToMarketData(symbol, event)
			if err != nil {
				yield(types.MarketData{}, err)

				return
			}

			if !yield(bar, nil) {
				return
			}
		}
	}
}

func streamKlineToMarketData(symbol string, event klineEvent) (types.MarketData, error) {
	open, err := strconv.ParseFloat(event.Kline.Open, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse open price %q", event.Kline.Open)
	}

	high, err := strconv.ParseFloat(event.Kline.High, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse high price %q", event.Kline.High)
	}

	low, err := strconv.ParseFloat(event.Kline.Low, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse low price %q", event.Kline.Low)
	}

	closePrice, err := strconv.ParseFloat(event.Kline.Close, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse close price %q", event.Kline.Close)
	}

	volume, err := strconv.ParseFloat(event.Kline.Volume, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "failed to parse volume %q", event.Kline.Volume)
	}

	return types.MarketData{
		Symbol: symbol,
		Time:   time.UnixMilli(event.Kline.StartTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
