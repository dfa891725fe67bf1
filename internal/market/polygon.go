package market

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// PolygonSource fetches aggregate bars from the Polygon REST API, used for
// equities where Binance has no data.
type PolygonSource struct {
	client     *polygon.Client
	multiplier int
	timespan   models.Timespan
}

// NewPolygonSource creates a Polygon market data source producing
// multiplier x timespan bars (e.g. 1 x day).
func NewPolygonSource(apiKey string, multiplier int, timespan models.Timespan) (*PolygonSource, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidCredentials, "polygon source requires an API key")
	}

	if multiplier <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInterval, "polygon multiplier must be positive, got %d", multiplier)
	}

	return &PolygonSource{
		client:     polygon.New(apiKey),
		multiplier: multiplier,
		timespan:   timespan,
	}, nil
}

// GetRecentBars fetches the most recent aggregates for the ticker.
func (s *PolygonSource) GetRecentBars(ctx context.Context, symbol string, lookback int) ([]types.MarketData, error) {
	if lookback <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "lookback must be positive, got %d", lookback)
	}

	now := time.Now().UTC()

	// Request twice the lookback span so weekends and holidays still leave
	// enough trading bars to satisfy the request.
	span, err := s.barDuration()
	if err != nil {
		return nil, err
	}

	from := now.Add(-time.Duration(2*lookback) * span)

	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: s.multiplier,
		Timespan:   s.timespan,
		From:       models.Millis(from),
		To:         models.Millis(now),
	}.WithOrder(models.Asc).WithAdjusted(true)

	bars := make([]types.MarketData, 0, lookback)

	iter := s.client.ListAggs(ctx, params)
	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.MarketData{
			Symbol: symbol,
			Time:   time.Time(agg.Timestamp).UTC(),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataUnavailable, err, "failed to fetch aggregates for %s from Polygon", symbol)
	}

	if len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}

	return bars, nil
}

func (s *PolygonSource) barDuration() (time.Duration, error) {
	var unit time.Duration

	switch s.timespan {
	case models.Minute:
		unit = time.Minute
	case models.Hour:
		unit = time.Hour
	case models.Day:
		unit = 24 * time.Hour
	case models.Week:
		unit = 7 * 24 * time.Hour
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidInterval, "unsupported polygon timespan: %s", s.timespan)
	}

	return time.Duration(s.multiplier) * unit, nil
}
