package bot

import (
	"context"

	"github.com/rxtech-lab/argo-bot/internal/broker"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/shopspring/decimal"
)

// sizerQuantityPrecision is the decimal precision order quantities are
// truncated to. Matches satoshi-level precision for BTC-like assets.
const sizerQuantityPrecision = 8

// Sizer determines the order quantity for a new entry at the given price.
type Sizer interface {
	Quantity(ctx context.Context, symbol string, price float64) (float64, error)
}

// FixedSizer always returns the same configured quantity.
type FixedSizer struct {
	quantity float64
}

// NewFixedSizer creates a sizer returning a constant quantity.
func NewFixedSizer(quantity float64) (*FixedSizer, error) {
	if quantity <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidQuantity, "fixed quantity must be positive, got %.8f", quantity)
	}

	return &FixedSizer{quantity: quantity}, nil
}

func (s *FixedSizer) Quantity(_ context.Context, _ string, _ float64) (float64, error) {
	return s.quantity, nil
}

// RiskPercentSizer spends a fixed percentage of current buying power per
// entry. Quantity arithmetic uses decimals to avoid float drift when dividing
// notional by price.
type RiskPercentSizer struct {
	broker  broker.Broker
	percent decimal.Decimal
}

// NewRiskPercentSizer creates a sizer spending percent (0, 100] of buying
// power per entry.
func NewRiskPercentSizer(b broker.Broker, percent float64) (*RiskPercentSizer, error) {
	if percent <= 0 || percent > 100 {
		return nil, errors.Newf(errors.ErrCodeInvalidQuantity, "risk percent must be in (0, 100], got %.2f", percent)
	}

	return &RiskPercentSizer{
		broker:  b,
		percent: decimal.NewFromFloat(percent),
	}, nil
}

func (s *RiskPercentSizer) Quantity(ctx context.Context, symbol string, price float64) (float64, error) {
	if price <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidQuantity, "cannot size %s order at non-positive price %.8f", symbol, price)
	}

	account, err := s.broker.GetAccountInfo(ctx)
	if err != nil {
		return 0, err
	}

	notional := decimal.NewFromFloat(account.BuyingPower).
		Mul(s.percent).
		Div(decimal.NewFromInt(100))

	quantity := notional.
		Div(decimal.NewFromFloat(price)).
		Truncate(sizerQuantityPrecision)

	result, _ := quantity.Float64()
	if result <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidQuantity,
			"buying power %.2f is insufficient for %s at price %.8f", account.BuyingPower, symbol, price)
	}

	return result, nil
}
