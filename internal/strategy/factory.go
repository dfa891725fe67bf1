package strategy

import (
	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// Kind names a built-in evaluator configuration.
type Kind string

const (
	// KindSMACrossover is the golden/death cross on two SMAs.
	KindSMACrossover Kind = "sma_crossover"
	// KindEMACrossover is the same cross on two EMAs.
	KindEMACrossover Kind = "ema_crossover"
	// KindMACDCrossover crosses the MACD line against its signal line.
	KindMACDCrossover Kind = "macd_crossover"
	// KindRSIThreshold enters on an upward cross of the oversold level and
	// exits on a downward cross of the overbought level.
	KindRSIThreshold Kind = "rsi_threshold"
	// KindRSIMACDConfirmation requires RSI and MACD entries to agree; exit
	// follows MACD alone.
	KindRSIMACDConfirmation Kind = "rsi_macd_confirmation"
)

// Params carries the tunables for the built-in evaluators. Fields unused by
// the selected kind are ignored.
type Params struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
	RSIPeriod    int
	EntryLevel   float64
	ExitLevel    float64
}

// New builds an evaluator of the given kind for a symbol.
func New(kind Kind, symbol string, params Params) (Evaluator, error) {
	switch kind {
	case KindSMACrossover:
		fast, err := indicator.NewSMA(params.FastPeriod)
		if err != nil {
			return nil, err
		}

		slow, err := indicator.NewSMA(params.SlowPeriod)
		if err != nil {
			return nil, err
		}

		return NewCrossover(symbol, fast, slow)
	case KindEMACrossover:
		fast, err := indicator.NewEMA(params.FastPeriod)
		if err != nil {
			return nil, err
		}

		slow, err := indicator.NewEMA(params.SlowPeriod)
		if err != nil {
			return nil, err
		}

		return NewCrossover(symbol, fast, slow)
	case KindMACDCrossover:
		return newMACDCrossover(symbol, params)
	case KindRSIThreshold:
		return newRSIThreshold(symbol, params)
	case KindRSIMACDConfirmation:
		primary, err := newMACDCrossover(symbol, params)
		if err != nil {
			return nil, err
		}

		confirming, err := newRSIThreshold(symbol, params)
		if err != nil {
			return nil, err
		}

		return NewConfirmation(symbol, primary, confirming)
	default:
		return nil, errors.Newf(errors.ErrCodeEvaluatorConfig, "unknown evaluator kind: %s", kind)
	}
}

func newMACDCrossover(symbol string, params Params) (Evaluator, error) {
	macdLine, err := indicator.NewMACD(params.FastPeriod, params.SlowPeriod, params.SignalPeriod, indicator.MACDLineMACD)
	if err != nil {
		return nil, err
	}

	signalLine, err := indicator.NewMACD(params.FastPeriod, params.SlowPeriod, params.SignalPeriod, indicator.MACDLineSignal)
	if err != nil {
		return nil, err
	}

	return NewCrossover(symbol, macdLine, signalLine)
}

func newRSIThreshold(symbol string, params Params) (Evaluator, error) {
	rsi, err := indicator.NewRSI(params.RSIPeriod)
	if err != nil {
		return nil, err
	}

	return NewThreshold(symbol, rsi, params.EntryLevel, params.ExitLevel)
}
