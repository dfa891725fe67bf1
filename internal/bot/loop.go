// Package bot runs the signal-driven position state machine: a sequential
// polling loop per symbol that reconciles state against the broker, evaluates
// signals on fresh bars, and submits gated orders. Cycles never overlap.
package bot

import (
	"context"
	"iter"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/broker"
	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/market"
	"github.com/rxtech-lab/argo-bot/internal/notify"
	"github.com/rxtech-lab/argo-bot/internal/state"
	"github.com/rxtech-lab/argo-bot/internal/strategy"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultMaxConsecutiveFailures trips the circuit breaker.
	DefaultMaxConsecutiveFailures = 5

	// shutdownCancelTimeout bounds the best-effort cancel of an orphaned
	// stop order during shutdown.
	shutdownCancelTimeout = 5 * time.Second
)

// LoopConfig holds the per-symbol knobs of a trading loop.
type LoopConfig struct {
	Symbol string
	// Lookback is how many bars to fetch per cycle. Must cover the slowest
	// indicator's warm-up plus at least two evaluated points.
	Lookback int
	// PollInterval is the sleep between cycles.
	PollInterval time.Duration
	// PauseInterval is the extended sleep after the circuit breaker trips.
	PauseInterval time.Duration
	// MaxConsecutiveFailures is the circuit breaker threshold.
	MaxConsecutiveFailures int
	// TakeProfitPercent and StopLossPercent, when both positive, make
	// entries bracket orders instead of plain market orders.
	TakeProfitPercent float64
	StopLossPercent   float64
	// TrailingStopPercent, when positive, maintains a manual stop order
	// below the high-water mark after entry. Mutually exclusive with the
	// bracket percentages.
	TrailingStopPercent float64
}

func (c LoopConfig) validate() error {
	if c.Symbol == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "trading loop requires a symbol")
	}

	if c.Lookback < 2 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "lookback must be at least 2, got %d", c.Lookback)
	}

	if c.PollInterval <= 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "poll interval must be positive")
	}

	if c.TrailingStopPercent > 0 && (c.TakeProfitPercent > 0 || c.StopLossPercent > 0) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "trailing stop and bracket orders are mutually exclusive")
	}

	if (c.TakeProfitPercent > 0) != (c.StopLossPercent > 0) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "bracket orders require both take profit and stop loss percentages")
	}

	return nil
}

// TradingLoop owns the position state machine for one symbol. It is the
// single writer of that symbol's state record and must not be shared across
// goroutines.
type TradingLoop struct {
	config     LoopConfig
	source     market.Source
	broker     broker.Broker
	store      state.Store
	evaluator  strategy.Evaluator
	indicators indicator.Registry
	sizer      Sizer
	notifier   notify.Notifier
	logger     *logger.Logger

	position types.PositionState

	consecutiveFailures int

	// Manual trailing stop bookkeeping. Empty orderID means no active stop.
	stopOrderID  string
	stopPrice    float64
	stopQuantity float64
}

// NewTradingLoop assembles a trading loop. The initial position comes from
// the first reconciliation, not from here.
func NewTradingLoop(
	config LoopConfig,
	source market.Source,
	b broker.Broker,
	store state.Store,
	evaluator strategy.Evaluator,
	sizer Sizer,
	notifier notify.Notifier,
	log *logger.Logger,
) (*TradingLoop, error) {
	if config.PauseInterval <= 0 {
		config.PauseInterval = 10 * config.PollInterval
	}

	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	if notifier == nil {
		notifier = notify.NewNoop()
	}

	registry := indicator.NewRegistry()
	for _, ind := range evaluator.Indicators() {
		if err := registry.RegisterIndicator(ind); err != nil {
			return nil, err
		}
	}

	return &TradingLoop{
		config:     config,
		source:     source,
		broker:     b,
		store:      store,
		evaluator:  evaluator,
		indicators: registry,
		sizer:      sizer,
		notifier:   notifier,
		logger:     log.With(zap.String("symbol", config.Symbol), zap.String("evaluator", evaluator.Name())),
		position:   types.NewPositionState(config.Symbol),
	}, nil
}

// Position returns the loop's current view of its position state.
func (l *TradingLoop) Position() types.PositionState {
	return l.position
}

// Reconcile aligns local state with the broker. The broker is the source of
// truth; any drift is logged as an anomaly, overwritten locally, and
// persisted immediately.
func (l *TradingLoop) Reconcile(ctx context.Context) error {
	stored, err := l.store.Load(l.config.Symbol)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeStateCorrupted) {
			// A corrupt record is recoverable: the broker query below
			// rebuilds the truth from scratch.
			l.logger.Error("state record corrupted, rebuilding from broker", zap.Error(err))
			stored = types.NewPositionState(l.config.Symbol)
		} else {
			return err
		}
	}

	holding, err := l.broker.GetPosition(ctx, l.config.Symbol)
	if err != nil {
		return err
	}

	reconciled, changed := l.reconcileAgainst(stored, holding)
	l.position = reconciled

	if !changed {
		return nil
	}

	if err := l.store.Save(reconciled); err != nil {
		l.logger.Error("failed to persist reconciled state", zap.Error(err))
	}

	return nil
}

func (l *TradingLoop) reconcileAgainst(stored types.PositionState, holding optional.Option[types.Holding]) (types.PositionState, bool) {
	brokerHasPosition := holding.IsSome()

	if brokerHasPosition == stored.IsInPosition {
		return stored, false
	}

	now := time.Now().UTC()

	if brokerHasPosition {
		open, err := holding.Take()
		if err != nil {
			return stored, false
		}

		l.logger.Warn("state drift: broker reports a holding but local state is flat, adopting broker truth",
			zap.Float64("quantity", open.Quantity),
			zap.Float64("avg_entry_price", open.AvgEntryPrice))

		return stored.Entered(open.AvgEntryPrice, now), true
	}

	l.logger.Warn("state drift: local state is in position but broker reports none, resetting to flat")

	// A stop order tracked locally must have filled or been cancelled for
	// the position to disappear.
	l.clearStopOrder()

	return stored.Exited(now), true
}

// Cycle runs one full iteration: reconcile, fetch, evaluate, act, persist.
// It returns an error only for failures that should count toward the circuit
// breaker; everything else is logged and absorbed.
func (l *TradingLoop) Cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeUnknown, "cycle panicked: %v", r)
		}
	}()

	if err := l.Reconcile(ctx); err != nil {
		return err
	}

	bars, err := l.source.GetRecentBars(ctx, l.config.Symbol, l.config.Lookback)
	if err != nil {
		return err
	}

	if len(bars) < 2 {
		return errors.Newf(errors.ErrCodeInsufficientHistory, "need at least 2 bars to evaluate, got %d", len(bars))
	}

	previous, current, err := l.snapshots(bars)
	if err != nil {
		return err
	}

	lastBar := bars[len(bars)-1]

	signal, err := l.evaluator.Evaluate(previous, current, lastBar.Time)
	if err != nil {
		return err
	}

	if signal.Type != types.SignalTypeNoAction {
		l.logger.Info("signal",
			zap.String("type", string(signal.Type)),
			zap.String("reason", signal.Reason),
			zap.Float64("close", lastBar.Close))
	}

	switch {
	case signal.Type == types.SignalTypeEnterLong && !l.position.IsInPosition:
		return l.enter(ctx, lastBar)
	case signal.Type == types.SignalTypeExitLong && l.position.IsInPosition:
		return l.exit(ctx, lastBar)
	case signal.Type == types.SignalTypeEnterLong && l.position.IsInPosition:
		l.logger.Debug("enter signal while already in position, ignoring")
	case signal.Type == types.SignalTypeExitLong && !l.position.IsInPosition:
		l.logger.Debug("exit signal while flat, ignoring")
	default:
		if l.position.IsInPosition && l.config.TrailingStopPercent > 0 {
			l.ratchetStop(ctx, lastBar.Close)
		}
	}

	return nil
}

// snapshots computes every registered series and returns the second-to-last
// and last aligned points.
func (l *TradingLoop) snapshots(bars []types.MarketData) (strategy.Snapshot, strategy.Snapshot, error) {
	previous := make(strategy.Snapshot)
	current := make(strategy.Snapshot)

	for _, name := range l.indicators.ListIndicators() {
		ind, err := l.indicators.GetIndicator(name)
		if err != nil {
			return nil, nil, err
		}

		series, err := ind.Compute(bars)
		if err != nil {
			return nil, nil, err
		}

		previous[name] = series.At(series.Len() - 2)
		current[name] = series.At(series.Len() - 1)
	}

	return previous, current, nil
}

func (l *TradingLoop) enter(ctx context.Context, bar types.MarketData) error {
	quantity, err := l.sizer.Quantity(ctx, l.config.Symbol, bar.Close)
	if err != nil {
		return err
	}

	var result types.OrderResult

	if l.config.TakeProfitPercent > 0 {
		bracket := types.BracketParams{
			TakeProfitPrice: bar.Close * (1 + l.config.TakeProfitPercent/100),
			StopPrice:       bar.Close * (1 - l.config.StopLossPercent/100),
		}
		result, err = l.broker.SubmitBracketOrder(ctx, l.config.Symbol, quantity, types.OrderSideBuy, bracket)
	} else {
		result, err = l.broker.SubmitMarketOrder(ctx, l.config.Symbol, quantity, types.OrderSideBuy)
	}

	if err != nil {
		// Stay flat; the next cycle re-evaluates and may retry.
		l.logger.Error("entry order failed, remaining flat", zap.Error(err))

		return err
	}

	entryPrice := result.FilledPrice
	if entryPrice <= 0 {
		entryPrice = bar.Close
	}

	filledQuantity := result.FilledQuantity
	if filledQuantity <= 0 {
		filledQuantity = quantity
	}

	l.position = l.position.Entered(entryPrice, time.Now().UTC())
	l.persistAfterOrder()

	l.logger.Info("entered position",
		zap.String("order_id", result.OrderID),
		zap.Float64("quantity", filledQuantity),
		zap.Float64("entry_price", entryPrice))

	l.sendNotification(ctx, notify.EntryMessage(l.config.Symbol, filledQuantity, entryPrice))

	if l.config.TrailingStopPercent > 0 {
		l.placeInitialStop(ctx, entryPrice, filledQuantity)
	}

	return nil
}

func (l *TradingLoop) exit(ctx context.Context, bar types.MarketData) error {
	if l.stopOrderID != "" {
		// Cancel the protective stop before the market sell so the exchange
		// does not double-sell.
		if err := l.broker.CancelOrder(ctx, l.config.Symbol, l.stopOrderID); err != nil {
			l.logger.Warn("failed to cancel protective stop before exit", zap.Error(err))
		}

		l.clearStopOrder()
	}

	result, err := l.broker.ClosePosition(ctx, l.config.Symbol)
	if err != nil {
		l.logger.Error("exit order failed, remaining in position", zap.Error(err))

		return err
	}

	exitPrice := result.FilledPrice
	if exitPrice <= 0 {
		exitPrice = bar.Close
	}

	l.position = l.position.Exited(time.Now().UTC())
	l.persistAfterOrder()

	l.logger.Info("exited position",
		zap.String("order_id", result.OrderID),
		zap.Float64("quantity", result.FilledQuantity),
		zap.Float64("exit_price", exitPrice))

	l.sendNotification(ctx, notify.ExitMessage(l.config.Symbol, result.FilledQuantity, exitPrice))

	return nil
}

// persistAfterOrder saves state after a confirmed order. A write failure here
// must not undo the in-memory transition: the broker already holds the truth
// and the next reconciliation heals the store.
func (l *TradingLoop) persistAfterOrder() {
	if err := l.store.Save(l.position); err != nil {
		l.logger.Error("failed to persist state after confirmed order, reconciliation will recover it",
			zap.Error(err))
	}
}

func (l *TradingLoop) sendNotification(ctx context.Context, message string) {
	if err := l.notifier.Notify(ctx, message); err != nil {
		l.logger.Warn("notification delivery failed", zap.Error(err))
	}
}

func (l *TradingLoop) placeInitialStop(ctx context.Context, entryPrice, quantity float64) {
	stopPrice := entryPrice * (1 - l.config.TrailingStopPercent/100)

	result, err := l.broker.SubmitStopOrder(ctx, l.config.Symbol, quantity, stopPrice)
	if err != nil {
		l.logger.Error("failed to place initial trailing stop", zap.Error(err))

		return
	}

	l.stopOrderID = result.OrderID
	l.stopPrice = stopPrice
	l.stopQuantity = quantity

	l.logger.Info("placed trailing stop", zap.String("order_id", result.OrderID), zap.Float64("stop_price", stopPrice))
}

// ratchetStop moves the stop up when price has run far enough that the
// trailing level exceeds the current stop. The stop only ever moves up.
func (l *TradingLoop) ratchetStop(ctx context.Context, closePrice float64) {
	if l.stopOrderID == "" {
		return
	}

	target := closePrice * (1 - l.config.TrailingStopPercent/100)
	if target <= l.stopPrice {
		return
	}

	result, err := l.broker.ReplaceStopOrder(ctx, l.config.Symbol, l.stopOrderID, l.stopQuantity, target)
	if err != nil {
		l.logger.Warn("failed to ratchet trailing stop", zap.Error(err))

		return
	}

	l.logger.Info("ratcheted trailing stop",
		zap.Float64("old_stop_price", l.stopPrice),
		zap.Float64("new_stop_price", target))

	l.stopOrderID = result.OrderID
	l.stopPrice = target
}

func (l *TradingLoop) clearStopOrder() {
	l.stopOrderID = ""
	l.stopPrice = 0
	l.stopQuantity = 0
}

// recordCycleResult updates the circuit breaker counter and reports whether
// the breaker tripped.
func (l *TradingLoop) recordCycleResult(err error) bool {
	if err == nil {
		l.consecutiveFailures = 0

		return false
	}

	if !isRecoverable(err) {
		l.logger.Error("cycle failed", zap.Error(err))
		l.consecutiveFailures = 0

		return false
	}

	l.consecutiveFailures++
	l.logger.Warn("cycle failed",
		zap.Error(err),
		zap.Int("consecutive_failures", l.consecutiveFailures))

	if l.consecutiveFailures < l.config.MaxConsecutiveFailures {
		return false
	}

	l.consecutiveFailures = 0

	return true
}

// isRecoverable reports whether the error counts toward the circuit breaker.
func isRecoverable(err error) bool {
	if errors.IsDataUnavailable(err) || errors.IsOrderRejected(err) {
		return true
	}

	code := errors.GetCode(err)

	return code == errors.ErrCodeBrokerUnavailable || code == errors.ErrCodeStreamClosed
}

// Run polls on a ticker until the context is cancelled. Cancellation is
// honored only between cycles, never mid-cycle.
func (l *TradingLoop) Run(ctx context.Context) error {
	l.logger.Info("trading loop starting",
		zap.Duration("poll_interval", l.config.PollInterval),
		zap.Int("lookback", l.config.Lookback))

	for {
		tripped := l.recordCycleResult(l.Cycle(ctx))

		wait := l.config.PollInterval
		if tripped {
			wait = l.config.PauseInterval
			l.logger.Warn("circuit breaker tripped, pausing", zap.Duration("pause", wait))
			l.sendNotification(ctx, notify.PauseMessage(l.config.Symbol, l.config.MaxConsecutiveFailures, wait))
		}

		select {
		case <-ctx.Done():
			l.shutdown()

			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RunStream drives cycles from a stream of closed bars instead of a ticker.
// Each bar triggers one complete cycle; bars arriving while a cycle runs are
// handled strictly after it, so cycles never overlap.
func (l *TradingLoop) RunStream(ctx context.Context, bars iter.Seq2[types.MarketData, error]) error {
	l.logger.Info("trading loop starting in stream mode", zap.Int("lookback", l.config.Lookback))

	for _, err := range bars {
		if ctx.Err() != nil {
			break
		}

		if err == nil {
			err = l.Cycle(ctx)
		}

		if tripped := l.recordCycleResult(err); tripped {
			l.logger.Warn("circuit breaker tripped, pausing", zap.Duration("pause", l.config.PauseInterval))
			l.sendNotification(ctx, notify.PauseMessage(l.config.Symbol, l.config.MaxConsecutiveFailures, l.config.PauseInterval))

			select {
			case <-ctx.Done():
			case <-time.After(l.config.PauseInterval):
			}
		}
	}

	l.shutdown()

	return ctx.Err()
}

// shutdown cancels any manual stop order the loop still tracks. Best-effort:
// a bracket's legs belong to the exchange, but a standalone trailing stop
// would be orphaned once the loop that ratchets it is gone.
func (l *TradingLoop) shutdown() {
	if l.stopOrderID == "" {
		l.logger.Info("trading loop stopped")

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownCancelTimeout)
	defer cancel()

	if err := l.broker.CancelOrder(ctx, l.config.Symbol, l.stopOrderID); err != nil {
		l.logger.Warn("failed to cancel orphaned stop order during shutdown",
			zap.String("order_id", l.stopOrderID),
			zap.Error(err))
	} else {
		l.logger.Info("cancelled orphaned stop order during shutdown", zap.String("order_id", l.stopOrderID))
	}

	l.clearStopOrder()
	l.logger.Info("trading loop stopped")
}
