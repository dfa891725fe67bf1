package bot

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/strategy"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/mocks"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const testSymbol = "BTCUSDT"

// TradingLoopTestSuite is a test suite for the trading loop state machine
type TradingLoopTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	source    *mocks.MockSource
	broker    *mocks.MockBroker
	store     *mocks.MockStore
	evaluator *mocks.MockEvaluator
	sizer     *mocks.MockSizer
	notifier  *mocks.MockNotifier
	loop      *TradingLoop
	ctx       context.Context
}

// SetupTest builds a fresh loop with fresh mocks for every test
func (suite *TradingLoopTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.source = mocks.NewMockSource(suite.ctrl)
	suite.broker = mocks.NewMockBroker(suite.ctrl)
	suite.store = mocks.NewMockStore(suite.ctrl)
	suite.evaluator = mocks.NewMockEvaluator(suite.ctrl)
	suite.sizer = mocks.NewMockSizer(suite.ctrl)
	suite.notifier = mocks.NewMockNotifier(suite.ctrl)
	suite.ctx = context.Background()

	suite.evaluator.EXPECT().Name().Return("test_evaluator").AnyTimes()
	suite.evaluator.EXPECT().Indicators().Return(map[string]indicator.Indicator{}).AnyTimes()

	loop, err := NewTradingLoop(LoopConfig{
		Symbol:       testSymbol,
		Lookback:     10,
		PollInterval: time.Second,
	}, suite.source, suite.broker, suite.store, suite.evaluator, suite.sizer, suite.notifier, logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.loop = loop
}

func (suite *TradingLoopTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

// TestTradingLoopSuite runs the test suite
func TestTradingLoopSuite(t *testing.T) {
	suite.Run(t, new(TradingLoopTestSuite))
}

func (suite *TradingLoopTestSuite) bars(count int) []types.MarketData {
	out := make([]types.MarketData, count)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := range out {
		out[i] = types.MarketData{
			Symbol: testSymbol,
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100,
			Volume: 10,
		}
	}

	return out
}

func (suite *TradingLoopTestSuite) signal(signalType types.SignalType) types.Signal {
	return types.Signal{
		Time:   time.Now().UTC(),
		Type:   signalType,
		Name:   "test_evaluator",
		Symbol: testSymbol,
	}
}

func (suite *TradingLoopTestSuite) flatState() types.PositionState {
	return types.NewPositionState(testSymbol)
}

func (suite *TradingLoopTestSuite) inPositionState(entryPrice float64) types.PositionState {
	return types.NewPositionState(testSymbol).Entered(entryPrice, time.Now().UTC())
}

func (suite *TradingLoopTestSuite) holding(quantity, avgPrice float64) optional.Option[types.Holding] {
	return optional.Some(types.Holding{
		Symbol:        testSymbol,
		Quantity:      quantity,
		AvgEntryPrice: avgPrice,
	})
}

func (suite *TradingLoopTestSuite) noHolding() optional.Option[types.Holding] {
	return optional.None[types.Holding]()
}

// TestEntryFromFlat checks the happy path: a flat loop seeing an enter signal
// buys once and persists only after the broker confirms.
func (suite *TradingLoopTestSuite) TestEntryFromFlat() {
	suite.store.EXPECT().Load(testSymbol).Return(suite.flatState(), nil)
	suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.noHolding(), nil)
	suite.source.EXPECT().GetRecentBars(gomock.Any(), testSymbol, 10).Return(suite.bars(10), nil)
	suite.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.signal(types.SignalTypeEnterLong), nil)
	suite.sizer.EXPECT().Quantity(gomock.Any(), testSymbol, 100.0).Return(0.5, nil)
	suite.broker.EXPECT().SubmitMarketOrder(gomock.Any(), testSymbol, 0.5, types.OrderSideBuy).Return(types.OrderResult{
		OrderID:        "1",
		Status:         types.OrderStatusFilled,
		FilledPrice:    100.5,
		FilledQuantity: 0.5,
	}, nil)
	suite.store.EXPECT().Save(gomock.Any()).DoAndReturn(func(st types.PositionState) error {
		suite.True(st.IsInPosition)
		suite.Require().NotNil(st.EntryPrice)
		suite.InDelta(100.5, *st.EntryPrice, 1e-9)

		return nil
	})
	suite.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	suite.Require().NoError(suite.loop.Cycle(suite.ctx))
	suite.True(suite.loop.Position().IsInPosition)
}

// TestNoDoubleEntry checks consecutive enter signals while in position never
// submit a second buy.
func (suite *TradingLoopTestSuite) TestNoDoubleEntry() {
	suite.store.EXPECT().Load(testSymbol).Return(suite.inPositionState(100.5), nil).Times(2)
	suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.holding(0.5, 100.5), nil).Times(2)
	suite.source.EXPECT().GetRecentBars(gomock.Any(), testSymbol, 10).Return(suite.bars(10), nil).Times(2)
	suite.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.signal(types.SignalTypeEnterLong), nil).Times(2)
	// No SubmitMarketOrder, no Save: the controller fails on any such call.

	suite.Require().NoError(suite.loop.Cycle(suite.ctx))
	suite.Require().NoError(suite.loop.Cycle(suite.ctx))
	suite.True(suite.loop.Position().IsInPosition)
}

// TestNoNakedExit checks an exit signal while flat never submits a sell.
func (suite *TradingLoopTestSuite) TestNoNakedExit() {
	suite.store.EXPECT().Load(testSymbol).Return(suite.flatState(), nil)
	suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.noHolding(), nil)
	suite.source.EXPECT().GetRecentBars(gomock.Any(), testSymbol, 10).Return(suite.bars(10), nil)
	suite.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.signal(types.SignalTypeExitLong), nil)

	suite.Require().NoError(suite.loop.Cycle(suite.ctx))
	suite.False(suite.loop.Position().IsInPosition)
}

// TestExitFromPosition checks the exit path closes the position and persists
// the flat state.
func (suite *TradingLoopTestSuite) TestExitFromPosition() {
	suite.store.EXPECT().Load(testSymbol).Return(suite.inPositionState(100.5), nil)
	suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.holding(0.5, 100.5), nil)
	suite.source.EXPECT().GetRecentBars(gomock.Any(), testSymbol, 10).Return(suite.bars(10), nil)
	suite.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.signal(types.SignalTypeExitLong), nil)
	suite.broker.EXPECT().ClosePosition(gomock.Any(), testSymbol).Return(types.OrderResult{
		OrderID:        "2",
		Status:         types.OrderStatusFilled,
		FilledPrice:    110,
		FilledQuantity: 0.5,
	}, nil)
	suite.store.EXPECT().Save(gomock.Any()).DoAndReturn(func(st types.PositionState) error {
		suite.False(st.IsInPosition)
		suite.Nil(st.EntryPrice)

		return nil
	})
	suite.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	suite.Require().NoError(suite.loop.Cycle(suite.ctx))
	suite.False(suite.loop.Position().IsInPosition)
}

// TestReconciliationBrokerWins checks both directions of drift resolution.
func (suite *TradingLoopTestSuite) TestReconciliationBrokerWins() {
	suite.Run("broker holding overrides flat store", func() {
		suite.SetupTest()
		suite.store.EXPECT().Load(testSymbol).Return(suite.flatState(), nil)
		suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.holding(0.5, 50000), nil)
		suite.store.EXPECT().Save(gomock.Any()).DoAndReturn(func(st types.PositionState) error {
			suite.True(st.IsInPosition)
			suite.Require().NotNil(st.EntryPrice)
			suite.InDelta(50000, *st.EntryPrice, 1e-9)

			return nil
		})

		suite.Require().NoError(suite.loop.Reconcile(suite.ctx))
		suite.True(suite.loop.Position().IsInPosition)
	})

	suite.Run("missing broker holding overrides in-position store", func() {
		suite.SetupTest()
		suite.store.EXPECT().Load(testSymbol).Return(suite.inPositionState(50000), nil)
		suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.noHolding(), nil)
		suite.store.EXPECT().Save(gomock.Any()).DoAndReturn(func(st types.PositionState) error {
			suite.False(st.IsInPosition)
			suite.Nil(st.EntryPrice)

			return nil
		})

		suite.Require().NoError(suite.loop.Reconcile(suite.ctx))
		suite.False(suite.loop.Position().IsInPosition)
	})
}

// TestCrashRecovery checks the restart scenario: a buy filled but state was
// never persisted; reconciliation adopts the holding and the still-standing
// enter signal does not buy again.
func (suite *TradingLoopTestSuite) TestCrashRecovery() {
	suite.store.EXPECT().Load(testSymbol).Return(suite.flatState(), nil)
	suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.holding(0.5, 100.5), nil)
	suite.store.EXPECT().Save(gomock.Any()).Return(nil)
	suite.source.EXPECT().GetRecentBars(gomock.Any(), testSymbol, 10).Return(suite.bars(10), nil)
	suite.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.signal(types.SignalTypeEnterLong), nil)

	suite.Require().NoError(suite.loop.Cycle(suite.ctx))
	suite.True(suite.loop.Position().IsInPosition)
}

// TestOrderRejectionLeavesFlat checks a rejected buy keeps the loop flat and
// the next cycle retries the same entry.
func (suite *TradingLoopTestSuite) TestOrderRejectionLeavesFlat() {
	suite.store.EXPECT().Load(testSymbol).Return(suite.flatState(), nil).Times(2)
	suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.noHolding(), nil).Times(2)
	suite.source.EXPECT().GetRecentBars(gomock.Any(), testSymbol, 10).Return(suite.bars(10), nil).Times(2)
	suite.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.signal(types.SignalTypeEnterLong), nil).Times(2)
	suite.sizer.EXPECT().Quantity(gomock.Any(), testSymbol, 100.0).Return(0.5, nil).Times(2)

	rejection := errors.New(errors.ErrCodeOrderRejected, "insufficient buying power")
	suite.broker.EXPECT().SubmitMarketOrder(gomock.Any(), testSymbol, 0.5, types.OrderSideBuy).Return(types.OrderResult{}, rejection)

	err := suite.loop.Cycle(suite.ctx)
	suite.Require().Error(err)
	suite.True(errors.IsOrderRejected(err))
	suite.False(suite.loop.Position().IsInPosition)

	// Same signal next cycle: the retry goes through.
	suite.broker.EXPECT().SubmitMarketOrder(gomock.Any(), testSymbol, 0.5, types.OrderSideBuy).Return(types.OrderResult{
		OrderID:        "3",
		Status:         types.OrderStatusFilled,
		FilledPrice:    100,
		FilledQuantity: 0.5,
	}, nil)
	suite.store.EXPECT().Save(gomock.Any()).Return(nil)
	suite.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	suite.Require().NoError(suite.loop.Cycle(suite.ctx))
	suite.True(suite.loop.Position().IsInPosition)
}

// TestDataUnavailableSkipsCycle checks a fetch failure skips evaluation
// entirely.
func (suite *TradingLoopTestSuite) TestDataUnavailableSkipsCycle() {
	suite.store.EXPECT().Load(testSymbol).Return(suite.flatState(), nil)
	suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.noHolding(), nil)
	suite.source.EXPECT().GetRecentBars(gomock.Any(), testSymbol, 10).
		Return(nil, errors.New(errors.ErrCodeDataUnavailable, "upstream timeout"))

	err := suite.loop.Cycle(suite.ctx)
	suite.Require().Error(err)
	suite.True(errors.IsDataUnavailable(err))
	suite.False(suite.loop.Position().IsInPosition)
}

// TestPersistenceFailureAfterOrder checks a failed save after a confirmed
// order does not fail the cycle or undo the in-memory transition.
func (suite *TradingLoopTestSuite) TestPersistenceFailureAfterOrder() {
	suite.store.EXPECT().Load(testSymbol).Return(suite.flatState(), nil)
	suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.noHolding(), nil)
	suite.source.EXPECT().GetRecentBars(gomock.Any(), testSymbol, 10).Return(suite.bars(10), nil)
	suite.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.signal(types.SignalTypeEnterLong), nil)
	suite.sizer.EXPECT().Quantity(gomock.Any(), testSymbol, 100.0).Return(0.5, nil)
	suite.broker.EXPECT().SubmitMarketOrder(gomock.Any(), testSymbol, 0.5, types.OrderSideBuy).Return(types.OrderResult{
		OrderID:        "4",
		Status:         types.OrderStatusFilled,
		FilledPrice:    100,
		FilledQuantity: 0.5,
	}, nil)
	suite.store.EXPECT().Save(gomock.Any()).Return(errors.New(errors.ErrCodePersistenceFailure, "disk full"))
	suite.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	suite.Require().NoError(suite.loop.Cycle(suite.ctx))
	suite.True(suite.loop.Position().IsInPosition)
}

// TestNotificationFailureDoesNotAffectState checks delivery failures are
// absorbed.
func (suite *TradingLoopTestSuite) TestNotificationFailureDoesNotAffectState() {
	suite.store.EXPECT().Load(testSymbol).Return(suite.flatState(), nil)
	suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.noHolding(), nil)
	suite.source.EXPECT().GetRecentBars(gomock.Any(), testSymbol, 10).Return(suite.bars(10), nil)
	suite.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.signal(types.SignalTypeEnterLong), nil)
	suite.sizer.EXPECT().Quantity(gomock.Any(), testSymbol, 100.0).Return(0.5, nil)
	suite.broker.EXPECT().SubmitMarketOrder(gomock.Any(), testSymbol, 0.5, types.OrderSideBuy).Return(types.OrderResult{
		OrderID:        "5",
		Status:         types.OrderStatusFilled,
		FilledPrice:    100,
		FilledQuantity: 0.5,
	}, nil)
	suite.store.EXPECT().Save(gomock.Any()).Return(nil)
	suite.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).
		Return(errors.New(errors.ErrCodeNotificationFailure, "webhook unreachable"))

	suite.Require().NoError(suite.loop.Cycle(suite.ctx))
	suite.True(suite.loop.Position().IsInPosition)
}

// TestCircuitBreaker checks the failure counter trips at the threshold and
// resets on success or a non-recoverable error.
func (suite *TradingLoopTestSuite) TestCircuitBreaker() {
	recoverable := errors.New(errors.ErrCodeDataUnavailable, "upstream timeout")

	for i := 0; i < DefaultMaxConsecutiveFailures-1; i++ {
		suite.False(suite.loop.recordCycleResult(recoverable))
	}

	suite.True(suite.loop.recordCycleResult(recoverable))

	// Counter resets after tripping.
	suite.False(suite.loop.recordCycleResult(recoverable))

	// Success resets the counter.
	for i := 0; i < DefaultMaxConsecutiveFailures-1; i++ {
		suite.False(suite.loop.recordCycleResult(recoverable))
	}

	suite.False(suite.loop.recordCycleResult(nil))
	suite.False(suite.loop.recordCycleResult(recoverable))

	// Non-recoverable errors never count toward the breaker.
	fatal := errors.New(errors.ErrCodeInvalidConfiguration, "bad config")
	for i := 0; i < DefaultMaxConsecutiveFailures+1; i++ {
		suite.False(suite.loop.recordCycleResult(fatal))
	}
}

// TestSnapshotAlignment checks the loop evaluates the last two points of the
// computed series with a real indicator attached.
func (suite *TradingLoopTestSuite) TestSnapshotAlignment() {
	ctrl := gomock.NewController(suite.T())
	sma, err := indicator.NewSMA(2)
	suite.Require().NoError(err)

	evaluator := mocks.NewMockEvaluator(ctrl)
	evaluator.EXPECT().Name().Return("aligned").AnyTimes()
	evaluator.EXPECT().Indicators().Return(map[string]indicator.Indicator{sma.Name(): sma}).AnyTimes()

	loop, err := NewTradingLoop(LoopConfig{
		Symbol:       testSymbol,
		Lookback:     4,
		PollInterval: time.Second,
	}, suite.source, suite.broker, suite.store, evaluator, suite.sizer, suite.notifier, logger.NewNopLogger())
	suite.Require().NoError(err)

	bars := suite.bars(4)
	bars[0].Close = 10
	bars[1].Close = 20
	bars[2].Close = 30
	bars[3].Close = 40

	suite.store.EXPECT().Load(testSymbol).Return(suite.flatState(), nil)
	suite.broker.EXPECT().GetPosition(gomock.Any(), testSymbol).Return(suite.noHolding(), nil)
	suite.source.EXPECT().GetRecentBars(gomock.Any(), testSymbol, 4).Return(bars, nil)
	evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), bars[3].Time).
		DoAndReturn(func(previous, current strategy.Snapshot, at time.Time) (types.Signal, error) {
			prev, ok := previous.Value(sma.Name())
			suite.Require().True(ok)
			suite.InDelta(25, prev, 1e-9)

			cur, ok := current.Value(sma.Name())
			suite.Require().True(ok)
			suite.InDelta(35, cur, 1e-9)

			return types.NoAction("aligned", testSymbol, at, "test"), nil
		})

	suite.Require().NoError(loop.Cycle(suite.ctx))
}
