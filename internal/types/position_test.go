package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// PositionStateTestSuite is a test suite for position state transitions
type PositionStateTestSuite struct {
	suite.Suite
}

// TestPositionStateSuite runs the test suite
func TestPositionStateSuite(t *testing.T) {
	suite.Run(t, new(PositionStateTestSuite))
}

func (suite *PositionStateTestSuite) TestDefaultIsFlatAndValid() {
	state := NewPositionState("BTCUSDT")
	suite.False(state.IsInPosition)
	suite.Nil(state.EntryPrice)
	suite.NoError(state.Validate())
}

// TestEntryPriceInvariant checks EntryPrice is set exactly when in position.
func (suite *PositionStateTestSuite) TestEntryPriceInvariant() {
	price := 50000.0

	inPositionWithoutPrice := PositionState{Symbol: "BTCUSDT", IsInPosition: true}
	suite.Error(inPositionWithoutPrice.Validate())

	flatWithPrice := PositionState{Symbol: "BTCUSDT", IsInPosition: false, EntryPrice: &price}
	suite.Error(flatWithPrice.Validate())

	empty := PositionState{}
	suite.Error(empty.Validate())
}

// TestTransitions checks Entered and Exited produce valid copies without
// mutating the receiver.
func (suite *PositionStateTestSuite) TestTransitions() {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	flat := NewPositionState("BTCUSDT")
	entered := flat.Entered(50000, at)

	suite.False(flat.IsInPosition, "receiver must not be mutated")
	suite.True(entered.IsInPosition)
	suite.Require().NotNil(entered.EntryPrice)
	suite.InDelta(50000, *entered.EntryPrice, 1e-9)
	suite.Equal(at, entered.LastUpdated)
	suite.NoError(entered.Validate())

	exited := entered.Exited(at.Add(time.Hour))
	suite.True(entered.IsInPosition, "receiver must not be mutated")
	suite.False(exited.IsInPosition)
	suite.Nil(exited.EntryPrice)
	suite.NoError(exited.Validate())
}
