package state

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/stretchr/testify/suite"
)

// DuckDBStoreTestSuite is a test suite for the DuckDB state store
type DuckDBStoreTestSuite struct {
	suite.Suite
	store *DuckDBStore
}

// SetupTest opens a fresh in-memory database for every test
func (suite *DuckDBStoreTestSuite) SetupTest() {
	store, err := NewDuckDBStore(":memory:")
	suite.Require().NoError(err)
	suite.store = store
}

func (suite *DuckDBStoreTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.Require().NoError(suite.store.Close())
	}
}

// TestDuckDBStoreSuite runs the test suite
func TestDuckDBStoreSuite(t *testing.T) {
	suite.Run(t, new(DuckDBStoreTestSuite))
}

// TestRoundTrip checks save-then-load reproduces the position fields for
// both states.
func (suite *DuckDBStoreTestSuite) TestRoundTrip() {
	entryPrice := 43250.75
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	inPosition := types.PositionState{
		Symbol:       "BTCUSDT",
		IsInPosition: true,
		EntryPrice:   &entryPrice,
		LastUpdated:  at,
	}
	suite.Require().NoError(suite.store.Save(inPosition))

	loaded, err := suite.store.Load("BTCUSDT")
	suite.Require().NoError(err)
	suite.True(loaded.IsInPosition)
	suite.Require().NotNil(loaded.EntryPrice)
	suite.InDelta(entryPrice, *loaded.EntryPrice, 1e-12)

	flat := inPosition.Exited(at.Add(time.Hour))
	suite.Require().NoError(suite.store.Save(flat))

	loaded, err = suite.store.Load("BTCUSDT")
	suite.Require().NoError(err)
	suite.False(loaded.IsInPosition)
	suite.Nil(loaded.EntryPrice)
}

// TestMissingRowYieldsFlatDefault checks first-run behavior.
func (suite *DuckDBStoreTestSuite) TestMissingRowYieldsFlatDefault() {
	loaded, err := suite.store.Load("ETHUSDT")
	suite.Require().NoError(err)
	suite.Equal("ETHUSDT", loaded.Symbol)
	suite.False(loaded.IsInPosition)
	suite.Nil(loaded.EntryPrice)
}

// TestSaveRejectsInvalidState checks the invariant guard on writes.
func (suite *DuckDBStoreTestSuite) TestSaveRejectsInvalidState() {
	price := 100.0
	invalid := types.PositionState{
		Symbol:       "BTCUSDT",
		IsInPosition: false,
		EntryPrice:   &price,
		LastUpdated:  time.Now().UTC(),
	}

	suite.Error(suite.store.Save(invalid))
}

// TestSymbolsAreIndependent checks records are keyed strictly by symbol.
func (suite *DuckDBStoreTestSuite) TestSymbolsAreIndependent() {
	entered := types.NewPositionState("BTCUSDT").Entered(50000, time.Now().UTC())
	suite.Require().NoError(suite.store.Save(entered))

	other, err := suite.store.Load("ETHUSDT")
	suite.Require().NoError(err)
	suite.False(other.IsInPosition)
}
