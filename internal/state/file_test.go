package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// FileStoreTestSuite is a test suite for the JSON file state store
type FileStoreTestSuite struct {
	suite.Suite
	dir   string
	store *FileStore
}

// SetupTest creates a fresh store in a temp directory for every test
func (suite *FileStoreTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()

	store, err := NewFileStore(suite.dir)
	suite.Require().NoError(err)
	suite.store = store
}

// TestFileStoreSuite runs the test suite
func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreTestSuite))
}

// TestRoundTrip checks save-then-load reproduces the position fields exactly,
// for both the in-position and flat cases.
func (suite *FileStoreTestSuite) TestRoundTrip() {
	entryPrice := 43250.75
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name  string
		state types.PositionState
	}{
		{
			name: "in position",
			state: types.PositionState{
				Symbol:       "BTCUSDT",
				IsInPosition: true,
				EntryPrice:   &entryPrice,
				LastUpdated:  at,
			},
		},
		{
			name: "flat",
			state: types.PositionState{
				Symbol:       "BTCUSDT",
				IsInPosition: false,
				EntryPrice:   nil,
				LastUpdated:  at,
			},
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			suite.Require().NoError(suite.store.Save(tc.state))

			loaded, err := suite.store.Load("BTCUSDT")
			suite.Require().NoError(err)
			suite.Equal(tc.state.IsInPosition, loaded.IsInPosition)

			if tc.state.EntryPrice == nil {
				suite.Nil(loaded.EntryPrice)
			} else {
				suite.Require().NotNil(loaded.EntryPrice)
				suite.InDelta(*tc.state.EntryPrice, *loaded.EntryPrice, 1e-12)
			}
		})
	}
}

// TestMissingRecordYieldsFlatDefault checks first-run behavior.
func (suite *FileStoreTestSuite) TestMissingRecordYieldsFlatDefault() {
	loaded, err := suite.store.Load("ETHUSDT")
	suite.Require().NoError(err)
	suite.Equal("ETHUSDT", loaded.Symbol)
	suite.False(loaded.IsInPosition)
	suite.Nil(loaded.EntryPrice)
}

// TestCorruptFileReportsStateCorrupted checks invalid JSON surfaces as a
// corruption error rather than a silent default.
func (suite *FileStoreTestSuite) TestCorruptFileReportsStateCorrupted() {
	path := filepath.Join(suite.dir, "BTCUSDT.json")
	suite.Require().NoError(os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := suite.store.Load("BTCUSDT")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStateCorrupted))
}

// TestInvariantViolationReportsStateCorrupted checks a record claiming a
// position without an entry price is rejected on load.
func (suite *FileStoreTestSuite) TestInvariantViolationReportsStateCorrupted() {
	path := filepath.Join(suite.dir, "BTCUSDT.json")
	record := `{"symbol":"BTCUSDT","is_in_position":true,"entry_price":null,"last_updated":"2024-06-01T12:00:00Z"}`
	suite.Require().NoError(os.WriteFile(path, []byte(record), 0o600))

	_, err := suite.store.Load("BTCUSDT")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStateCorrupted))
}

// TestSaveRejectsInvalidState checks the store refuses to persist a record
// violating the entry-price invariant.
func (suite *FileStoreTestSuite) TestSaveRejectsInvalidState() {
	invalid := types.PositionState{
		Symbol:       "BTCUSDT",
		IsInPosition: true,
		EntryPrice:   nil,
		LastUpdated:  time.Now().UTC(),
	}

	suite.Error(suite.store.Save(invalid))
}

// TestOverwrite checks the record is replaced in place across transitions.
func (suite *FileStoreTestSuite) TestOverwrite() {
	initial := types.NewPositionState("BTCUSDT")
	suite.Require().NoError(suite.store.Save(initial))

	entered := initial.Entered(50000, time.Now().UTC())
	suite.Require().NoError(suite.store.Save(entered))

	loaded, err := suite.store.Load("BTCUSDT")
	suite.Require().NoError(err)
	suite.True(loaded.IsInPosition)

	exited := entered.Exited(time.Now().UTC())
	suite.Require().NoError(suite.store.Save(exited))

	loaded, err = suite.store.Load("BTCUSDT")
	suite.Require().NoError(err)
	suite.False(loaded.IsInPosition)
	suite.Nil(loaded.EntryPrice)
}

// TestSymbolsAreIndependent checks one symbol's record never leaks into
// another's.
func (suite *FileStoreTestSuite) TestSymbolsAreIndependent() {
	entered := types.NewPositionState("BTCUSDT").Entered(50000, time.Now().UTC())
	suite.Require().NoError(suite.store.Save(entered))

	other, err := suite.store.Load("ETHUSDT")
	suite.Require().NoError(err)
	suite.False(other.IsInPosition)
}
