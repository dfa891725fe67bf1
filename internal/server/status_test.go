package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/state"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/stretchr/testify/suite"
)

// StatusServerTestSuite is a test suite for the status HTTP surface
type StatusServerTestSuite struct {
	suite.Suite
	store  *state.FileStore
	server *StatusServer
}

// SetupTest builds a server over a fresh file store
func (suite *StatusServerTestSuite) SetupTest() {
	store, err := state.NewFileStore(suite.T().TempDir())
	suite.Require().NoError(err)
	suite.store = store

	suite.server = NewStatusServer(":0", store, []string{"BTCUSDT"}, logger.NewNopLogger())
}

// TestStatusServerSuite runs the test suite
func TestStatusServerSuite(t *testing.T) {
	suite.Run(t, new(StatusServerTestSuite))
}

func (suite *StatusServerTestSuite) get(path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, path, nil)
	suite.server.Handler().ServeHTTP(recorder, request)

	return recorder
}

func (suite *StatusServerTestSuite) TestHealthz() {
	response := suite.get("/healthz")
	suite.Equal(http.StatusOK, response.Code)

	var body map[string]string
	suite.Require().NoError(json.Unmarshal(response.Body.Bytes(), &body))
	suite.Equal("ok", body["status"])
}

// TestStatusReturnsPersistedState checks the endpoint reflects what the
// store holds.
func (suite *StatusServerTestSuite) TestStatusReturnsPersistedState() {
	entered := types.NewPositionState("BTCUSDT").Entered(50000, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	suite.Require().NoError(suite.store.Save(entered))

	response := suite.get("/status/BTCUSDT")
	suite.Equal(http.StatusOK, response.Code)
	suite.Equal("application/json", response.Header().Get("Content-Type"))

	var body types.PositionState
	suite.Require().NoError(json.Unmarshal(response.Body.Bytes(), &body))
	suite.True(body.IsInPosition)
	suite.Require().NotNil(body.EntryPrice)
	suite.InDelta(50000, *body.EntryPrice, 1e-9)
}

// TestStatusDefaultsToFlat checks a symbol with no record reports the flat
// default rather than an error.
func (suite *StatusServerTestSuite) TestStatusDefaultsToFlat() {
	response := suite.get("/status/BTCUSDT")
	suite.Equal(http.StatusOK, response.Code)

	var body types.PositionState
	suite.Require().NoError(json.Unmarshal(response.Body.Bytes(), &body))
	suite.False(body.IsInPosition)
	suite.Nil(body.EntryPrice)
}

func (suite *StatusServerTestSuite) TestUnknownSymbolIs404() {
	response := suite.get("/status/DOGEUSDT")
	suite.Equal(http.StatusNotFound, response.Code)
}

func (suite *StatusServerTestSuite) TestMethodNotAllowed() {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/status/BTCUSDT", nil)
	suite.server.Handler().ServeHTTP(recorder, request)
	suite.Equal(http.StatusMethodNotAllowed, recorder.Code)
}
