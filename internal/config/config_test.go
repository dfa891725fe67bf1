package config

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite is a test suite for configuration loading and validation
type ConfigTestSuite struct {
	suite.Suite
}

// TestConfigSuite runs the test suite
func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) validYAML() string {
	return `
symbols: [BTCUSDT, ETHUSDT]
market:
  provider: binance
  interval: 1h
  lookback: 120
  mode: poll
broker:
  api_key: test-key
  secret_key: test-secret
  use_testnet: true
strategy:
  kind: sma_crossover
  fast_period: 20
  slow_period: 50
sizing:
  quantity: 0.001
loop:
  poll_interval: 1m
state:
  backend: file
  path: ./data
`
}

// TestParseValid checks a complete config parses and gets its defaults.
func (suite *ConfigTestSuite) TestParseValid() {
	cfg, err := Parse([]byte(suite.validYAML()))
	suite.Require().NoError(err)

	suite.Equal([]string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	suite.Equal("sma_crossover", cfg.Strategy.Kind)
	suite.Equal(time.Minute, cfg.Loop.PollInterval.Std())

	// Defaults.
	suite.Equal("USDT", cfg.Broker.QuoteAsset)
	suite.Equal(10*time.Minute, cfg.Loop.PauseInterval.Std())
	suite.Equal(5, cfg.Loop.MaxConsecutiveFailures)
}

// TestEnvExpansion checks ${VAR} references resolve from the environment.
func (suite *ConfigTestSuite) TestEnvExpansion() {
	suite.T().Setenv("TEST_BINANCE_KEY", "expanded-key")

	raw := `
symbols: [BTCUSDT]
market:
  provider: binance
  interval: 1h
  lookback: 120
  mode: poll
broker:
  api_key: ${TEST_BINANCE_KEY}
  secret_key: test-secret
strategy:
  kind: sma_crossover
  fast_period: 20
  slow_period: 50
sizing:
  risk_percent: 10
loop:
  poll_interval: 30s
state:
  backend: duckdb
  path: ./state.db
`

	cfg, err := Parse([]byte(raw))
	suite.Require().NoError(err)
	suite.Equal("expanded-key", cfg.Broker.APIKey)
}

// TestRejections checks each invalid shape fails fast with a configuration
// error.
func (suite *ConfigTestSuite) TestRejections() {
	testCases := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{name: "no symbols", mutate: func(cfg *Config) { cfg.Symbols = nil }},
		{name: "unknown provider", mutate: func(cfg *Config) { cfg.Market.Provider = "kraken" }},
		{name: "lookback too small", mutate: func(cfg *Config) { cfg.Market.Lookback = 1 }},
		{name: "missing api key", mutate: func(cfg *Config) { cfg.Broker.APIKey = "" }},
		{name: "unknown strategy kind", mutate: func(cfg *Config) { cfg.Strategy.Kind = "martingale" }},
		{name: "no sizing", mutate: func(cfg *Config) { cfg.Sizing.Quantity = 0 }},
		{
			name: "both sizings",
			mutate: func(cfg *Config) {
				cfg.Sizing.Quantity = 0.001
				cfg.Sizing.RiskPercent = 10
			},
		},
		{name: "zero poll interval", mutate: func(cfg *Config) { cfg.Loop.PollInterval = 0 }},
		{name: "unknown state backend", mutate: func(cfg *Config) { cfg.State.Backend = "redis" }},
		{name: "stream mode on polygon", mutate: func(cfg *Config) {
			cfg.Market.Mode = "stream"
			cfg.Market.Provider = "polygon"
			cfg.Market.PolygonAPIKey = "pk"
		}},
		{name: "polygon without key", mutate: func(cfg *Config) { cfg.Market.Provider = "polygon" }},
		{name: "invalid webhook url", mutate: func(cfg *Config) { cfg.Notify.WebhookURL = "not-a-url" }},
		{name: "trailing stop with bracket", mutate: func(cfg *Config) {
			cfg.Loop.TrailingStopPercent = 5
			cfg.Loop.TakeProfitPercent = 10
			cfg.Loop.StopLossPercent = 5
		}},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			cfg, err := Parse([]byte(suite.validYAML()))
			suite.Require().NoError(err)

			tc.mutate(cfg)

			err = cfg.Validate()
			suite.Require().Error(err)
			suite.True(errors.IsConfigurationError(err), "expected configuration error, got %v", err)
		})
	}
}

// TestLoadMissingFile checks a missing config file is a fatal configuration
// error, not a silent default.
func (suite *ConfigTestSuite) TestLoadMissingFile() {
	_, err := Load("/nonexistent/config.yaml")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingConfiguration))
}

// TestMalformedYAML checks parse failures surface as configuration errors.
func (suite *ConfigTestSuite) TestMalformedYAML() {
	_, err := Parse([]byte("symbols: [unclosed"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
