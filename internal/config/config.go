// Package config loads and validates the bot configuration. Configuration is
// read once at startup and never hot-reloaded; any invalid value is fatal
// before the first loop cycle starts.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid duration %q", value.Value)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarketConfig selects and tunes the market data source.
type MarketConfig struct {
	// Provider is the data vendor: binance or polygon.
	Provider string `yaml:"provider" validate:"required,oneof=binance polygon"`
	// Interval is the candlestick interval, e.g. "1m", "1h", "1d".
	Interval string `yaml:"interval" validate:"required"`
	// Lookback is the number of bars fetched per cycle.
	Lookback int `yaml:"lookback" validate:"required,gte=2"`
	// Mode selects polling or stream-driven cycles. Stream mode requires the
	// binance provider.
	Mode string `yaml:"mode" validate:"required,oneof=poll stream"`
	// PolygonAPIKey is required when the provider is polygon. Supports
	// ${ENV_VAR} expansion.
	PolygonAPIKey string `yaml:"polygon_api_key"`
}

// BrokerConfig holds Binance credentials and environment selection.
type BrokerConfig struct {
	APIKey     string `yaml:"api_key" validate:"required"`
	SecretKey  string `yaml:"secret_key" validate:"required"`
	QuoteAsset string `yaml:"quote_asset"`
	BaseURL    string `yaml:"base_url"`
	UseTestnet bool   `yaml:"use_testnet"`
}

// StrategyConfig selects and tunes the signal evaluator.
type StrategyConfig struct {
	Kind         string  `yaml:"kind" validate:"required,oneof=sma_crossover ema_crossover macd_crossover rsi_threshold rsi_macd_confirmation"`
	FastPeriod   int     `yaml:"fast_period"`
	SlowPeriod   int     `yaml:"slow_period"`
	SignalPeriod int     `yaml:"signal_period"`
	RSIPeriod    int     `yaml:"rsi_period"`
	EntryLevel   float64 `yaml:"entry_level"`
	ExitLevel    float64 `yaml:"exit_level"`
}

// SizingConfig selects fixed-quantity or risk-percent position sizing.
// Exactly one of the two must be set.
type SizingConfig struct {
	Quantity    float64 `yaml:"quantity" validate:"gte=0"`
	RiskPercent float64 `yaml:"risk_percent" validate:"gte=0,lte=100"`
}

// LoopConfig tunes the trading loop cadence and exit management.
type LoopConfig struct {
	PollInterval           Duration `yaml:"poll_interval" validate:"required,gt=0"`
	PauseInterval          Duration `yaml:"pause_interval"`
	MaxConsecutiveFailures int      `yaml:"max_consecutive_failures" validate:"gte=0"`
	TakeProfitPercent      float64  `yaml:"take_profit_percent" validate:"gte=0"`
	StopLossPercent        float64  `yaml:"stop_loss_percent" validate:"gte=0,lt=100"`
	TrailingStopPercent    float64  `yaml:"trailing_stop_percent" validate:"gte=0,lt=100"`
}

// StateConfig selects the position state backend.
type StateConfig struct {
	// Backend is file (one JSON file per symbol) or duckdb.
	Backend string `yaml:"backend" validate:"required,oneof=file duckdb"`
	// Path is the state directory for the file backend or the database file
	// for duckdb.
	Path string `yaml:"path" validate:"required"`
}

// NotifyConfig configures the optional webhook notification sink.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

// ServerConfig configures the optional status HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080". Empty disables the server.
	Addr string `yaml:"addr"`
}

// Config is the complete bot configuration.
type Config struct {
	Symbols  []string       `yaml:"symbols" validate:"required,min=1,dive,required"`
	Market   MarketConfig   `yaml:"market" validate:"required"`
	Broker   BrokerConfig   `yaml:"broker" validate:"required"`
	Strategy StrategyConfig `yaml:"strategy" validate:"required"`
	Sizing   SizingConfig   `yaml:"sizing" validate:"required"`
	Loop     LoopConfig     `yaml:"loop" validate:"required"`
	State    StateConfig    `yaml:"state" validate:"required"`
	Notify   NotifyConfig   `yaml:"notify"`
	Server   ServerConfig   `yaml:"server"`
}

// Load reads, expands, and validates the configuration file. Occurrences of
// ${ENV_VAR} in the file are replaced from the environment before parsing so
// credentials can stay out of the file itself.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMissingConfiguration, err, "failed to read config file %s", path)
	}

	return Parse(raw)
}

// Parse parses and validates raw YAML configuration.
func Parse(raw []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Market.Mode == "" {
		c.Market.Mode = "poll"
	}

	if c.Broker.QuoteAsset == "" {
		c.Broker.QuoteAsset = "USDT"
	}

	if c.Loop.PauseInterval <= 0 {
		c.Loop.PauseInterval = 10 * c.Loop.PollInterval
	}

	if c.Loop.MaxConsecutiveFailures <= 0 {
		c.Loop.MaxConsecutiveFailures = 5
	}
}

// Validate checks the full configuration, both tag constraints and the
// cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "config validation failed", err)
	}

	if (c.Sizing.Quantity > 0) == (c.Sizing.RiskPercent > 0) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "sizing requires exactly one of quantity or risk_percent")
	}

	if c.Market.Mode == "stream" && c.Market.Provider != "binance" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "stream mode requires the binance provider")
	}

	if c.Market.Provider == "polygon" && c.Market.PolygonAPIKey == "" {
		return errors.New(errors.ErrCodeMissingConfiguration, "polygon provider requires polygon_api_key")
	}

	if c.Loop.TrailingStopPercent > 0 && (c.Loop.TakeProfitPercent > 0 || c.Loop.StopLossPercent > 0) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "trailing stop and bracket orders are mutually exclusive")
	}

	return nil
}
