package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode             string   `yaml:"mode"`
	TimeframeSeconds int      `yaml:"timeframe_seconds"`
	WindowSize       int      `yaml:"window_size"`
	MaxConcurrent    int      `yaml:"max_concurrent"`
	PayoutThreshold  float64  `yaml:"payout_threshold"`
	Instruments      []string `yaml:"instruments"`
	LedgerPath       string   `yaml:"ledger_path"`
	StopFile         string   `yaml:"stop_file"`

	Stake struct {
		Percent float64 `yaml:"percent"`
		Minimum float64 `yaml:"minimum"`
	} `yaml:"stake"`

	Strategies struct {
		Breakout struct {
			Enabled          bool    `yaml:"enabled"`
			MinCandles       int     `yaml:"min_candles"`
			ExtremesLookback int     `yaml:"extremes_lookback"`
			MaxATRPercent    float64 `yaml:"max_atr_percent"`
		} `yaml:"breakout"`
		Engulfing struct {
			Enabled      bool    `yaml:"enabled"`
			MinCandles   int     `yaml:"min_candles"`
			MinBodyRatio float64 `yaml:"min_body_ratio"`
		} `yaml:"engulfing"`
	} `yaml:"strategies"`

	Risk struct {
		CapMode        string  `yaml:"cap_mode"` // FIXED or PERCENT
		DailyProfitCap float64 `yaml:"daily_profit_cap"`
		DailyLossCap   float64 `yaml:"daily_loss_cap"`
	} `yaml:"risk"`

	Intervals struct {
		SupervisorSeconds      int `yaml:"supervisor_seconds"`
		SweeperSeconds         int `yaml:"sweeper_seconds"`
		CatalogRefreshSeconds  int `yaml:"catalog_refresh_seconds"`
		QuarantineResetSeconds int `yaml:"quarantine_reset_seconds"`
	} `yaml:"intervals"`

	Timeouts struct {
		FetchSeconds    int `yaml:"fetch_seconds"`
		SubmitSeconds   int `yaml:"submit_seconds"`
		PollSeconds     int `yaml:"poll_seconds"`
		LivenessSeconds int `yaml:"liveness_seconds"`
		AnalyzeSeconds  int `yaml:"analyze_seconds"`
	} `yaml:"timeouts"`

	GraceSeconds    int `yaml:"grace_seconds"`
	FetchThrottleMs int `yaml:"fetch_throttle_ms"`
}

func (c *Config) Timeframe() time.Duration {
	return time.Duration(c.TimeframeSeconds) * time.Second
}

func (c *Config) Grace() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

func (c *Config) FetchThrottle() time.Duration {
	return time.Duration(c.FetchThrottleMs) * time.Millisecond
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.TimeframeSeconds <= 0 {
		return fmt.Errorf("timeframe_seconds must be positive, got %d", c.TimeframeSeconds)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.WindowSize < 6 {
		return fmt.Errorf("window_size must be at least 6, got %d", c.WindowSize)
	}
	if c.PayoutThreshold < 0 || c.PayoutThreshold > 100 {
		return fmt.Errorf("payout_threshold must be between 0-100, got %.1f", c.PayoutThreshold)
	}
	if !c.Strategies.Breakout.Enabled && !c.Strategies.Engulfing.Enabled {
		return errors.New("no strategy enabled")
	}
	if c.Stake.Percent <= 0 || c.Stake.Percent > 100 {
		return fmt.Errorf("stake.percent must be between 0-100, got %.2f", c.Stake.Percent)
	}
	if c.Risk.CapMode != "" && c.Risk.CapMode != "FIXED" && c.Risk.CapMode != "PERCENT" {
		return fmt.Errorf("risk.cap_mode must be 'FIXED' or 'PERCENT', got '%s'", c.Risk.CapMode)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.TimeframeSeconds == 0 {
		c.TimeframeSeconds = 60
	}
	if c.WindowSize == 0 {
		c.WindowSize = 10
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 1
	}
	if c.PayoutThreshold == 0 {
		c.PayoutThreshold = 84
	}
	if c.LedgerPath == "" {
		c.LedgerPath = "trades.log"
	}
	if c.StopFile == "" {
		c.StopFile = "STOP"
	}
	if c.Stake.Percent == 0 {
		c.Stake.Percent = 2
	}
	if c.Stake.Minimum == 0 {
		c.Stake.Minimum = 1
	}
	if c.Strategies.Breakout.MinCandles == 0 {
		c.Strategies.Breakout.MinCandles = 10
	}
	if c.Strategies.Breakout.ExtremesLookback == 0 {
		c.Strategies.Breakout.ExtremesLookback = 4
	}
	if c.Strategies.Breakout.MaxATRPercent == 0 {
		c.Strategies.Breakout.MaxATRPercent = 1.5
	}
	if c.Strategies.Engulfing.MinCandles == 0 {
		c.Strategies.Engulfing.MinCandles = 10
	}
	if c.Strategies.Engulfing.MinBodyRatio == 0 {
		c.Strategies.Engulfing.MinBodyRatio = 0.3
	}
	if c.Intervals.SupervisorSeconds == 0 {
		c.Intervals.SupervisorSeconds = 30
	}
	if c.Intervals.SweeperSeconds == 0 {
		c.Intervals.SweeperSeconds = 60
	}
	if c.Intervals.CatalogRefreshSeconds == 0 {
		c.Intervals.CatalogRefreshSeconds = 300
	}
	if c.Intervals.QuarantineResetSeconds == 0 {
		c.Intervals.QuarantineResetSeconds = 120
	}
	if c.Timeouts.FetchSeconds == 0 {
		c.Timeouts.FetchSeconds = 5
	}
	if c.Timeouts.SubmitSeconds == 0 {
		c.Timeouts.SubmitSeconds = 5
	}
	if c.Timeouts.PollSeconds == 0 {
		c.Timeouts.PollSeconds = 10
	}
	if c.Timeouts.LivenessSeconds == 0 {
		c.Timeouts.LivenessSeconds = 5
	}
	if c.Timeouts.AnalyzeSeconds == 0 {
		c.Timeouts.AnalyzeSeconds = 5
	}
	if c.GraceSeconds == 0 {
		c.GraceSeconds = 30
	}
	if c.FetchThrottleMs == 0 {
		c.FetchThrottleMs = 200
	}
}
