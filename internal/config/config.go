package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Gaps struct {
		MinGapPct       float64 `yaml:"min_gap_pct"`
		IncludeBodyGaps *bool   `yaml:"include_body_gaps"`
	} `yaml:"gaps"`
	Levels struct {
		LookbackBars        int     `yaml:"lookback_bars"`
		SwingWindow         int     `yaml:"swing_window"`
		Sensitivity         string  `yaml:"sensitivity"`
		RoundNumberInterval float64 `yaml:"round_number_interval"`
		ConfluencePct       float64 `yaml:"confluence_pct"`
	} `yaml:"levels"`
	Zones struct {
		MinMovePct        float64 `yaml:"min_move_pct"`
		ConsolidationBars int     `yaml:"consolidation_bars"`
		VolumeThreshold   float64 `yaml:"volume_threshold"`
	} `yaml:"zones"`
	Watch struct {
		Cron  string   `yaml:"cron"`
		Files []string `yaml:"files"`
	} `yaml:"watch"`
	Output struct {
		Dir      string `yaml:"dir"`
		Markdown *bool  `yaml:"markdown"`
	} `yaml:"output"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("ANALYZER_MIN_GAP_PCT"); v != "" {
		var pct float64
		if _, err := fmt.Sscanf(v, "%f", &pct); err == nil {
			cfg.Gaps.MinGapPct = pct
		}
	}
	if v := os.Getenv("ANALYZER_SENSITIVITY"); v != "" {
		cfg.Levels.Sensitivity = v
	}
	if v := os.Getenv("ANALYZER_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("CRON_WATCH"); v != "" {
		cfg.Watch.Cron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}

	// Defaults
	if cfg.Gaps.MinGapPct == 0 {
		cfg.Gaps.MinGapPct = 0.5
	}
	if cfg.Gaps.IncludeBodyGaps == nil {
		t := true
		cfg.Gaps.IncludeBodyGaps = &t
	}
	if cfg.Levels.LookbackBars == 0 {
		cfg.Levels.LookbackBars = 100
	}
	if cfg.Levels.SwingWindow == 0 {
		cfg.Levels.SwingWindow = 5
	}
	if cfg.Levels.Sensitivity == "" {
		cfg.Levels.Sensitivity = "medium"
	}
	if cfg.Levels.RoundNumberInterval == 0 {
		cfg.Levels.RoundNumberInterval = 10.0
	}
	if cfg.Levels.ConfluencePct == 0 {
		cfg.Levels.ConfluencePct = 0.005
	}
	if cfg.Zones.MinMovePct == 0 {
		cfg.Zones.MinMovePct = 3.0
	}
	if cfg.Zones.ConsolidationBars == 0 {
		cfg.Zones.ConsolidationBars = 5
	}
	if cfg.Zones.VolumeThreshold == 0 {
		cfg.Zones.VolumeThreshold = 1.5
	}
	if cfg.Watch.Cron == "" {
		cfg.Watch.Cron = "0 0 22 * * 1-5"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "data/reports"
	}
	if cfg.Output.Markdown == nil {
		t := true
		cfg.Output.Markdown = &t
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/trading_analyzer.db"
	}

	return cfg, nil
}

// Validate checks that all parameter values are in range.
func (c *Config) Validate() error {
	if c.Gaps.MinGapPct < 0 || c.Gaps.MinGapPct > 50 {
		return fmt.Errorf("gaps.min_gap_pct must be between 0 and 50, got %g", c.Gaps.MinGapPct)
	}
	switch c.Levels.Sensitivity {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("levels.sensitivity must be low, medium, or high, got %q", c.Levels.Sensitivity)
	}
	if c.Levels.LookbackBars < 0 {
		return fmt.Errorf("levels.lookback_bars must be positive")
	}
	if c.Levels.SwingWindow < 2 {
		return fmt.Errorf("levels.swing_window must be at least 2")
	}
	if c.Zones.MinMovePct <= 0 {
		return fmt.Errorf("zones.min_move_pct must be positive")
	}
	if c.Zones.ConsolidationBars < 1 {
		return fmt.Errorf("zones.consolidation_bars must be at least 1")
	}
	if c.Zones.VolumeThreshold <= 0 {
		return fmt.Errorf("zones.volume_threshold must be positive")
	}
	return nil
}
