// Package config provides configuration management for the rotation tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"momentum-lens/internal/errors"
	"momentum-lens/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	AntiChurn AntiChurnConfig `mapstructure:"anti_churn"`
	Fees      FeeConfig       `mapstructure:"fees"`
	Orders    OrderConfig     `mapstructure:"orders"`
	Data      DataConfig      `mapstructure:"data"`
	UI        UIConfig        `mapstructure:"ui"`
	Presets   PresetTable     `mapstructure:"-"` // Loaded separately
}

// StrategyConfig holds momentum ranking and correlation gate parameters.
type StrategyConfig struct {
	BenchmarkCode  string   `mapstructure:"benchmark_code"`
	Candidates     []string `mapstructure:"candidates"`
	TopN           int      `mapstructure:"top_n"`
	MaxCorrelation float64  `mapstructure:"max_correlation"`
	CorrWindowDays int      `mapstructure:"corr_window_days"`
	CorrMinObs     int      `mapstructure:"corr_min_obs"`
	PortfolioValue float64  `mapstructure:"portfolio_value"`
}

// AntiChurnConfig holds the trade-frequency gate parameters.
type AntiChurnConfig struct {
	MinScoreImprovement float64 `mapstructure:"min_score_improvement"`
	MaxWeeklyRotations  int     `mapstructure:"max_weekly_rotations"`
	CooldownDays        int     `mapstructure:"cooldown_days"`
	MinHoldingDays      int     `mapstructure:"min_holding_days"`
}

// FeeConfig holds the fee model parameters.
type FeeConfig struct {
	CommissionRate float64 `mapstructure:"commission_rate"`
	MinCommission  float64 `mapstructure:"min_commission"`
	ImpactBp       float64 `mapstructure:"impact_bp"`
}

// OrderConfig holds order generation parameters.
type OrderConfig struct {
	FillProbability float64 `mapstructure:"fill_probability"` // simulated adapter only
}

// DataConfig holds data-source configuration.
type DataConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	DBPath         string `mapstructure:"db_path"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// Preset holds the regime-dependent risk parameters.
type Preset struct {
	StopLossPct    float64   `mapstructure:"stop_loss_pct"`
	BufferPct      float64   `mapstructure:"buffer_pct"`
	MinHoldingDays int       `mapstructure:"min_holding_days"`
	MaxLegs        int       `mapstructure:"max_legs"`
	LegWeights     []float64 `mapstructure:"leg_weights"`
}

// PresetTable maps a market regime to its parameter preset.
type PresetTable map[models.Regime]Preset

// ForRegime returns the preset for a regime, falling back to the
// conservative NEUTRAL preset for unknown regimes.
func (t PresetTable) ForRegime(r models.Regime) Preset {
	if p, ok := t[r]; ok {
		return p
	}
	return t[models.RegimeNeutral]
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/momentum-lens"
	}
	return filepath.Join(home, ".config", "momentum-lens")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	presets, err := loadPresets(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading presets.toml: %w", err)
	}
	cfg.Presets = presets

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := createTemplateConfig(configDir); err != nil {
				return err
			}
			// Fall through with defaults on first run.
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("strategy.benchmark_code", "000300")
	v.SetDefault("strategy.candidates", defaultCandidates())
	v.SetDefault("strategy.top_n", 5)
	v.SetDefault("strategy.max_correlation", 0.8)
	v.SetDefault("strategy.corr_window_days", 90)
	v.SetDefault("strategy.corr_min_obs", 60)
	v.SetDefault("strategy.portfolio_value", 1000000.0)

	v.SetDefault("anti_churn.min_score_improvement", 0.02)
	v.SetDefault("anti_churn.max_weekly_rotations", 2)
	v.SetDefault("anti_churn.cooldown_days", 7)
	v.SetDefault("anti_churn.min_holding_days", 14)

	v.SetDefault("fees.commission_rate", 0.0003)
	v.SetDefault("fees.min_commission", 5.0)
	v.SetDefault("fees.impact_bp", 2.0)

	v.SetDefault("orders.fill_probability", 0.7)

	v.SetDefault("data.base_url", "https://push2his.eastmoney.com")
	v.SetDefault("data.timeout_seconds", 10)
	v.SetDefault("data.db_path", filepath.Join(DefaultConfigDir(), "momentum.db"))

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
}

func defaultCandidates() []string {
	return []string{
		"512760", // semiconductor
		"512480", // semiconductor equipment
		"516160", // new energy
		"515790", // photovoltaic
		"515030", // new energy vehicles
		"515000", // tech leaders
		"512720", // computing
		"512660", // defense
		"512170", // medical
		"512000", // securities
	}
}

func loadPresets(configDir string) (PresetTable, error) {
	v := viper.New()
	v.SetConfigName("presets")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := createTemplatePresets(configDir); err != nil {
				return nil, err
			}
			return DefaultPresets(), nil
		}
		return nil, err
	}

	raw := map[string]Preset{}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, err
	}

	table := PresetTable{}
	for name, preset := range raw {
		table[models.Regime(name)] = preset
	}
	// Any regime missing from the file keeps its default preset.
	for regime, preset := range DefaultPresets() {
		if _, ok := table[regime]; !ok {
			table[regime] = preset
		}
	}
	return table, nil
}

// DefaultPresets returns the built-in regime parameter table.
func DefaultPresets() PresetTable {
	return PresetTable{
		models.RegimeTrend: {
			StopLossPct:    8.0,
			BufferPct:      3.0,
			MinHoldingDays: 14,
			MaxLegs:        2,
			LegWeights:     []float64{0.6, 0.4},
		},
		models.RegimeNeutral: {
			StopLossPct:    6.0,
			BufferPct:      4.0,
			MinHoldingDays: 14,
			MaxLegs:        2,
			LegWeights:     []float64{0.5, 0.3},
		},
		models.RegimeChop: {
			StopLossPct:    5.0,
			BufferPct:      5.0,
			MinHoldingDays: 21,
			MaxLegs:        1,
			LegWeights:     []float64{0.4},
		},
		models.RegimeBear: {
			StopLossPct:    4.0,
			BufferPct:      6.0,
			MinHoldingDays: 28,
			MaxLegs:        1,
			LegWeights:     []float64{0.2},
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MOMENTUM_LENS_DB"); v != "" {
		cfg.Data.DBPath = v
	}
	if v := os.Getenv("MOMENTUM_LENS_DATA_URL"); v != "" {
		cfg.Data.BaseURL = v
	}
}

// invalidf reports a validation failure carrying ErrConfigInvalid.
func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(errors.ErrConfigInvalid, format, args...)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Strategy.TopN < 1 {
		return invalidf("strategy.top_n must be at least 1")
	}
	if c.Strategy.MaxCorrelation <= 0 || c.Strategy.MaxCorrelation > 1 {
		return invalidf("strategy.max_correlation must be in (0, 1]")
	}
	if c.Strategy.CorrMinObs > c.Strategy.CorrWindowDays {
		return invalidf("strategy.corr_min_obs cannot exceed corr_window_days")
	}
	if c.AntiChurn.MinScoreImprovement < 0 {
		return invalidf("anti_churn.min_score_improvement must be non-negative")
	}
	if c.AntiChurn.MaxWeeklyRotations < 0 {
		return invalidf("anti_churn.max_weekly_rotations must be non-negative")
	}
	if c.Fees.CommissionRate < 0 || c.Fees.MinCommission < 0 || c.Fees.ImpactBp < 0 {
		return invalidf("fee parameters must be non-negative")
	}
	if c.Orders.FillProbability < 0 || c.Orders.FillProbability > 1 {
		return invalidf("orders.fill_probability must be between 0 and 1")
	}
	for regime, preset := range c.Presets {
		if preset.MaxLegs < 0 {
			return invalidf("preset %s: max_legs must be non-negative", regime)
		}
		if len(preset.LegWeights) < preset.MaxLegs {
			return invalidf("preset %s: leg_weights shorter than max_legs", regime)
		}
	}
	return nil
}
