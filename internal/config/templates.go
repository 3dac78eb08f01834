package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Momentum Lens Configuration

[strategy]
# Benchmark index for regime classification (CSI 300)
benchmark_code = "000300"
# Candidate ETF pool
candidates = [
    "512760", # semiconductor
    "512480", # semiconductor equipment
    "516160", # new energy
    "515790", # photovoltaic
    "515030", # new energy vehicles
    "515000", # tech leaders
    "512720", # computing
    "512660", # defense
    "512170", # medical
    "512000", # securities
]
# Candidates qualified after ranking and correlation substitution
top_n = 5
# Maximum correlation allowed between the two legs
max_correlation = 0.8
# Rolling window for the correlation matrix (trading days)
corr_window_days = 90
# Minimum shared observations for a correlation pair
corr_min_obs = 60
# Portfolio value used for target-weight sizing (CNY)
portfolio_value = 1000000.0

[anti_churn]
# Required relative score improvement for rotation (0.02 = 2%)
min_score_improvement = 0.02
# Maximum ROTATE actions per calendar week
max_weekly_rotations = 2
# Days required since the last rotation
cooldown_days = 7
# Days a position must be held before rotating out
min_holding_days = 14

[fees]
# Broker commission rate
commission_rate = 0.0003
# Minimum commission per order (CNY)
min_commission = 5.0
# Market impact in basis points
impact_bp = 2.0

[orders]
# Fill probability for the simulated execution adapter
fill_probability = 0.7

[data]
base_url = "https://push2his.eastmoney.com"
timeout_seconds = 10

[ui]
color_enabled = true
date_format = "2006-01-02"
`

const presetsTemplate = `# Regime parameter presets.
# Each section keys a market regime to its risk parameters.

[TREND]
stop_loss_pct = 8.0
buffer_pct = 3.0
min_holding_days = 14
max_legs = 2
leg_weights = [0.6, 0.4]

[NEUTRAL]
stop_loss_pct = 6.0
buffer_pct = 4.0
min_holding_days = 14
max_legs = 2
leg_weights = [0.5, 0.3]

[CHOP]
stop_loss_pct = 5.0
buffer_pct = 5.0
min_holding_days = 21
max_legs = 1
leg_weights = [0.4]

[BEAR]
stop_loss_pct = 4.0
buffer_pct = 6.0
min_holding_days = 28
max_legs = 1
leg_weights = [0.2]
`

func createTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config.toml", configTemplate)
}

func createTemplatePresets(configDir string) error {
	return writeTemplate(configDir, "presets.toml", presetsTemplate)
}

func writeTemplate(configDir, name, content string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(content), 0644)
}
