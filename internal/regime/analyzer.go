package regime

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"momentum-lens/internal/analysis/indicators"
	"momentum-lens/internal/models"
)

// Named CHOP sub-conditions.
const (
	CondBandDays      = "ma200_band_days"
	CondHighATRFlatMA = "high_atr_flat_ma"
	CondConvergence   = "momentum_convergence"
)

// Classification thresholds.
const (
	maPeriod         = 200
	atrPeriod        = 20
	slopeDays        = 5
	trendStreakDays  = 5
	trendDistancePct = 1.0
	trendDipPct      = -1.0
	trendDipWindow   = 3

	bandWindow     = 30
	bandWidthPct   = 3.0
	minBandDays    = 10
	minATRRatio    = 0.035
	maxFlatSlope   = 0.5
	maxGapRank1to3 = 3.0
	maxGapRank1to5 = 8.0
)

// Analyzer classifies the market regime from benchmark history and the
// current momentum dispersion.
type Analyzer struct {
	yearline *YearlineMonitor
	logger   zerolog.Logger
}

// NewAnalyzer creates a regime analyzer. The yearline monitor is owned by
// the analyzer and lives for its lifetime.
func NewAnalyzer(logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		yearline: NewYearlineMonitor(),
		logger:   logger,
	}
}

// Yearline exposes the analyzer's yearline monitor.
func (a *Analyzer) Yearline() *YearlineMonitor {
	return a.yearline
}

// Assess classifies the regime from benchmark OHLC history and the current
// top momentum scores. With fewer than 200 observations the regime is
// UNKNOWN and no recommendation is made.
func (a *Analyzer) Assess(candles []models.Candle, topScores []models.MomentumScore, asOf time.Time) models.RegimeState {
	state := models.RegimeState{
		Regime:    models.RegimeUnknown,
		Timestamp: asOf,
		Yearline:  a.yearline.State(),
	}

	if len(candles) < maPeriod {
		a.logger.Warn().
			Int("observations", len(candles)).
			Msg("insufficient history for regime classification")
		return state
	}

	ma, err := indicators.NewSMA(maPeriod).Calculate(candles)
	if err != nil {
		return state
	}

	closes := indicators.ClosePrices(candles)
	last := len(candles) - 1
	close0 := closes[last]
	ma0 := ma[last]

	state.MA200 = ma0
	state.MA200Distance = (close0/ma0 - 1) * 100

	if slope, err := indicators.SlopePct(ma, slopeDays); err == nil {
		state.MA200Slope = slope
	}

	if atr, err := indicators.NewATR(atrPeriod).Calculate(candles); err == nil && close0 > 0 {
		state.ATRRatio = atr[last] / close0
	}

	state.BandDays = a.countBandDays(closes, ma)

	// Yearline transitions feed off the same session.
	a.yearline.CheckFallback(close0, ma0, asOf)
	a.yearline.CheckUnlock(close0, ma0, asOf)
	state.Yearline = a.yearline.State()

	state.TrendConfirmed = a.trendConfirmed(closes, ma)

	switch {
	case state.TrendConfirmed:
		state.Regime = models.RegimeTrend
	default:
		conditions := a.chopConditions(state, topScores)
		if len(conditions) >= 2 {
			state.Regime = models.RegimeChop
			state.ChopConditions = conditions
		} else if close0 < ma0 {
			state.Regime = models.RegimeBear
			state.ChopConditions = conditions
		} else {
			state.Regime = models.RegimeNeutral
			state.ChopConditions = conditions
		}
	}

	a.logger.Info().
		Str("regime", string(state.Regime)).
		Float64("ma200_distance_pct", state.MA200Distance).
		Float64("ma200_slope_pct", state.MA200Slope).
		Float64("atr_ratio", state.ATRRatio).
		Int("band_days", state.BandDays).
		Strs("chop_conditions", state.ChopConditions).
		Msg("regime classified")

	return state
}

// trendConfirmed requires the last 5 sessions above MA200, the latest
// distance at least +1%, and no close in the trailing 3 sessions more than
// 1% below MA200.
func (a *Analyzer) trendConfirmed(closes, ma []float64) bool {
	last := len(closes) - 1
	if last+1 < trendStreakDays {
		return false
	}

	for i := 0; i < trendStreakDays; i++ {
		idx := last - i
		if ma[idx] <= 0 || closes[idx] <= ma[idx] {
			return false
		}
	}

	if (closes[last]/ma[last]-1)*100 < trendDistancePct {
		return false
	}

	for i := 0; i < trendDipWindow; i++ {
		idx := last - i
		if (closes[idx]/ma[idx]-1)*100 < trendDipPct {
			return false
		}
	}

	return true
}

// countBandDays counts sessions in the trailing 30 where the close is
// within +/-3% of MA200.
func (a *Analyzer) countBandDays(closes, ma []float64) int {
	last := len(closes) - 1
	start := last - bandWindow + 1
	if start < 0 {
		start = 0
	}

	count := 0
	for i := start; i <= last; i++ {
		if ma[i] <= 0 {
			continue
		}
		dist := math.Abs(closes[i]/ma[i]-1) * 100
		if dist <= bandWidthPct {
			count++
		}
	}
	return count
}

// chopConditions evaluates the three named CHOP sub-conditions and returns
// the ones that hold.
func (a *Analyzer) chopConditions(state models.RegimeState, topScores []models.MomentumScore) []string {
	var met []string

	if state.BandDays >= minBandDays {
		met = append(met, CondBandDays)
	}

	if state.ATRRatio >= minATRRatio && math.Abs(state.MA200Slope) <= maxFlatSlope {
		met = append(met, CondHighATRFlatMA)
	}

	if len(topScores) >= 5 {
		gap13 := topScores[0].Score - topScores[2].Score
		gap15 := topScores[0].Score - topScores[4].Score
		if gap13 < maxGapRank1to3 && gap15 < maxGapRank1to5 {
			met = append(met, CondConvergence)
		}
	}

	return met
}
