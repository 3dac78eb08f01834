package regime

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lens/internal/models"
)

func day(n int) time.Time {
	return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestYearlineUnlockRequiresStreakAndDistance(t *testing.T) {
	m := NewYearlineMonitor()

	// Four sessions above the line do not unlock.
	for i := 0; i < 4; i++ {
		assert.False(t, m.CheckUnlock(102, 100, day(i)))
	}
	assert.Equal(t, 4, m.State().AboveCount)
	assert.False(t, m.State().Unlocked)

	// Fifth session with distance above 1% fires the unlock once.
	assert.True(t, m.CheckUnlock(102, 100, day(4)))
	state := m.State()
	assert.True(t, state.Unlocked)
	require.NotNil(t, state.UnlockDate)
	assert.Equal(t, day(4), *state.UnlockDate)

	// Already unlocked: further sessions extend the streak silently.
	assert.False(t, m.CheckUnlock(103, 100, day(5)))
	assert.Equal(t, 6, m.State().AboveCount)
}

func TestYearlineStreakResetsOnDip(t *testing.T) {
	m := NewYearlineMonitor()

	for i := 0; i < 4; i++ {
		m.CheckUnlock(102, 100, day(i))
	}
	// A close at the line resets the streak outright.
	assert.False(t, m.CheckUnlock(100, 100, day(4)))
	assert.Equal(t, 0, m.State().AboveCount)

	// The streak must rebuild from scratch.
	for i := 5; i < 9; i++ {
		assert.False(t, m.CheckUnlock(102, 100, day(i)))
	}
	assert.True(t, m.CheckUnlock(102, 100, day(9)))
}

func TestYearlineUnlockBlockedByDistance(t *testing.T) {
	m := NewYearlineMonitor()

	// Five sessions above the line but under 1% distance: no unlock.
	for i := 0; i < 5; i++ {
		assert.False(t, m.CheckUnlock(100.5, 100, day(i)))
	}
	assert.False(t, m.State().Unlocked)
	assert.Equal(t, 5, m.State().AboveCount)

	// The next session clears 1% and unlocks.
	assert.True(t, m.CheckUnlock(101.5, 100, day(5)))
}

func TestYearlineFallback(t *testing.T) {
	m := NewYearlineMonitor()

	for i := 0; i < 5; i++ {
		m.CheckUnlock(102, 100, day(i))
	}
	require.True(t, m.State().Unlocked)

	// Above the fallback level: no-op.
	assert.False(t, m.CheckFallback(99.5, 100, day(6)))
	assert.True(t, m.State().Unlocked)

	// At or below 1% under the line within 3 calendar days: unlock cleared.
	assert.True(t, m.CheckFallback(99, 100, day(6)))
	state := m.State()
	assert.False(t, state.Unlocked)
	assert.Nil(t, state.UnlockDate)
	assert.Equal(t, 0, state.AboveCount)

	// While locked the fallback is a no-op.
	assert.False(t, m.CheckFallback(90, 100, day(7)))
}

func TestYearlineFallbackWindowExpires(t *testing.T) {
	m := NewYearlineMonitor()

	for i := 0; i < 5; i++ {
		m.CheckUnlock(102, 100, day(i))
	}
	require.True(t, m.State().Unlocked)

	// Four calendar days after the unlock the window has closed.
	assert.False(t, m.CheckFallback(99, 100, day(8)))
	assert.True(t, m.State().Unlocked)
}

func TestChopConditionsTruthTable(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	chopState := func(band bool, atrFlat bool) models.RegimeState {
		s := models.RegimeState{}
		if band {
			s.BandDays = 12
		}
		if atrFlat {
			s.ATRRatio = 0.04
			s.MA200Slope = 0.2
		} else {
			s.ATRRatio = 0.01
			s.MA200Slope = 2.0
		}
		return s
	}
	converged := []models.MomentumScore{
		{Score: 10}, {Score: 9}, {Score: 8}, {Score: 6}, {Score: 4},
	}
	dispersed := []models.MomentumScore{
		{Score: 30}, {Score: 20}, {Score: 12}, {Score: 8}, {Score: 2},
	}

	tests := []struct {
		name    string
		band    bool
		atrFlat bool
		scores  []models.MomentumScore
		want    []string
	}{
		{"none", false, false, dispersed, nil},
		{"band only", true, false, dispersed, []string{CondBandDays}},
		{"atr only", false, true, dispersed, []string{CondHighATRFlatMA}},
		{"convergence only", false, false, converged, []string{CondConvergence}},
		{"band and atr", true, true, dispersed, []string{CondBandDays, CondHighATRFlatMA}},
		{"band and convergence", true, false, converged, []string{CondBandDays, CondConvergence}},
		{"atr and convergence", false, true, converged, []string{CondHighATRFlatMA, CondConvergence}},
		{"all three", true, true, converged, []string{CondBandDays, CondHighATRFlatMA, CondConvergence}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.chopConditions(chopState(tt.band, tt.atrFlat), tt.scores)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChopConvergenceNeedsFiveScores(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	scores := []models.MomentumScore{{Score: 10}, {Score: 9}, {Score: 8}}
	assert.Empty(t, a.chopConditions(models.RegimeState{}, scores))
}

// series builders for full classification runs

func candlesAt(closes []float64, spread float64) []models.Candle {
	base := time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      c,
			High:      c * (1 + spread),
			Low:       c * (1 - spread),
			Close:     c,
			Volume:    100000,
		}
	}
	return candles
}

func geometricCloses(start, dailyFactor float64, n int) []float64 {
	closes := make([]float64, n)
	v := start
	for i := range closes {
		closes[i] = v
		v *= dailyFactor
	}
	return closes
}

func constantCloses(v float64, n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = v
	}
	return closes
}

func TestAssessUnknownOnShortHistory(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	state := a.Assess(candlesAt(constantCloses(100, 150), 0.001), nil, day(0))
	assert.Equal(t, models.RegimeUnknown, state.Regime)
}

func TestAssessTrend(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	// A steadily rising market sits well above its own 200-day average.
	closes := geometricCloses(100, 1.002, 250)
	state := a.Assess(candlesAt(closes, 0.001), nil, day(0))

	assert.Equal(t, models.RegimeTrend, state.Regime)
	assert.True(t, state.TrendConfirmed)
	assert.Greater(t, state.MA200Distance, 1.0)
	assert.Greater(t, state.MA200Slope, 0.0)
}

func TestAssessBear(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	// A steady decline keeps the close far below the average with low
	// volatility and no convergence signal.
	closes := geometricCloses(200, 0.998, 250)
	state := a.Assess(candlesAt(closes, 0.001), nil, day(0))

	assert.Equal(t, models.RegimeBear, state.Regime)
	assert.False(t, state.TrendConfirmed)
	assert.Less(t, state.MA200Distance, 0.0)
}

func TestAssessChop(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	// Flat closes pinned to the average with wide intraday ranges: the
	// band-days and high-ATR/flat-slope conditions both hold.
	closes := constantCloses(100, 250)
	state := a.Assess(candlesAt(closes, 0.04), nil, day(0))

	assert.Equal(t, models.RegimeChop, state.Regime)
	assert.Contains(t, state.ChopConditions, CondBandDays)
	assert.Contains(t, state.ChopConditions, CondHighATRFlatMA)
	assert.Equal(t, 30, state.BandDays)
}

func TestAssessNeutral(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	// A slow grind higher: above the average but under the 1% trend
	// distance, with only the band condition active.
	closes := geometricCloses(100, 1.00005, 250)
	state := a.Assess(candlesAt(closes, 0.001), nil, day(0))

	assert.Equal(t, models.RegimeNeutral, state.Regime)
	assert.False(t, state.TrendConfirmed)
	assert.Greater(t, state.MA200Distance, 0.0)
	assert.Less(t, state.MA200Distance, 1.0)
}

func TestAssessFeedsYearline(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop())

	closes := geometricCloses(100, 1.002, 250)
	candles := candlesAt(closes, 0.001)

	// Each assessment is one session for the yearline streak.
	var state models.RegimeState
	for i := 0; i < 5; i++ {
		state = a.Assess(candles, nil, day(i))
	}
	assert.True(t, state.Yearline.Unlocked)
	assert.Equal(t, 5, state.Yearline.AboveCount)
}
