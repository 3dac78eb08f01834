package engine

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lens/internal/config"
	"momentum-lens/internal/errors"
	"momentum-lens/internal/models"
	"momentum-lens/internal/orders"
	"momentum-lens/internal/rotation"
	"momentum-lens/internal/store"
	"momentum-lens/pkg/utils"
)

type fakeFetcher struct {
	histories map[string][]models.Candle
	quotes    map[string]models.IOPVQuote
	err       error
}

func (f *fakeFetcher) FetchPrices(_ context.Context, codes []string, _, _ time.Time) (map[string][]models.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[string][]models.Candle)
	for _, code := range codes {
		if candles, ok := f.histories[code]; ok {
			result[code] = candles
		}
	}
	return result, nil
}

func (f *fakeFetcher) IOPVQuotes(_ context.Context, codes []string) (map[string]models.IOPVQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[string]models.IOPVQuote)
	for _, code := range codes {
		if q, ok := f.quotes[code]; ok {
			result[code] = q
		}
	}
	return result, nil
}

// testNow is a Monday morning before the first execution window.
var testNow = time.Date(2026, 8, 31, 9, 0, 0, 0, utils.ChinaLocation)

// history builds n daily candles ending the day before testNow, with the
// close compounding by dailyFactor and a phase-shifted wobble so two codes
// built with different phases decorrelate.
func history(start, dailyFactor float64, n int, phase float64) []models.Candle {
	candles := make([]models.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		p := price * (1 + 0.004*math.Sin(float64(i)*0.9+phase))
		candles[i] = models.Candle{
			Timestamp: testNow.AddDate(0, 0, i-n),
			Open:      p,
			High:      p * 1.002,
			Low:       p * 0.998,
			Close:     p,
			Volume:    100000,
		}
		price *= dailyFactor
	}
	return candles
}

func testEngineConfig(candidates []string) *config.Config {
	return &config.Config{
		Strategy: config.StrategyConfig{
			BenchmarkCode:  "000300",
			Candidates:     candidates,
			TopN:           5,
			MaxCorrelation: 0.8,
			CorrWindowDays: 90,
			CorrMinObs:     60,
			PortfolioValue: 1000000,
		},
		AntiChurn: config.AntiChurnConfig{
			MinScoreImprovement: 0.02,
			MaxWeeklyRotations:  2,
			CooldownDays:        7,
			MinHoldingDays:      14,
		},
		Fees:    config.FeeConfig{CommissionRate: 0.0003, MinCommission: 5, ImpactBp: 2},
		Orders:  config.OrderConfig{FillProbability: 1.0},
		Presets: config.DefaultPresets(),
	}
}

func newTestEngine(t *testing.T, cfg *config.Config, fetcher *fakeFetcher) (*Engine, *rotation.Controller) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := zerolog.Nop()
	controller, err := rotation.NewController(context.Background(), cfg.AntiChurn, st, logger)
	require.NoError(t, err)

	adapter := orders.NewSimulatedAdapter(1.0, 7)
	manager := orders.NewManager(st, orders.NewFeeModel(cfg.Fees), adapter, func() time.Time { return testNow }, logger)

	return New(cfg, fetcher, st, controller, manager, func() time.Time { return testNow }, logger), controller
}

func TestRunCycleInitialEntry(t *testing.T) {
	cfg := testEngineConfig([]string{"512760", "512170"})
	// Rising benchmark, with 512760 carrying the strongest momentum.
	fetcher := &fakeFetcher{
		histories: map[string][]models.Candle{
			"000300": history(100, 1.002, 250, 0),
			"512760": history(1.0, 1.003, 150, 0),
			"512170": history(2.0, 1.001, 150, 2.1),
		},
		quotes: map[string]models.IOPVQuote{
			"512760": {Code: "512760", IOPV: 1.5},
		},
	}

	e, controller := newTestEngine(t, cfg, fetcher)

	result, err := e.RunCycle(context.Background(), nil, true)
	require.NoError(t, err)

	assert.Equal(t, models.RegimeTrend, result.Regime.Regime)
	require.NotEmpty(t, result.Ranked)
	assert.Equal(t, "512760", result.Ranked[0].Code)

	require.True(t, result.Decision.Allowed)
	require.NotNil(t, result.Plan)
	assert.Equal(t, "512760", result.Plan.Incoming)
	assert.Empty(t, result.Plan.Outgoing)

	require.Len(t, result.Orders, 1)
	order := result.Orders[0]
	assert.Equal(t, models.OrderSideBuy, order.Side)
	assert.Equal(t, "512760", order.Code)
	// Sized from the 60% trend leg weight at IOPV 1.5, floored to the lot.
	assert.Equal(t, 400000, order.Quantity)
	assert.InDelta(t, 1.5*1.001, order.LimitPrice, 1e-9)

	// The entry is journaled.
	_, ok := controller.EntryDate("512760")
	assert.True(t, ok)
}

func TestRunCycleRotationSellSizedFromHoldingWeight(t *testing.T) {
	cfg := testEngineConfig([]string{"512760", "512170"})
	fetcher := &fakeFetcher{
		histories: map[string][]models.Candle{
			"000300": history(100, 1.002, 250, 0),
			"512760": history(1.0, 1.003, 150, 0),
			"512170": history(2.0, 1.001, 150, 2.1),
		},
		quotes: map[string]models.IOPVQuote{
			"512760": {Code: "512760", IOPV: 1.5},
			"512170": {Code: "512170", IOPV: 2.0},
		},
	}

	e, _ := newTestEngine(t, cfg, fetcher)

	// The outgoing position holds 20% of the portfolio, well below the
	// trend preset's 60% first leg.
	holdings := []models.Holding{{Code: "512170", Weight: 0.2}}
	result, err := e.RunCycle(context.Background(), holdings, true)
	require.NoError(t, err)

	require.True(t, result.Decision.Allowed)
	require.NotNil(t, result.Plan)
	assert.Equal(t, "512170", result.Plan.Outgoing)
	assert.InDelta(t, 0.2, result.Plan.OutgoingWeight, 1e-9)
	assert.Equal(t, "512760", result.Plan.Incoming)

	require.Len(t, result.Orders, 2)
	var sell, buy models.LimitOrder
	for _, o := range result.Orders {
		if o.Side == models.OrderSideSell {
			sell = o
		} else {
			buy = o
		}
	}

	// Sell sized from the held 20% at IOPV 2.0, not the preset leg weight.
	assert.Equal(t, "512170", sell.Code)
	assert.Equal(t, 100000, sell.Quantity)

	assert.Equal(t, "512760", buy.Code)
	assert.Equal(t, 400000, buy.Quantity)
}

func TestBuildRequestsSellWeightFallsBackToPreset(t *testing.T) {
	cfg := testEngineConfig(nil)
	e, _ := newTestEngine(t, cfg, &fakeFetcher{})

	preset := cfg.Presets.ForRegime(models.RegimeTrend)
	quotes := map[string]models.IOPVQuote{
		"512170": {Code: "512170", IOPV: 2.0},
		"512760": {Code: "512760", IOPV: 1.5},
	}

	// No recorded holding weight: the preset's first leg weight sizes the
	// sell.
	plan := &RotationPlan{Outgoing: "512170", Incoming: "512760"}
	requests := e.buildRequests(plan, preset, nil, quotes)
	require.Len(t, requests, 2)
	assert.Equal(t, models.OrderSideSell, requests[0].Side)
	assert.Equal(t, 300000, requests[0].Quantity)

	plan.OutgoingWeight = 0.2
	requests = e.buildRequests(plan, preset, nil, quotes)
	require.Len(t, requests, 2)
	assert.Equal(t, 100000, requests[0].Quantity)
}

func TestRunCycleDryRunPlacesNothing(t *testing.T) {
	cfg := testEngineConfig([]string{"512760", "512170"})
	fetcher := &fakeFetcher{
		histories: map[string][]models.Candle{
			"000300": history(100, 1.002, 250, 0),
			"512760": history(1.0, 1.003, 150, 0),
			"512170": history(2.0, 1.001, 150, 2.1),
		},
		quotes: map[string]models.IOPVQuote{"512760": {Code: "512760", IOPV: 1.5}},
	}

	e, controller := newTestEngine(t, cfg, fetcher)

	result, err := e.RunCycle(context.Background(), nil, false)
	require.NoError(t, err)

	assert.True(t, result.Decision.Allowed)
	assert.Empty(t, result.Orders)
	_, ok := controller.EntryDate("512760")
	assert.False(t, ok)
}

func TestRunCycleAllCandidatesHeld(t *testing.T) {
	cfg := testEngineConfig([]string{"512760"})
	fetcher := &fakeFetcher{
		histories: map[string][]models.Candle{
			"000300": history(100, 1.002, 250, 0),
			"512760": history(1.0, 1.003, 150, 0),
		},
	}

	e, _ := newTestEngine(t, cfg, fetcher)

	holdings := []models.Holding{{Code: "512760", Weight: 0.6}}
	result, err := e.RunCycle(context.Background(), holdings, true)
	require.NoError(t, err)

	assert.False(t, result.Decision.Allowed)
	assert.Contains(t, result.Decision.Reasons[0], "already held")
	assert.Empty(t, result.Orders)
}

func TestSelectRotationNoCandidates(t *testing.T) {
	cfg := testEngineConfig(nil)
	e, _ := newTestEngine(t, cfg, &fakeFetcher{})

	decision, plan := e.SelectRotation(nil, nil)
	assert.False(t, decision.Allowed)
	assert.Nil(t, plan)
	assert.Contains(t, decision.Reasons[0], "no qualified candidates")
}

func TestSelectRotationPicksWeakestHolding(t *testing.T) {
	cfg := testEngineConfig(nil)
	e, _ := newTestEngine(t, cfg, &fakeFetcher{})

	holdings := []models.Holding{
		{Code: "512760", Weight: 0.6},
		{Code: "512170", Weight: 0.4},
	}
	ranked := []models.MomentumScore{
		{Code: "512000", Score: 20, Rank: 1},
		{Code: "512760", Score: 15, Rank: 2},
		{Code: "512170", Score: 5, Rank: 3},
	}

	decision, plan := e.SelectRotation(holdings, ranked)
	require.NotNil(t, plan)
	assert.Equal(t, "512170", plan.Outgoing)
	assert.Equal(t, "512000", plan.Incoming)
	assert.InDelta(t, 5.0, plan.OldScore, 1e-9)
	assert.InDelta(t, 20.0, plan.NewScore, 1e-9)
	assert.True(t, decision.Allowed)
}

func TestSelectRotationSameGroupDenied(t *testing.T) {
	cfg := testEngineConfig(nil)
	e, _ := newTestEngine(t, cfg, &fakeFetcher{})

	holdings := []models.Holding{{Code: "512760", Weight: 0.6}}
	ranked := []models.MomentumScore{
		{Code: "512480", Score: 50, Rank: 1},
		{Code: "512760", Score: 10, Rank: 2},
	}

	decision, plan := e.SelectRotation(holdings, ranked)
	require.NotNil(t, plan)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reasons[0], "sector group")
}

func TestAssessMarketRegimeDegradesToUnknown(t *testing.T) {
	cfg := testEngineConfig([]string{"512760"})
	fetcher := &fakeFetcher{err: context.DeadlineExceeded}

	e, _ := newTestEngine(t, cfg, fetcher)

	state, err := e.AssessMarketRegime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RegimeUnknown, state.Regime)
}

func TestFetchHistoryRefetchesShallowCache(t *testing.T) {
	cfg := testEngineConfig(nil)
	full := history(100, 1.001, 260, 0)
	fetcher := &fakeFetcher{histories: map[string][]models.Candle{"000300": full}}
	e, _ := newTestEngine(t, cfg, fetcher)
	ctx := context.Background()

	// A fresh but shallow cache, as an earlier short-range fetch would
	// leave behind, must not satisfy the full lookback.
	shallow := full[len(full)-40:]
	require.NoError(t, e.store.SaveCandles(ctx, "000300", shallow))

	candles, err := e.fetchHistory(ctx, "000300", testNow)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(candles), 250)
}

func TestFetchHistoryUsesDeepFreshCache(t *testing.T) {
	cfg := testEngineConfig(nil)
	// A failing fetcher proves the cache serves the request.
	e, _ := newTestEngine(t, cfg, &fakeFetcher{err: context.DeadlineExceeded})
	ctx := context.Background()

	full := history(100, 1.001, 260, 0)
	require.NoError(t, e.store.SaveCandles(ctx, "000300", full))

	candles, err := e.fetchHistory(ctx, "000300", testNow)
	require.NoError(t, err)
	assert.Len(t, candles, 260)
}

func TestFetchHistoryMissingCode(t *testing.T) {
	cfg := testEngineConfig(nil)
	e, _ := newTestEngine(t, cfg, &fakeFetcher{})

	_, err := e.fetchHistory(context.Background(), "512760", testNow)
	assert.ErrorIs(t, err, errors.ErrDataNotFound)
}

func TestRunCycleRespectsPresetMaxLegs(t *testing.T) {
	// Flat wide-range benchmark forces CHOP, whose preset holds one leg.
	cfg := testEngineConfig([]string{"512760", "512170", "512000"})

	benchmark := make([]models.Candle, 250)
	for i := range benchmark {
		benchmark[i] = models.Candle{
			Timestamp: testNow.AddDate(0, 0, i-250),
			Open:      100,
			High:      104,
			Low:       96,
			Close:     100,
			Volume:    100000,
		}
	}

	fetcher := &fakeFetcher{
		histories: map[string][]models.Candle{
			"000300": benchmark,
			"512760": history(1.0, 1.003, 150, 0),
			"512170": history(2.0, 1.001, 150, 2.1),
			"512000": history(3.0, 1.002, 150, 4.2),
		},
		quotes: map[string]models.IOPVQuote{"512760": {Code: "512760", IOPV: 1.5}},
	}

	e, _ := newTestEngine(t, cfg, fetcher)

	result, err := e.RunCycle(context.Background(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, models.RegimeChop, result.Regime.Regime)
	assert.LessOrEqual(t, len(result.Legs), 1)
}
