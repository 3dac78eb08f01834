// Package engine orchestrates one decision cycle: regime classification,
// momentum ranking, correlation substitution, the anti-churn gate, and
// order generation, in that order.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"momentum-lens/internal/analysis/momentum"
	"momentum-lens/internal/config"
	"momentum-lens/internal/data"
	"momentum-lens/internal/errors"
	"momentum-lens/internal/models"
	"momentum-lens/internal/orders"
	"momentum-lens/internal/regime"
	"momentum-lens/internal/rotation"
	"momentum-lens/internal/store"
	"momentum-lens/pkg/utils"
)

// historyDays is the calendar lookback fetched per cycle; wide enough for
// 250 trading observations.
const historyDays = 400

// boardLot is the CN exchange round lot.
const boardLot = 100

// minCachedCandles is the observation depth a cached history must reach
// before it can satisfy a cycle without a refetch.
const minCachedCandles = 250

// Engine wires the decision pipeline together. All collaborators are
// injected; none are global.
type Engine struct {
	cfg        *config.Config
	fetcher    data.Fetcher
	store      store.Store
	ranker     *momentum.Ranker
	gate       *momentum.CorrelationGate
	analyzer   *regime.Analyzer
	controller *rotation.Controller
	orders     *orders.Manager
	clock      func() time.Time
	logger     zerolog.Logger
}

// New creates an engine from its collaborators. clock may be nil.
func New(cfg *config.Config, fetcher data.Fetcher, st store.Store, controller *rotation.Controller, manager *orders.Manager, clock func() time.Time, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = func() time.Time { return time.Now().In(utils.ChinaLocation) }
	}
	return &Engine{
		cfg:        cfg,
		fetcher:    fetcher,
		store:      st,
		ranker:     momentum.NewRanker(nil, logger),
		gate:       momentum.NewCorrelationGate(cfg.Strategy.MaxCorrelation, cfg.Strategy.CorrWindowDays, cfg.Strategy.CorrMinObs, logger),
		analyzer:   regime.NewAnalyzer(logger),
		controller: controller,
		orders:     manager,
		clock:      clock,
		logger:     logger,
	}
}

// RotationPlan names the concrete rotation a cycle proposes.
// OutgoingWeight is the outgoing holding's portfolio weight, zero when the
// caller did not supply one.
type RotationPlan struct {
	Outgoing       string
	OutgoingWeight float64
	Incoming       string
	OldScore       float64
	NewScore       float64
}

// CycleResult collects everything one decision cycle produced.
type CycleResult struct {
	Regime   models.RegimeState
	Ranked   []models.MomentumScore
	Legs     []models.MomentumScore
	Decision models.RotationDecision
	Plan     *RotationPlan
	Orders   []models.LimitOrder
}

// AssessMarketRegime fetches benchmark history plus candidate scores and
// classifies the regime. Upstream failure degrades to UNKNOWN rather than
// an error.
func (e *Engine) AssessMarketRegime(ctx context.Context) (models.RegimeState, error) {
	now := e.clock()

	benchmark, err := e.fetchHistory(ctx, e.cfg.Strategy.BenchmarkCode, now)
	if err != nil {
		e.logger.Error().Err(err).Msg("benchmark history unavailable, regime UNKNOWN")
		return models.RegimeState{Regime: models.RegimeUnknown, Timestamp: now}, nil
	}

	histories, err := e.fetchHistories(ctx, e.cfg.Strategy.Candidates, now)
	if err != nil {
		e.logger.Warn().Err(err).Msg("candidate histories unavailable, dispersion not evaluated")
	}

	ranked := e.ranker.Rank(histories)
	return e.analyzer.Assess(benchmark, topN(ranked, 5), now), nil
}

// RankCandidates scores and ranks the given price histories.
func (e *Engine) RankCandidates(histories map[string][]models.Candle) []models.MomentumScore {
	return e.ranker.Rank(histories)
}

// SelectRotation compares the weakest current holding against the best
// non-held candidate and runs the anti-churn gate. With no holdings the
// rotation concept does not apply and the decision is an allowed initial
// entry.
func (e *Engine) SelectRotation(holdings []models.Holding, ranked []models.MomentumScore) (models.RotationDecision, *RotationPlan) {
	now := e.clock()

	if len(ranked) == 0 {
		return models.RotationDecision{
			Allowed: false,
			Reasons: []string{"no qualified candidates"},
		}, nil
	}

	if len(holdings) == 0 {
		return models.RotationDecision{
			Allowed: true,
			Reasons: []string{"no current holdings, initial entry"},
		}, &RotationPlan{Incoming: ranked[0].Code, NewScore: ranked[0].Score}
	}

	scoreByCode := make(map[string]float64, len(ranked))
	held := make(map[string]bool, len(holdings))
	for _, s := range ranked {
		scoreByCode[s.Code] = s.Score
	}
	for _, h := range holdings {
		held[h.Code] = true
	}

	// Weakest holding by current score; a holding absent from the ranking
	// scores zero, which the improvement gate treats as infinite upside.
	outgoing := holdings[0]
	outgoingScore := scoreByCode[outgoing.Code]
	for _, h := range holdings[1:] {
		if scoreByCode[h.Code] < outgoingScore {
			outgoing = h
			outgoingScore = scoreByCode[h.Code]
		}
	}

	var incoming *models.MomentumScore
	for i := range ranked {
		if !held[ranked[i].Code] {
			incoming = &ranked[i]
			break
		}
	}
	if incoming == nil {
		return models.RotationDecision{
			Allowed: false,
			Reasons: []string{"all qualified candidates already held"},
		}, nil
	}

	decision := e.controller.CanRotate(outgoing.Code, incoming.Code, outgoingScore, incoming.Score, now)
	plan := &RotationPlan{
		Outgoing:       outgoing.Code,
		OutgoingWeight: outgoing.Weight,
		Incoming:       incoming.Code,
		OldScore:       outgoingScore,
		NewScore:       incoming.Score,
	}
	return decision, plan
}

// GenerateLimitOrders prices and places the given order requests.
func (e *Engine) GenerateLimitOrders(ctx context.Context, requests []models.OrderRequest, prices map[string]float64, iopv map[string]models.IOPVQuote) ([]models.LimitOrder, error) {
	return e.orders.GenerateLimitOrders(ctx, requests, prices, iopv)
}

// CheckFillStatus sweeps pending orders of a window.
func (e *Engine) CheckFillStatus(ctx context.Context, window models.ExecutionWindow) ([]models.FillUpdate, error) {
	return e.orders.CheckFillStatus(ctx, window)
}

// RunCycle executes one full decision cycle against the given holdings.
// When execute is false the cycle stops after the gate decision and places
// no orders.
func (e *Engine) RunCycle(ctx context.Context, holdings []models.Holding, execute bool) (*CycleResult, error) {
	now := e.clock()
	result := &CycleResult{}

	// Regime first: it parameterizes everything downstream.
	state, err := e.AssessMarketRegime(ctx)
	if err != nil {
		return nil, err
	}
	result.Regime = state

	histories, err := e.fetchHistories(ctx, e.cfg.Strategy.Candidates, now)
	if err != nil {
		return nil, err
	}

	result.Ranked = e.ranker.Rank(histories)
	qualified := topN(result.Ranked, e.cfg.Strategy.TopN)
	result.Legs = e.gate.SelectLegs(qualified, histories)

	preset := e.cfg.Presets.ForRegime(state.Regime)
	if len(result.Legs) > preset.MaxLegs {
		result.Legs = result.Legs[:preset.MaxLegs]
	}

	decision, plan := e.SelectRotation(holdings, result.Legs)
	result.Decision = decision
	result.Plan = plan

	if !decision.Allowed || plan == nil || !execute {
		return result, nil
	}

	quotes, err := e.fetcher.IOPVQuotes(ctx, []string{plan.Incoming, plan.Outgoing})
	if err != nil {
		e.logger.Error().Err(err).Msg("IOPV source unavailable, cycle ends without orders")
		return result, nil
	}
	prices := lastCloses(histories)

	requests := e.buildRequests(plan, preset, prices, quotes)
	placed, err := e.orders.GenerateLimitOrders(ctx, requests, prices, quotes)
	if err != nil {
		return result, err
	}
	result.Orders = placed

	if len(placed) > 0 {
		action := models.ActionBuy
		outgoing := ""
		if plan.Outgoing != "" {
			action = models.ActionRotate
			outgoing = plan.Outgoing
		}
		rec := models.TradeRecord{
			Code:      plan.Incoming,
			Action:    action,
			Timestamp: now,
			OldScore:  plan.OldScore,
			NewScore:  plan.NewScore,
			Reason:    firstReason(decision.Reasons),
		}
		if err := e.controller.RecordTrade(ctx, rec, outgoing); err != nil {
			return result, err
		}
	}

	return result, nil
}

// buildRequests turns an approved plan into order requests: sell the
// outgoing position at its actual held weight, buy the incoming one at the
// preset's first leg weight.
func (e *Engine) buildRequests(plan *RotationPlan, preset config.Preset, prices map[string]float64, quotes map[string]models.IOPVQuote) []models.OrderRequest {
	var requests []models.OrderRequest

	weight := 0.0
	if len(preset.LegWeights) > 0 {
		weight = preset.LegWeights[0]
	}

	if plan.Outgoing != "" {
		sellWeight := plan.OutgoingWeight
		if sellWeight <= 0 {
			sellWeight = weight
		}
		qty := e.lotQuantity(plan.Outgoing, sellWeight, prices, quotes)
		if qty > 0 {
			requests = append(requests, models.OrderRequest{
				Code:         plan.Outgoing,
				Side:         models.OrderSideSell,
				Quantity:     qty,
				TargetWeight: 0,
				Reason:       fmt.Sprintf("rotate out, score %.2f", plan.OldScore),
			})
		}
	}

	qty := e.lotQuantity(plan.Incoming, weight, prices, quotes)
	if qty > 0 {
		requests = append(requests, models.OrderRequest{
			Code:         plan.Incoming,
			Side:         models.OrderSideBuy,
			Quantity:     qty,
			TargetWeight: weight,
			Reason:       fmt.Sprintf("rotate in, score %.2f", plan.NewScore),
		})
	}

	return requests
}

// lotQuantity sizes an order from target weight and portfolio value,
// rounded down to the exchange board lot.
func (e *Engine) lotQuantity(code string, weight float64, prices map[string]float64, quotes map[string]models.IOPVQuote) int {
	price := prices[code]
	if q, ok := quotes[code]; ok && q.IOPV > 0 {
		price = q.IOPV
	}
	if price <= 0 || weight <= 0 {
		return 0
	}

	raw := e.cfg.Strategy.PortfolioValue * weight / price
	return int(math.Floor(raw/boardLot)) * boardLot
}

// fetchHistory loads one code's history, preferring the candle cache. The
// cache is used only when it is both fresh and deep enough for the full
// lookback; a shallow cache left by an earlier short-range fetch forces a
// refetch.
func (e *Engine) fetchHistory(ctx context.Context, code string, now time.Time) ([]models.Candle, error) {
	start := now.AddDate(0, 0, -historyDays)

	cached, err := e.store.GetCandles(ctx, code, start, now)
	if err == nil && len(cached) >= minCachedCandles && isFresh(cached, now) {
		return cached, nil
	}

	fetched, err := e.fetcher.FetchPrices(ctx, []string{code}, start, now)
	if err != nil {
		return nil, err
	}
	candles, ok := fetched[code]
	if !ok || len(candles) == 0 {
		return nil, fmt.Errorf("no history for %s: %w", code, errors.ErrDataNotFound)
	}

	if err := e.store.SaveCandles(ctx, code, candles); err != nil {
		e.logger.Warn().Str("code", code).Err(err).Msg("candle cache write failed")
	}
	return candles, nil
}

// fetchHistories loads each candidate's history, omitting codes with no
// data.
func (e *Engine) fetchHistories(ctx context.Context, codes []string, now time.Time) (map[string][]models.Candle, error) {
	result := make(map[string][]models.Candle, len(codes))
	for _, code := range codes {
		candles, err := e.fetchHistory(ctx, code, now)
		if err != nil {
			e.logger.Warn().Str("code", code).Err(err).Msg("history unavailable, code excluded")
			continue
		}
		result[code] = candles
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no candidate histories available: %w", errors.ErrUpstreamUnavailable)
	}
	return result, nil
}

// isFresh reports whether the cache covers the most recent completed
// trading day.
func isFresh(candles []models.Candle, now time.Time) bool {
	last := candles[len(candles)-1].Timestamp
	cutoff := now.AddDate(0, 0, -4) // tolerate weekends and one holiday
	return last.After(cutoff)
}

func topN(scores []models.MomentumScore, n int) []models.MomentumScore {
	if len(scores) > n {
		return scores[:n]
	}
	return scores
}

func lastCloses(histories map[string][]models.Candle) map[string]float64 {
	prices := make(map[string]float64, len(histories))
	for code, candles := range histories {
		if len(candles) > 0 {
			prices[code] = candles[len(candles)-1].Close
		}
	}
	return prices
}

func firstReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return reasons[0]
}
