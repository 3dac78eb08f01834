package momentum

import (
	"github.com/rs/zerolog"

	"momentum-lens/internal/analysis/indicators"
	"momentum-lens/internal/models"
)

// CorrelationGate substitutes the second leg of a ranked list when it is
// too correlated with the first.
type CorrelationGate struct {
	maxCorrelation float64
	windowDays     int
	minObs         int
	logger         zerolog.Logger
}

// NewCorrelationGate creates a correlation gate with the given threshold,
// rolling window, and minimum shared observations per pair.
func NewCorrelationGate(maxCorrelation float64, windowDays, minObs int, logger zerolog.Logger) *CorrelationGate {
	return &CorrelationGate{
		maxCorrelation: maxCorrelation,
		windowDays:     windowDays,
		minObs:         minObs,
		logger:         logger,
	}
}

// SelectLegs walks the ranking and picks up to two legs. The top candidate
// is always the first leg. For the second leg the gate takes the first
// lower-ranked candidate whose correlation with the first leg is known and
// within the threshold; a pair whose correlation cannot be computed is
// skipped rather than admitted. With no eligible substitute the result is a
// single leg.
func (g *CorrelationGate) SelectLegs(ranked []models.MomentumScore, histories map[string][]models.Candle) []models.MomentumScore {
	if len(ranked) == 0 {
		return nil
	}

	legs := []models.MomentumScore{ranked[0]}
	if len(ranked) == 1 {
		return legs
	}

	firstReturns := indicators.LogReturns(histories[ranked[0].Code], g.windowDays)

	for _, candidate := range ranked[1:] {
		corr, ok := indicators.Correlation(firstReturns, indicators.LogReturns(histories[candidate.Code], g.windowDays), g.minObs)
		if !ok {
			// Unknown correlation is treated as over the threshold.
			g.logger.Warn().
				Str("first_leg", ranked[0].Code).
				Str("candidate", candidate.Code).
				Msg("correlation unavailable, candidate skipped as second leg")
			continue
		}
		if corr > g.maxCorrelation {
			g.logger.Debug().
				Str("first_leg", ranked[0].Code).
				Str("candidate", candidate.Code).
				Float64("correlation", corr).
				Msg("candidate over correlation threshold")
			continue
		}

		legs = append(legs, candidate)
		return legs
	}

	g.logger.Info().
		Str("first_leg", ranked[0].Code).
		Msg("no second leg satisfies correlation constraint, single-leg mode")
	return legs
}
