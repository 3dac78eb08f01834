// Package momentum provides momentum scoring, ranking, and the
// correlation-based substitution gate.
package momentum

import (
	"sort"

	"github.com/rs/zerolog"

	"momentum-lens/internal/analysis/indicators"
	"momentum-lens/internal/models"
)

// Fixed scoring weights. These define the strategy and are deliberately
// not configurable.
const (
	weightR60  = 0.6
	weightR120 = 0.4

	periodShort = 60
	periodLong  = 120
)

// Ranker scores and ranks a candidate pool by the fixed momentum formula.
type Ranker struct {
	names  map[string]string
	logger zerolog.Logger
}

// NewRanker creates a new momentum ranker. names maps ETF codes to display
// names and may be nil.
func NewRanker(names map[string]string, logger zerolog.Logger) *Ranker {
	return &Ranker{names: names, logger: logger}
}

// Score combines the 60-day and 120-day returns into the momentum score.
func Score(r60, r120 float64) float64 {
	return weightR60*r60 + weightR120*r120
}

// Rank scores every candidate with sufficient history and returns them in
// descending score order with 1-based ranks. Candidates with fewer than 121
// observations are excluded rather than zero-filled. Equal scores order by
// ascending code so ranking is deterministic.
func (r *Ranker) Rank(histories map[string][]models.Candle) []models.MomentumScore {
	scores := make([]models.MomentumScore, 0, len(histories))

	for code, candles := range histories {
		r60, err := indicators.PercentReturn(candles, periodShort)
		if err != nil {
			r.logger.Debug().Str("code", code).Err(err).Msg("excluded from ranking")
			continue
		}
		r120, err := indicators.PercentReturn(candles, periodLong)
		if err != nil {
			r.logger.Debug().Str("code", code).Err(err).Msg("excluded from ranking")
			continue
		}

		scores = append(scores, models.MomentumScore{
			Code:  code,
			Name:  r.names[code],
			R60:   r60,
			R120:  r120,
			Score: Score(r60, r120),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Code < scores[j].Code
	})

	for i := range scores {
		scores[i].Rank = i + 1
	}

	return scores
}
