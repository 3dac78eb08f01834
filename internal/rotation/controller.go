package rotation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"momentum-lens/internal/config"
	"momentum-lens/internal/logging"
	"momentum-lens/internal/models"
	"momentum-lens/internal/store"
	"momentum-lens/pkg/utils"
)

// historyCap bounds the in-memory and persisted trade journal.
const historyCap = 100

// Controller is the stateful anti-churn gate. It owns the bounded trade
// journal, the per-code entry dates, and the last rotation date, all
// loaded from and persisted through the store.
type Controller struct {
	cfg    config.AntiChurnConfig
	store  store.Store
	logger zerolog.Logger

	trades       []models.TradeRecord
	entryDates   map[string]time.Time
	lastRotation *time.Time
}

// NewController loads persisted rotation history and returns a controller.
func NewController(ctx context.Context, cfg config.AntiChurnConfig, st store.Store, logger zerolog.Logger) (*Controller, error) {
	history, err := st.LoadRotationHistory(ctx)
	if err != nil {
		return nil, err
	}

	entryDates := history.EntryDates
	if entryDates == nil {
		entryDates = make(map[string]time.Time)
	}

	return &Controller{
		cfg:          cfg,
		store:        st,
		logger:       logger,
		trades:       history.Trades,
		entryDates:   entryDates,
		lastRotation: history.LastRotation,
	}, nil
}

// CanRotate evaluates every anti-churn gate and returns the combined
// decision. All gates are always evaluated so a denial carries every
// failing reason, not just the first.
func (c *Controller) CanRotate(currentCode, candidateCode string, currentScore, newScore float64, asOf time.Time) models.RotationDecision {
	var reasons []string

	// 1. Score improvement. A zero current score counts as infinite
	// improvement.
	if currentScore != 0 {
		improvement := (newScore - currentScore) / math.Abs(currentScore)
		if improvement < c.cfg.MinScoreImprovement {
			reasons = append(reasons, fmt.Sprintf(
				"score improvement %.2f%% below required %.2f%%",
				improvement*100, c.cfg.MinScoreImprovement*100))
		}
	}

	// 2. Weekly rotation cap since Monday 00:00.
	weekStart := utils.MostRecentMonday(asOf)
	rotations := c.rotationsSince(weekStart)
	if rotations >= c.cfg.MaxWeeklyRotations {
		reasons = append(reasons, fmt.Sprintf(
			"weekly rotation cap reached (%d of %d since %s)",
			rotations, c.cfg.MaxWeeklyRotations, weekStart.Format("2006-01-02")))
	}

	// 3. Cooldown since the last rotation. No prior rotation passes.
	if c.lastRotation != nil {
		days := int(asOf.Sub(*c.lastRotation).Hours() / 24)
		if days < c.cfg.CooldownDays {
			reasons = append(reasons, fmt.Sprintf(
				"cooldown active: %d of %d days since last rotation",
				days, c.cfg.CooldownDays))
		}
	}

	// 4. Minimum holding period for the outgoing code. Unknown entry
	// passes.
	if entry, ok := c.entryDates[currentCode]; ok {
		days := int(asOf.Sub(entry).Hours() / 24)
		if days < c.cfg.MinHoldingDays {
			reasons = append(reasons, fmt.Sprintf(
				"minimum holding period not met for %s: held %d of %d days",
				currentCode, days, c.cfg.MinHoldingDays))
		}
	}

	// 5. Same-sector veto, regardless of score.
	if group, same := SameGroup(currentCode, candidateCode); same {
		reasons = append(reasons, fmt.Sprintf(
			"%s and %s are both in sector group %q", currentCode, candidateCode, group))
	}

	decision := models.RotationDecision{
		Allowed: len(reasons) == 0,
		Reasons: reasons,
	}
	if decision.Allowed {
		decision.Reasons = []string{fmt.Sprintf(
			"score %.2f -> %.2f, all rotation gates passed", currentScore, newScore)}
	}

	logging.LogRotation(c.logger, currentCode, candidateCode, decision.Allowed, decision.Reasons)

	return decision
}

// rotationsSince counts ROTATE records at or after the given time.
func (c *Controller) rotationsSince(t time.Time) int {
	count := 0
	for _, rec := range c.trades {
		if rec.Action == models.ActionRotate && !rec.Timestamp.Before(t) {
			count++
		}
	}
	return count
}

// RecordTrade appends a record to the journal, updates the derived indices
// (last rotation date, entry dates), and persists through the store. For a
// ROTATE, outgoingCode names the position being rotated out.
func (c *Controller) RecordTrade(ctx context.Context, rec models.TradeRecord, outgoingCode string) error {
	c.trades = append(c.trades, rec)
	if len(c.trades) > historyCap {
		c.trades = c.trades[len(c.trades)-historyCap:]
	}

	if err := c.store.AppendTradeRecord(ctx, rec, historyCap); err != nil {
		return err
	}

	switch rec.Action {
	case models.ActionBuy:
		c.entryDates[rec.Code] = rec.Timestamp
		if err := c.store.SetEntryDate(ctx, rec.Code, rec.Timestamp); err != nil {
			return err
		}
	case models.ActionSell:
		delete(c.entryDates, rec.Code)
		if err := c.store.ClearEntryDate(ctx, rec.Code); err != nil {
			return err
		}
	case models.ActionRotate:
		t := rec.Timestamp
		c.lastRotation = &t
		if err := c.store.SetLastRotation(ctx, t); err != nil {
			return err
		}
		c.entryDates[rec.Code] = rec.Timestamp
		if err := c.store.SetEntryDate(ctx, rec.Code, rec.Timestamp); err != nil {
			return err
		}
		if outgoingCode != "" {
			delete(c.entryDates, outgoingCode)
			if err := c.store.ClearEntryDate(ctx, outgoingCode); err != nil {
				return err
			}
		}
	}

	return nil
}

// EntryDate returns the recorded entry date for a code.
func (c *Controller) EntryDate(code string) (time.Time, bool) {
	t, ok := c.entryDates[code]
	return t, ok
}

// LastRotation returns the date of the most recent rotation.
func (c *Controller) LastRotation() *time.Time {
	if c.lastRotation == nil {
		return nil
	}
	t := *c.lastRotation
	return &t
}

// History returns a copy of the in-memory journal.
func (c *Controller) History() []models.TradeRecord {
	out := make([]models.TradeRecord, len(c.trades))
	copy(out, c.trades)
	return out
}
