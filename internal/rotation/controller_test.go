package rotation

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-lens/internal/config"
	"momentum-lens/internal/models"
	"momentum-lens/internal/store"
	"momentum-lens/pkg/utils"
)

func testConfig() config.AntiChurnConfig {
	return config.AntiChurnConfig{
		MinScoreImprovement: 0.02,
		MaxWeeklyRotations:  2,
		CooldownDays:        7,
		MinHoldingDays:      14,
	}
}

func newTestController(t *testing.T) (*Controller, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "rotation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c, err := NewController(context.Background(), testConfig(), st, zerolog.Nop())
	require.NoError(t, err)
	return c, st
}

// Wednesday afternoon, mid-week so the weekly window has room on both sides.
var asOf = time.Date(2026, 9, 2, 14, 0, 0, 0, utils.ChinaLocation)

func TestCanRotateScoreImprovement(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		proposed float64
		allowed  bool
	}{
		{"one percent improvement denied", 10.0, 10.1, false},
		{"twenty percent improvement allowed", 10.0, 12.0, true},
		{"just above threshold allowed", 10.0, 10.5, true},
		{"decline denied", 10.0, 9.0, false},
		{"zero current score is an initial entry", 0.0, 5.0, true},
		{"negative current score improving", -10.0, -9.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t)
			decision := c.CanRotate("512170", "512000", tt.current, tt.proposed, asOf)
			assert.Equal(t, tt.allowed, decision.Allowed)
			assert.NotEmpty(t, decision.Reasons)
		})
	}
}

func TestCanRotateWeeklyCap(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	// Two rotations already recorded this week.
	for i := 0; i < 2; i++ {
		rec := models.TradeRecord{
			Code:      fmt.Sprintf("51200%d", i),
			Action:    models.ActionRotate,
			Timestamp: asOf.AddDate(0, 0, -1),
		}
		require.NoError(t, c.RecordTrade(ctx, rec, ""))
	}

	decision := c.CanRotate("512170", "512000", 10.0, 15.0, asOf)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reasons[0], "weekly rotation cap")
}

func TestCanRotateWeeklyCapResetsOnMonday(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	// Rotations from last week do not count against this week's cap, and
	// nine days clears the seven-day cooldown.
	lastWeek := asOf.AddDate(0, 0, -9)
	for i := 0; i < 2; i++ {
		rec := models.TradeRecord{
			Code:      "512000",
			Action:    models.ActionRotate,
			Timestamp: lastWeek,
		}
		require.NoError(t, c.RecordTrade(ctx, rec, ""))
	}

	decision := c.CanRotate("512170", "515030", 10.0, 15.0, asOf)
	assert.True(t, decision.Allowed)
}

func TestCanRotateMinHolding(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	// Bought the current position three days ago.
	require.NoError(t, c.RecordTrade(ctx, models.TradeRecord{
		Code:      "512170",
		Action:    models.ActionBuy,
		Timestamp: asOf.AddDate(0, 0, -3),
	}, ""))

	decision := c.CanRotate("512170", "512000", 10.0, 15.0, asOf)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reasons[0], "minimum holding period")

	// A position held past the minimum passes.
	require.NoError(t, c.RecordTrade(ctx, models.TradeRecord{
		Code:      "512170",
		Action:    models.ActionBuy,
		Timestamp: asOf.AddDate(0, 0, -30),
	}, ""))
	decision = c.CanRotate("512170", "512000", 10.0, 15.0, asOf)
	assert.True(t, decision.Allowed)
}

func TestCanRotateSameGroupVeto(t *testing.T) {
	c, _ := newTestController(t)

	// Semiconductor to semiconductor equipment is vetoed regardless of score.
	decision := c.CanRotate("512760", "512480", 10.0, 50.0, asOf)
	assert.False(t, decision.Allowed)
	require.Len(t, decision.Reasons, 1)
	assert.Contains(t, decision.Reasons[0], "semiconductor")
}

func TestCanRotateAccumulatesAllReasons(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	// Violate every gate at once: thin improvement, weekly cap hit,
	// rotation yesterday, short holding, same sector.
	for i := 0; i < 2; i++ {
		require.NoError(t, c.RecordTrade(ctx, models.TradeRecord{
			Code:      "515030",
			Action:    models.ActionRotate,
			Timestamp: asOf.AddDate(0, 0, -1),
		}, ""))
	}
	require.NoError(t, c.RecordTrade(ctx, models.TradeRecord{
		Code:      "512760",
		Action:    models.ActionBuy,
		Timestamp: asOf.AddDate(0, 0, -3),
	}, ""))

	decision := c.CanRotate("512760", "512480", 10.0, 10.1, asOf)
	assert.False(t, decision.Allowed)
	assert.Len(t, decision.Reasons, 5)
}

func TestCanRotateAllowedCarriesSummary(t *testing.T) {
	c, _ := newTestController(t)

	decision := c.CanRotate("512170", "512000", 10.0, 15.0, asOf)
	require.True(t, decision.Allowed)
	require.Len(t, decision.Reasons, 1)
	assert.Contains(t, decision.Reasons[0], "all rotation gates passed")
}

func TestRecordTradePersistsAcrossControllers(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	rec := models.TradeRecord{
		Code:      "515030",
		Name:      "New Energy Vehicles",
		Action:    models.ActionRotate,
		Timestamp: asOf,
		OldScore:  8.0,
		NewScore:  12.0,
		Reason:    "momentum leadership change",
	}
	require.NoError(t, c.RecordTrade(ctx, rec, "512170"))

	entry, ok := c.EntryDate("515030")
	require.True(t, ok)
	assert.True(t, entry.Equal(asOf))
	_, ok = c.EntryDate("512170")
	assert.False(t, ok)
	require.NotNil(t, c.LastRotation())

	// A fresh controller against the same store sees the same state.
	reloaded, err := NewController(ctx, testConfig(), st, zerolog.Nop())
	require.NoError(t, err)

	entry, ok = reloaded.EntryDate("515030")
	require.True(t, ok)
	assert.True(t, entry.Equal(asOf))
	require.NotNil(t, reloaded.LastRotation())
	assert.True(t, reloaded.LastRotation().Equal(asOf))

	history := reloaded.History()
	require.Len(t, history, 1)
	assert.Equal(t, "515030", history[0].Code)
	assert.Equal(t, models.ActionRotate, history[0].Action)
	assert.Equal(t, "momentum leadership change", history[0].Reason)
}

func TestJournalBounded(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	for i := 0; i < 110; i++ {
		rec := models.TradeRecord{
			Code:      "512000",
			Action:    models.ActionBuy,
			Timestamp: asOf.Add(time.Duration(i) * time.Minute),
			NewScore:  float64(i),
		}
		require.NoError(t, c.RecordTrade(ctx, rec, ""))
	}

	history := c.History()
	require.Len(t, history, 100)
	// Oldest entries fell off; the newest survived.
	assert.InDelta(t, 10.0, history[0].NewScore, 1e-9)
	assert.InDelta(t, 109.0, history[len(history)-1].NewScore, 1e-9)

	persisted, err := st.LoadRotationHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted.Trades, 100)
}

func TestGroupOf(t *testing.T) {
	group, ok := GroupOf("512760")
	require.True(t, ok)
	assert.Equal(t, "semiconductor", group)

	_, ok = GroupOf("000300")
	assert.False(t, ok)

	group, same := SameGroup("512000", "512880")
	assert.True(t, same)
	assert.Equal(t, "securities", group)

	_, same = SameGroup("512760", "512170")
	assert.False(t, same)

	// A code outside every group never matches.
	_, same = SameGroup("510300", "512760")
	assert.False(t, same)
}
