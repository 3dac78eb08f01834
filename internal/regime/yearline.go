// Package regime provides the yearline state machine and market-regime
// classification.
package regime

import (
	"time"

	"momentum-lens/internal/models"
)

const (
	unlockStreakDays   = 5
	unlockDistancePct  = 0.01
	fallbackWindowDays = 3
	fallbackLevel      = 0.99
)

// YearlineMonitor tracks consecutive sessions above the 200-day moving
// average and the unlock/fallback transitions around it.
type YearlineMonitor struct {
	aboveCount int
	unlocked   bool
	unlockDate *time.Time
}

// NewYearlineMonitor creates a monitor in the locked state.
func NewYearlineMonitor() *YearlineMonitor {
	return &YearlineMonitor{}
}

// CheckUnlock feeds one session's close and MA200. A close above the
// yearline extends the streak; a close at or below it resets the streak.
// The unlock fires only on the transition where the streak reaches 5
// sessions and the same day's distance is at least +1%.
func (m *YearlineMonitor) CheckUnlock(price, ma200 float64, asOf time.Time) bool {
	if ma200 <= 0 {
		return false
	}

	if price <= ma200 {
		m.aboveCount = 0
		return false
	}

	m.aboveCount++

	if m.unlocked {
		return false
	}
	if m.aboveCount < unlockStreakDays {
		return false
	}
	if price/ma200-1 < unlockDistancePct {
		return false
	}

	m.unlocked = true
	t := asOf
	m.unlockDate = &t
	return true
}

// CheckFallback clears a fresh unlock when price falls back to 1% below the
// yearline within 3 calendar days of the unlock. Outside that window, or
// while locked, it is a no-op.
func (m *YearlineMonitor) CheckFallback(price, ma200 float64, asOf time.Time) bool {
	if !m.unlocked || m.unlockDate == nil || ma200 <= 0 {
		return false
	}
	if asOf.Sub(*m.unlockDate) > fallbackWindowDays*24*time.Hour {
		return false
	}
	if price > ma200*fallbackLevel {
		return false
	}

	m.unlocked = false
	m.unlockDate = nil
	m.aboveCount = 0
	return true
}

// State returns a snapshot of the monitor state.
func (m *YearlineMonitor) State() models.YearlineState {
	var unlockDate *time.Time
	if m.unlockDate != nil {
		t := *m.unlockDate
		unlockDate = &t
	}
	return models.YearlineState{
		AboveCount: m.aboveCount,
		Unlocked:   m.unlocked,
		UnlockDate: unlockDate,
	}
}
