package utils

import (
	"time"
)

// ChinaLocation is the timezone for mainland Chinese markets.
var ChinaLocation *time.Location

func init() {
	var err error
	ChinaLocation, err = time.LoadLocation("Asia/Shanghai")
	if err != nil {
		ChinaLocation = time.FixedZone("CST", 8*60*60)
	}
}

// MarketStatus represents the current market session state.
type MarketStatus string

const (
	MarketPreOpen    MarketStatus = "PRE_OPEN"
	MarketOpen       MarketStatus = "OPEN"
	MarketLunchBreak MarketStatus = "LUNCH_BREAK"
	MarketClosed     MarketStatus = "CLOSED"
)

// GetMarketStatus returns the market status at the given time.
func GetMarketStatus(t time.Time) MarketStatus {
	now := t.In(ChinaLocation)

	if !IsTradingDay(now) {
		return MarketClosed
	}

	minutes := now.Hour()*60 + now.Minute()

	// Pre-open auction: 9:15 - 9:30
	if minutes >= 555 && minutes < 570 {
		return MarketPreOpen
	}
	// Morning session: 9:30 - 11:30
	if minutes >= 570 && minutes < 690 {
		return MarketOpen
	}
	// Lunch break: 11:30 - 13:00
	if minutes >= 690 && minutes < 780 {
		return MarketLunchBreak
	}
	// Afternoon session: 13:00 - 15:00
	if minutes >= 780 && minutes < 900 {
		return MarketOpen
	}

	return MarketClosed
}

// IsMarketOpen returns true if the market is open for continuous trading.
func IsMarketOpen(t time.Time) bool {
	return GetMarketStatus(t) == MarketOpen
}

// IsTradingDay returns true if the given date is a trading day.
// Exchange holidays are not modeled; weekends are skipped.
func IsTradingDay(t time.Time) bool {
	wd := t.In(ChinaLocation).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// NextTradingDay returns the next trading day after the given date.
func NextTradingDay(t time.Time) time.Time {
	d := t.In(ChinaLocation).AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// SessionClose returns the session close (15:00) on the given day.
func SessionClose(t time.Time) time.Time {
	d := t.In(ChinaLocation)
	return time.Date(d.Year(), d.Month(), d.Day(), 15, 0, 0, 0, ChinaLocation)
}

// AtTime returns the given day at hh:mm in market time.
func AtTime(t time.Time, hour, minute int) time.Time {
	d := t.In(ChinaLocation)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, ChinaLocation)
}

// MostRecentMonday returns Monday 00:00 of the week containing t.
func MostRecentMonday(t time.Time) time.Time {
	d := t.In(ChinaLocation)
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, ChinaLocation)
}
