package orders

import (
	"time"

	"momentum-lens/internal/models"
	"momentum-lens/pkg/utils"
)

// NextWindow returns the next execution window and its scheduled time.
// Before 10:30 the morning window applies; before 15:00 the afternoon
// window applies (a late order keeps the afternoon tag even after 14:00);
// after the close the next trading day's morning window applies.
func NextWindow(now time.Time) (models.ExecutionWindow, time.Time) {
	t := now.In(utils.ChinaLocation)

	if !utils.IsTradingDay(t) {
		next := utils.NextTradingDay(t)
		return models.WindowMorning, utils.AtTime(next, 10, 30)
	}

	morning := utils.AtTime(t, 10, 30)
	afternoon := utils.AtTime(t, 14, 0)
	close := utils.SessionClose(t)

	switch {
	case t.Before(morning):
		return models.WindowMorning, morning
	case t.Before(afternoon):
		return models.WindowAfternoon, afternoon
	case t.Before(close):
		return models.WindowAfternoon, afternoon
	default:
		next := utils.NextTradingDay(t)
		return models.WindowMorning, utils.AtTime(next, 10, 30)
	}
}

// ExpiryTime returns the order deadline: the current session close, or the
// next trading day's close once today's session has ended.
func ExpiryTime(now time.Time) time.Time {
	t := now.In(utils.ChinaLocation)

	if !utils.IsTradingDay(t) {
		return utils.SessionClose(utils.NextTradingDay(t))
	}

	close := utils.SessionClose(t)
	if !t.Before(close) {
		return utils.SessionClose(utils.NextTradingDay(t))
	}
	return close
}
