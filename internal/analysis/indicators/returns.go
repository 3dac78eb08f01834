package indicators

import (
	"math"

	"momentum-lens/internal/errors"
	"momentum-lens/internal/models"
)

// PercentReturn computes the percent return over the trailing n trading
// observations: (close[t] / close[t-n] - 1) * 100. It needs n+1 closes;
// with fewer the value is undefined and ErrInsufficientData is returned.
func PercentReturn(candles []models.Candle, n int) (float64, error) {
	if n <= 0 {
		return 0, errors.ErrInvalidPeriod
	}
	if len(candles) < n+1 {
		return 0, errors.ErrInsufficientData
	}
	last := candles[len(candles)-1].Close
	base := candles[len(candles)-1-n].Close
	if base <= 0 {
		return 0, errors.ErrMalformedSeries
	}
	return (last/base - 1) * 100, nil
}

// LogReturns computes daily log returns over the trailing window candles.
// The result has len(window)-1 entries.
func LogReturns(candles []models.Candle, window int) []float64 {
	if window > len(candles) {
		window = len(candles)
	}
	tail := candles[len(candles)-window:]
	if len(tail) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(tail)-1)
	for i := 1; i < len(tail); i++ {
		prev := tail[i-1].Close
		cur := tail[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	return returns
}
