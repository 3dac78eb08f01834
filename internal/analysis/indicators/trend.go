package indicators

import (
	"fmt"

	"momentum-lens/internal/errors"
	"momentum-lens/internal/models"
)

// SMA calculates Simple Moving Average.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

// Calculate returns the moving-average series. Positions before the first
// full period are zero.
func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, errors.ErrInvalidPeriod
	}
	if len(candles) < s.period {
		return nil, errors.ErrInsufficientData
	}

	result := make([]float64, len(candles))
	closes := ClosePrices(candles)

	for i := s.period - 1; i < len(candles); i++ {
		result[i] = mean(closes[i-s.period+1 : i+1])
	}

	return result, nil
}

// SlopePct returns the percent change of a series over the trailing n steps,
// evaluated at the final observation.
func SlopePct(series []float64, n int) (float64, error) {
	if n <= 0 {
		return 0, errors.ErrInvalidPeriod
	}
	if len(series) < n+1 {
		return 0, errors.ErrInsufficientData
	}
	last := series[len(series)-1]
	prev := series[len(series)-1-n]
	if prev == 0 {
		return 0, errors.ErrInsufficientData
	}
	return (last/prev - 1) * 100, nil
}
