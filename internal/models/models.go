// Package models provides domain models for the momentum rotation tool.
package models

import (
	"time"
)

// Regime represents the classified market regime.
type Regime string

const (
	RegimeTrend   Regime = "TREND"
	RegimeChop    Regime = "CHOP"
	RegimeBear    Regime = "BEAR"
	RegimeNeutral Regime = "NEUTRAL"
	RegimeUnknown Regime = "UNKNOWN"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus represents the lifecycle state of a limit order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderExpired   OrderStatus = "EXPIRED"
)

// TradeAction represents the action recorded in the rotation journal.
type TradeAction string

const (
	ActionBuy    TradeAction = "BUY"
	ActionSell   TradeAction = "SELL"
	ActionRotate TradeAction = "ROTATE"
)

// ExecutionWindow is one of the two fixed daily execution slots.
type ExecutionWindow string

const (
	WindowMorning   ExecutionWindow = "10:30"
	WindowAfternoon ExecutionWindow = "14:00"
)

// Candle represents OHLCV data for one trading day.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Valid reports whether the candle satisfies basic OHLC constraints.
func (c Candle) Valid() bool {
	if c.Volume < 0 {
		return false
	}
	if c.High < c.Open || c.High < c.Close || c.High < c.Low {
		return false
	}
	if c.Low > c.Open || c.Low > c.Close {
		return false
	}
	return true
}

// IOPVQuote represents a live IOPV/premium quote for an ETF.
type IOPVQuote struct {
	Code            string
	IOPV            float64
	PremiumDiscount float64
	LastPrice       float64
	Timestamp       time.Time
}

// MomentumScore is the scored momentum of one candidate.
type MomentumScore struct {
	Code  string
	Name  string
	R60   float64
	R120  float64
	Score float64
	Rank  int
}

// Holding represents a current portfolio position.
type Holding struct {
	Code         string
	Name         string
	EntryDate    time.Time
	Weight       float64
	ScoreAtEntry float64
}

// RegimeState is the result of one market-regime evaluation.
type RegimeState struct {
	Regime         Regime
	TrendConfirmed bool
	ChopConditions []string
	MA200          float64
	MA200Distance  float64 // percent distance of close from MA200
	MA200Slope     float64 // 5-day slope of MA200 in percent
	ATRRatio       float64 // ATR(20) / close
	BandDays       int     // days in trailing 30 within +/-3% of MA200
	Yearline       YearlineState
	Timestamp      time.Time
}

// YearlineState mirrors the unlock state machine of the yearline monitor.
type YearlineState struct {
	AboveCount int
	Unlocked   bool
	UnlockDate *time.Time
}

// RotationDecision is the structured outcome of the anti-churn gate.
type RotationDecision struct {
	Allowed bool
	Reasons []string
}

// TradeRecord is one entry of the bounded rotation journal.
type TradeRecord struct {
	Code      string
	Name      string
	Action    TradeAction
	Timestamp time.Time
	OldScore  float64
	NewScore  float64
	Reason    string
}
