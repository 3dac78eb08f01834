package models

import "time"

// OrderRequest describes one desired order before pricing and idempotency
// checks are applied.
type OrderRequest struct {
	Code         string
	Name         string
	Side         OrderSide
	Quantity     int
	TargetWeight float64
	Window       ExecutionWindow
	Reason       string
}

// LimitOrder is a price-banded limit order tied to an execution window.
type LimitOrder struct {
	ID             string
	IdempotencyKey string
	Code           string
	Name           string
	Side           OrderSide
	Quantity       int
	TargetWeight   float64
	LimitPrice     float64
	BandLower      float64
	BandUpper      float64
	IOPVAtOrder    float64
	Window         ExecutionWindow
	PlacedAt       time.Time
	ExpireTime     time.Time
	Status         OrderStatus
	FilledQty      int
	FillPrice      float64
	FilledAt       *time.Time
	Reason         string
}

// Terminal reports whether the order is in a final state.
func (o *LimitOrder) Terminal() bool {
	return o.Status == OrderFilled || o.Status == OrderCancelled || o.Status == OrderExpired
}

// FillUpdate is one status change produced by a fill-status sweep.
type FillUpdate struct {
	OrderID   string
	Code      string
	Status    OrderStatus
	FillPrice float64
	FilledQty int
	Timestamp time.Time
}
