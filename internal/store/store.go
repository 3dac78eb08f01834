// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"momentum-lens/internal/models"
)

// RotationHistory is the persisted anti-churn state: the bounded trade
// journal plus its derived indices.
type RotationHistory struct {
	Trades       []models.TradeRecord
	EntryDates   map[string]time.Time
	LastRotation *time.Time
}

// Store defines the interface for data persistence.
type Store interface {
	// Rotation journal
	LoadRotationHistory(ctx context.Context) (*RotationHistory, error)
	AppendTradeRecord(ctx context.Context, rec models.TradeRecord, keep int) error
	SetEntryDate(ctx context.Context, code string, date time.Time) error
	ClearEntryDate(ctx context.Context, code string) error
	SetLastRotation(ctx context.Context, t time.Time) error

	// Orders. CheckAndInsertOrderKey is the transactional idempotency
	// primitive: it returns true exactly once per key. ReleaseOrderKey
	// frees a claimed key whose order row was never written, so the
	// request can be retried.
	CheckAndInsertOrderKey(ctx context.Context, key string, tradeDate time.Time) (bool, error)
	ReleaseOrderKey(ctx context.Context, key string) error
	SaveOrder(ctx context.Context, order *models.LimitOrder) error
	UpdateOrderFill(ctx context.Context, orderID string, status models.OrderStatus, fillPrice float64, filledQty int, filledAt time.Time) error
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
	PendingOrders(ctx context.Context, window models.ExecutionWindow) ([]models.LimitOrder, error)
	OrdersForDay(ctx context.Context, day time.Time) ([]models.LimitOrder, error)

	// Candle cache
	SaveCandles(ctx context.Context, code string, candles []models.Candle) error
	GetCandles(ctx context.Context, code string, from, to time.Time) ([]models.Candle, error)

	// Lifecycle
	Close() error
}
