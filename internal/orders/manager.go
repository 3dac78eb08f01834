package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"momentum-lens/internal/errors"
	"momentum-lens/internal/logging"
	"momentum-lens/internal/models"
	"momentum-lens/internal/store"
	"momentum-lens/pkg/utils"
)

// IOPV band half-width: orders are banded to +/-0.1% of IOPV and priced to
// the less advantageous edge so they execute inside the band instead of
// chasing price.
const (
	bandLowerFactor = 0.999
	bandUpperFactor = 1.001
)

// Manager generates idempotent, IOPV-banded limit orders and sweeps their
// fill status.
type Manager struct {
	store   store.Store
	fees    *FeeModel
	adapter ExecutionAdapter
	clock   func() time.Time
	logger  zerolog.Logger
}

// NewManager creates an order manager. clock may be nil, in which case
// time.Now in market time is used.
func NewManager(st store.Store, fees *FeeModel, adapter ExecutionAdapter, clock func() time.Time, logger zerolog.Logger) *Manager {
	if clock == nil {
		clock = func() time.Time { return time.Now().In(utils.ChinaLocation) }
	}
	return &Manager{
		store:   st,
		fees:    fees,
		adapter: adapter,
		clock:   clock,
		logger:  logger,
	}
}

// GenerateLimitOrders prices each request against its IOPV band and
// persists the resulting orders. Duplicate idempotency keys and invalid
// quotes skip the request without failing the batch.
func (m *Manager) GenerateLimitOrders(ctx context.Context, requests []models.OrderRequest, prices map[string]float64, iopv map[string]models.IOPVQuote) ([]models.LimitOrder, error) {
	now := m.clock()
	window, _ := NextWindow(now)
	expiry := ExpiryTime(now)
	tradeDate := now.In(utils.ChinaLocation)

	var placed []models.LimitOrder

	for _, req := range requests {
		log := logging.WithCode(m.logger, req.Code)

		// Prefer IOPV; fall back to market price. Both invalid is a data
		// error for this request only.
		refPrice, iopvAtOrder := m.referencePrice(req.Code, prices, iopv)
		if refPrice <= 0 {
			log.Error().
				Err(errors.ErrInvalidQuote).
				Str("side", string(req.Side)).
				Msg("no valid IOPV or market price, order request skipped")
			continue
		}

		reqWindow := req.Window
		if reqWindow == "" {
			reqWindow = window
		}

		key := IdempotencyKey(tradeDate, req.Code, req.TargetWeight, reqWindow)
		inserted, err := m.store.CheckAndInsertOrderKey(ctx, key, tradeDate)
		if err != nil {
			return placed, err
		}
		if !inserted {
			log.Info().
				Err(errors.ErrDuplicateOrder).
				Str("idempotency_key", key).
				Msg("duplicate order request skipped")
			continue
		}

		bandLower := refPrice * bandLowerFactor
		bandUpper := refPrice * bandUpperFactor

		limitPrice := bandUpper
		if req.Side == models.OrderSideSell {
			limitPrice = bandLower
		}

		order := models.LimitOrder{
			ID:             uuid.NewString(),
			IdempotencyKey: key,
			Code:           req.Code,
			Name:           req.Name,
			Side:           req.Side,
			Quantity:       req.Quantity,
			TargetWeight:   req.TargetWeight,
			LimitPrice:     limitPrice,
			BandLower:      bandLower,
			BandUpper:      bandUpper,
			IOPVAtOrder:    iopvAtOrder,
			Window:         reqWindow,
			PlacedAt:       now,
			ExpireTime:     expiry,
			Status:         models.OrderPending,
			Reason:         req.Reason,
		}

		if err := m.store.SaveOrder(ctx, &order); err != nil {
			// The key was claimed but no order exists under it; release it
			// so a retry of the same request is not skipped as a duplicate.
			if rerr := m.store.ReleaseOrderKey(ctx, key); rerr != nil {
				log.Error().Err(rerr).Str("idempotency_key", key).Msg("idempotency key release failed")
			}
			return placed, err
		}

		fees := m.fees.Estimate(limitPrice*float64(req.Quantity), false)
		log.Info().
			Str("order_id", order.ID).
			Str("side", string(req.Side)).
			Str("window", string(reqWindow)).
			Float64("limit_price", limitPrice).
			Float64("band_lower", bandLower).
			Float64("band_upper", bandUpper).
			Float64("est_cost", fees.TotalCost).
			Time("expire_time", expiry).
			Msg("limit order placed")

		placed = append(placed, order)
	}

	return placed, nil
}

// referencePrice returns the pricing reference for a code and the IOPV it
// was derived from (zero when market price was used).
func (m *Manager) referencePrice(code string, prices map[string]float64, iopv map[string]models.IOPVQuote) (float64, float64) {
	if q, ok := iopv[code]; ok && q.IOPV > 0 {
		return q.IOPV, q.IOPV
	}
	if p, ok := prices[code]; ok && p > 0 {
		return p, 0
	}
	return 0, 0
}

// CheckFillStatus sweeps the PENDING orders of a window: each is filled by
// the execution adapter, expired past its deadline, or left pending.
func (m *Manager) CheckFillStatus(ctx context.Context, window models.ExecutionWindow) ([]models.FillUpdate, error) {
	now := m.clock()

	pending, err := m.store.PendingOrders(ctx, window)
	if err != nil {
		return nil, err
	}

	var updates []models.FillUpdate

	for _, order := range pending {
		log := logging.WithOrderID(m.logger, order.ID)

		if now.After(order.ExpireTime) {
			if err := m.store.UpdateOrderStatus(ctx, order.ID, models.OrderExpired); err != nil {
				return updates, err
			}
			log.Info().Str("code", order.Code).Msg("order expired unfilled")
			updates = append(updates, models.FillUpdate{
				OrderID:   order.ID,
				Code:      order.Code,
				Status:    models.OrderExpired,
				Timestamp: now,
			})
			continue
		}

		fill, filled, err := m.adapter.TryFill(ctx, order, now)
		if err != nil {
			log.Error().Err(err).Msg("execution adapter error, order left pending")
			continue
		}
		if !filled {
			continue
		}

		if err := m.store.UpdateOrderFill(ctx, order.ID, models.OrderFilled, fill.Price, fill.Quantity, fill.Time); err != nil {
			return updates, err
		}

		logging.LogOrder(m.logger, order.ID, order.Code, string(order.Side), string(models.OrderFilled), fill.Price)
		updates = append(updates, models.FillUpdate{
			OrderID:   order.ID,
			Code:      order.Code,
			Status:    models.OrderFilled,
			FillPrice: fill.Price,
			FilledQty: fill.Quantity,
			Timestamp: fill.Time,
		})
	}

	return updates, nil
}

// CancelOrder cancels a pending order by ID.
func (m *Manager) CancelOrder(ctx context.Context, orderID string) error {
	if err := m.store.UpdateOrderStatus(ctx, orderID, models.OrderCancelled); err != nil {
		return err
	}
	m.logger.Info().Str("order_id", orderID).Msg("order cancelled")
	return nil
}
