package orders

import (
	"context"
	"math/rand"
	"time"

	"momentum-lens/internal/models"
)

// ExecutionAdapter abstracts the execution feed that reports fills. The
// order manager asks the adapter for each pending order once per sweep.
type ExecutionAdapter interface {
	// TryFill reports whether the order filled, and at what price and
	// quantity. A false fill with nil error means the order stays pending.
	TryFill(ctx context.Context, order models.LimitOrder, now time.Time) (FillResult, bool, error)
}

// FillResult is an execution report for one order.
type FillResult struct {
	Price    float64
	Quantity int
	Time     time.Time
}

// BrokerAdapter is the seam for a real broker feed. No implementation
// exists in this repository; real connectivity is out of scope.
type BrokerAdapter interface {
	ExecutionAdapter
	Connect(ctx context.Context) error
	Close() error
}

// SimulatedAdapter is a probabilistic fill simulator. It is a stand-in for
// a broker feed and must not be used against real money.
type SimulatedAdapter struct {
	fillProbability float64
	rng             *rand.Rand
}

// NewSimulatedAdapter creates a simulator with the given fill probability.
// A non-zero seed makes the simulation deterministic.
func NewSimulatedAdapter(fillProbability float64, seed int64) *SimulatedAdapter {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedAdapter{
		fillProbability: fillProbability,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// TryFill fills the order with the configured probability at a uniformly
// drawn price inside the IOPV band.
func (a *SimulatedAdapter) TryFill(_ context.Context, order models.LimitOrder, now time.Time) (FillResult, bool, error) {
	if a.rng.Float64() >= a.fillProbability {
		return FillResult{}, false, nil
	}

	price := order.BandLower + a.rng.Float64()*(order.BandUpper-order.BandLower)
	return FillResult{
		Price:    price,
		Quantity: order.Quantity,
		Time:     now,
	}, true, nil
}

var _ ExecutionAdapter = (*SimulatedAdapter)(nil)
