package orders

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"momentum-lens/internal/models"
)

// IdempotencyKey derives the deterministic order key from the trade date,
// code, target weight, and execution window. At most one non-cancelled
// order may exist per key per day.
func IdempotencyKey(tradeDate time.Time, code string, targetWeight float64, window models.ExecutionWindow) string {
	payload := fmt.Sprintf("%s|%s|%.4f|%s",
		tradeDate.Format("2006-01-02"), code, targetWeight, window)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:8])
}
