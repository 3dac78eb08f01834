package indicators

import "math"

// Correlation computes the Pearson correlation of two return series over
// their shared length. The second return is false when fewer than minObs
// shared observations exist, in which case the value is undefined.
func Correlation(a, b []float64, minObs int) (float64, bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < minObs || n == 0 {
		return 0, false
	}

	var ma, mb float64
	for i := 0; i < n; i++ {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(n)
	mb /= float64(n)

	var num, da, db float64
	for i := 0; i < n; i++ {
		x := a[i] - ma
		y := b[i] - mb
		num += x * y
		da += x * x
		db += y * y
	}

	den := math.Sqrt(da * db)
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
