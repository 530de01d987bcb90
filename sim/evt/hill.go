package evt

import (
	"fmt"
	"math"
)

// Hill returns the Hill estimate of xi (1/alpha) from the k largest values
// of samples. All of those values and the (k+1)-th largest must be positive.
func Hill(samples []float64, k int) (float64, error) {
	sorted := sortedCopy(samples)
	n := len(sorted)
	if k < 1 || k >= n {
		return 0, fmt.Errorf("%w: k=%d with %d samples", ErrTooFewExceedances, k, n)
	}
	ref := sorted[n-k-1]
	if ref <= 0 {
		return 0, fmt.Errorf("hill estimator needs positive order statistics, got %g", ref)
	}
	logRef := math.Log(ref)
	sum := 0.0
	for _, x := range sorted[n-k:] {
		sum += math.Log(x) - logRef
	}
	return sum / float64(k), nil
}

// HillQuantile extrapolates the p-quantile from the Hill fit over the k
// largest values: x_p = X_(n-k) * (k / (n(1-p)))^xi.
func HillQuantile(samples []float64, p float64, k int) (float64, error) {
	xi, err := Hill(samples, k)
	if err != nil {
		return 0, err
	}
	n := float64(len(samples))
	if !(p < 1) || n*(1-p) > float64(k) {
		return 0, fmt.Errorf("%w: %g is inside the body of the sample for k=%d", ErrInvalidQuantile, p, k)
	}
	sorted := sortedCopy(samples)
	ref := sorted[len(sorted)-k-1]
	return ref * math.Pow(float64(k)/(n*(1-p)), xi), nil
}

// ThresholdK returns the number of order statistics above the
// thresholdPct percentile, for use as Hill's k.
func ThresholdK(n int, thresholdPct float64) int {
	return int(math.Floor(float64(n) * (1 - thresholdPct/100)))
}
