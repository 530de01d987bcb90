package evt

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/inference-sim/queueing-sim/sim/stats"
)

// DefaultResamples is the bootstrap resample count used by EstimateTail.
const DefaultResamples = 500

// BootstrapResult is a distribution-free percentile estimate with a
// percentile-method confidence interval.
type BootstrapResult struct {
	Estimate  float64 `json:"estimate"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Level     float64 `json:"level"`
	Resamples int     `json:"resamples"`
}

// Contains reports whether v lies inside the interval.
func (b BootstrapResult) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// Bootstrap estimates the p-quantile (p in (0,1)) of samples as the
// empirical percentile, and its confidence interval from resamples
// with-replacement resamples drawn from rng.
func Bootstrap(samples []float64, p float64, resamples int, level float64, rng *rand.Rand) (BootstrapResult, error) {
	n := len(samples)
	switch {
	case n < 2:
		return BootstrapResult{}, fmt.Errorf("%w: bootstrap needs >= 2 samples, got %d", stats.ErrTooFewSamples, n)
	case !(p > 0 && p < 1):
		return BootstrapResult{}, fmt.Errorf("%w: %g must be in (0, 1)", ErrInvalidQuantile, p)
	case !(level > 0 && level < 1):
		return BootstrapResult{}, fmt.Errorf("confidence level must be in (0, 1), got %g", level)
	case resamples < 2:
		return BootstrapResult{}, fmt.Errorf("bootstrap needs >= 2 resamples, got %d", resamples)
	}

	pct := p * 100
	out := BootstrapResult{
		Estimate:  stats.CalculatePercentile(sortedCopy(samples), pct),
		Level:     level,
		Resamples: resamples,
	}
	estimates := make([]float64, resamples)
	buf := make([]float64, n)
	for r := range estimates {
		for i := range buf {
			buf[i] = samples[rng.Intn(n)]
		}
		estimates[r] = stats.CalculatePercentile(sortedInPlace(buf), pct)
	}
	sortedInPlace(estimates)
	alpha := (1 - level) / 2 * 100
	out.Lower = stats.CalculatePercentile(estimates, alpha)
	out.Upper = stats.CalculatePercentile(estimates, 100-alpha)
	return out, nil
}

// NormalApproxQuantile is mean + z_p * sd. It underestimates heavy tails
// and is kept as the reference failure mode.
func NormalApproxQuantile(samples []float64, p float64) (float64, error) {
	if len(samples) < 2 {
		return 0, fmt.Errorf("%w: need >= 2 samples, got %d", stats.ErrTooFewSamples, len(samples))
	}
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("%w: %g must be in (0, 1)", ErrInvalidQuantile, p)
	}
	s := stats.Summarize(samples)
	return s.Mean + normalZ(p)*s.StdDev, nil
}

// RelativeError is |estimate - truth| / truth.
func RelativeError(estimate, truth float64) float64 {
	return math.Abs(estimate-truth) / truth
}
