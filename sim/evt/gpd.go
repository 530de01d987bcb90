// Package evt estimates extreme quantiles of heavy-tailed samples by
// peaks-over-threshold: a Generalized Pareto Distribution fitted to the
// excesses over a high threshold, the Hill estimator, and a bootstrap
// empirical percentile for cross-checking both.
package evt

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/queueing-sim/sim/stats"
)

// DefaultThresholdPct is the sample percentile used as the POT threshold.
const DefaultThresholdPct = 90.0

// MinExceedances is the fewest excesses a fit accepts.
const MinExceedances = 10

var (
	// ErrTooFewExceedances is returned when the threshold leaves too little tail.
	ErrTooFewExceedances = errors.New("too few exceedances above threshold")
	// ErrInvalidQuantile is returned for a probability the fit cannot answer.
	ErrInvalidQuantile = errors.New("invalid quantile probability")
)

// shapeZero is the |xi| below which the exponential limit is used.
const shapeZero = 1e-9

// GPD is the Generalized Pareto Distribution of excesses y >= 0 with
// shape Xi and scale Beta.
type GPD struct {
	Xi   float64 `json:"xi"`
	Beta float64 `json:"beta"`
}

// CDF returns P(Y <= y).
func (g GPD) CDF(y float64) float64 {
	if y <= 0 {
		return 0
	}
	if math.Abs(g.Xi) < shapeZero {
		return -math.Expm1(-y / g.Beta)
	}
	z := 1 + g.Xi*y/g.Beta
	if z <= 0 {
		return 1
	}
	return 1 - math.Pow(z, -1/g.Xi)
}

// Quantile inverts the CDF for q in [0, 1).
func (g GPD) Quantile(q float64) float64 {
	if math.Abs(g.Xi) < shapeZero {
		return -g.Beta * math.Log1p(-q)
	}
	return g.Beta / g.Xi * (math.Pow(1-q, -g.Xi) - 1)
}

// negLogLikelihood of excesses ys; +Inf outside the support.
func (g GPD) negLogLikelihood(ys []float64) float64 {
	if g.Beta <= 0 {
		return math.Inf(1)
	}
	n := float64(len(ys))
	if math.Abs(g.Xi) < shapeZero {
		sum := 0.0
		for _, y := range ys {
			sum += y
		}
		return n*math.Log(g.Beta) + sum/g.Beta
	}
	sum := 0.0
	for _, y := range ys {
		z := 1 + g.Xi*y/g.Beta
		if z <= 0 {
			return math.Inf(1)
		}
		sum += math.Log(z)
	}
	return n*math.Log(g.Beta) + (1+1/g.Xi)*sum
}

// Fit is a peaks-over-threshold model of a sample's upper tail.
type Fit struct {
	GPD
	Threshold    float64 `json:"threshold"`
	ThresholdPct float64 `json:"threshold_pct"`
	N            int     `json:"n"`
	Exceedances  int     `json:"exceedances"`
	// Method is "mle", or "moments" when the likelihood search failed.
	Method string `json:"method"`
}

// TailIndex is 1/xi, the Pareto alpha of the fitted tail.
func (f Fit) TailIndex() float64 {
	if f.Xi <= 0 {
		return math.Inf(1)
	}
	return 1 / f.Xi
}

// Quantile returns the p-quantile of the original sample's distribution.
// p must lie above the threshold percentile and below 1.
func (f Fit) Quantile(p float64) (float64, error) {
	zeta := float64(f.Exceedances) / float64(f.N)
	if !(p < 1) || 1-p > zeta {
		return 0, fmt.Errorf("%w: %g must be in (%g, 1)", ErrInvalidQuantile, p, 1-zeta)
	}
	// P(X > x) = zeta * (1 - G(x - u))
	return f.Threshold + f.GPD.Quantile(1-(1-p)/zeta), nil
}

// FitGPD fits a GPD by maximum likelihood to the excesses of samples over
// their thresholdPct percentile. The search runs Nelder-Mead over
// (xi, ln beta) from the method-of-moments estimate.
func FitGPD(samples []float64, thresholdPct float64) (Fit, error) {
	if thresholdPct <= 0 || thresholdPct >= 100 {
		return Fit{}, fmt.Errorf("%w: threshold percentile %g must be in (0, 100)", ErrInvalidQuantile, thresholdPct)
	}
	sorted := sortedCopy(samples)
	u := stats.CalculatePercentile(sorted, thresholdPct)
	ys := excesses(sorted, u)
	if len(ys) < MinExceedances {
		return Fit{}, fmt.Errorf("%w: %d above %g (need %d)", ErrTooFewExceedances, len(ys), u, MinExceedances)
	}

	fit := Fit{
		GPD:          momentsGPD(ys),
		Threshold:    u,
		ThresholdPct: thresholdPct,
		N:            len(sorted),
		Exceedances:  len(ys),
		Method:       "moments",
	}
	start := fit.GPD

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return GPD{Xi: x[0], Beta: math.Exp(x[1])}.negLogLikelihood(ys)
		},
	}
	x0 := []float64{start.Xi, math.Log(start.Beta)}
	if math.IsInf(problem.Func(x0), 1) {
		// Moments can land outside the support when xi < 0.
		x0 = []float64{0, math.Log(start.Beta)}
	}
	res, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if res == nil || math.IsInf(res.F, 0) || math.IsNaN(res.F) {
		logrus.Warnf("GPD likelihood search failed (%v), using moments estimate xi=%.4f", err, start.Xi)
		return fit, nil
	}
	if err != nil {
		logrus.Debugf("GPD likelihood search stopped early: %v", err)
	}
	fit.GPD = GPD{Xi: res.X[0], Beta: math.Exp(res.X[1])}
	fit.Method = "mle"
	logrus.Debugf("GPD fit: u=%.5g exceedances=%d xi=%.4f beta=%.5g", u, len(ys), fit.Xi, fit.Beta)
	return fit, nil
}

// momentsGPD is the method-of-moments estimate, valid for xi < 1/2.
func momentsGPD(ys []float64) GPD {
	m, v := stat.MeanVariance(ys, nil)
	if v <= 0 {
		return GPD{Xi: 0, Beta: math.Max(m, math.SmallestNonzeroFloat64)}
	}
	r := m * m / v
	return GPD{Xi: 0.5 * (1 - r), Beta: 0.5 * m * (r + 1)}
}

// POTQuantile fits the tail above thresholdPct and returns the p-quantile.
func POTQuantile(samples []float64, p, thresholdPct float64) (float64, Fit, error) {
	fit, err := FitGPD(samples, thresholdPct)
	if err != nil {
		return 0, Fit{}, err
	}
	q, err := fit.Quantile(p)
	return q, fit, err
}

func sortedCopy(samples []float64) []float64 {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	return sorted
}

// excesses returns x-u for every x > u in sorted.
func excesses(sorted []float64, u float64) []float64 {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] > u })
	ys := make([]float64, 0, len(sorted)-i)
	for _, x := range sorted[i:] {
		ys = append(ys, x-u)
	}
	return ys
}
