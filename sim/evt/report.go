package evt

import (
	"math/rand"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inference-sim/queueing-sim/sim"
	"github.com/inference-sim/queueing-sim/sim/stats"
)

// Options configures EstimateTail. Zero values take the package defaults.
type Options struct {
	Percentile   float64 `json:"percentile"`    // target quantile in (0, 1), default 0.99
	ThresholdPct float64 `json:"threshold_pct"` // default DefaultThresholdPct
	Resamples    int     `json:"resamples"`     // default DefaultResamples
	Level        float64 `json:"level"`         // default stats.DefaultLevel
}

func (o Options) withDefaults() Options {
	if o.Percentile == 0 {
		o.Percentile = 0.99
	}
	if o.ThresholdPct == 0 {
		o.ThresholdPct = DefaultThresholdPct
	}
	if o.Resamples == 0 {
		o.Resamples = DefaultResamples
	}
	if o.Level == 0 {
		o.Level = stats.DefaultLevel
	}
	return o
}

// Report compares every tail estimator on one sample.
type Report struct {
	Options   Options         `json:"options"`
	N         int             `json:"n"`
	Fit       Fit             `json:"fit"`
	GPD       float64         `json:"gpd"`
	Hill      float64         `json:"hill"`
	HillXi    float64         `json:"hill_xi"`
	Empirical float64         `json:"empirical"`
	Bootstrap BootstrapResult `json:"bootstrap"`
	Normal    float64         `json:"normal"`
}

// EstimateTail runs the GPD, Hill, bootstrap and normal estimators at
// opts.Percentile. rng drives the bootstrap only.
func EstimateTail(samples []float64, opts Options, rng *rand.Rand) (Report, error) {
	opts = opts.withDefaults()
	r := Report{Options: opts, N: len(samples)}

	q, fit, err := POTQuantile(samples, opts.Percentile, opts.ThresholdPct)
	if err != nil {
		return r, err
	}
	r.Fit, r.GPD = fit, q

	k := ThresholdK(len(samples), opts.ThresholdPct)
	if r.HillXi, err = Hill(samples, k); err != nil {
		return r, err
	}
	if r.Hill, err = HillQuantile(samples, opts.Percentile, k); err != nil {
		return r, err
	}
	if r.Bootstrap, err = Bootstrap(samples, opts.Percentile, opts.Resamples, opts.Level, rng); err != nil {
		return r, err
	}
	r.Empirical = r.Bootstrap.Estimate
	if r.Normal, err = NormalApproxQuantile(samples, opts.Percentile); err != nil {
		return r, err
	}
	return r, nil
}

// Table lists one row per estimator.
func (r Report) Table() sim.Table {
	t := sim.Table{Header: []string{"estimator", "quantile", "lower", "upper", "detail"}}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }
	t.Append("gpd", f(r.GPD), "", "", "xi="+f(r.Fit.Xi)+" beta="+f(r.Fit.Beta)+" u="+f(r.Fit.Threshold)+" "+r.Fit.Method)
	t.Append("hill", f(r.Hill), "", "", "xi="+f(r.HillXi))
	t.Append("bootstrap", f(r.Bootstrap.Estimate), f(r.Bootstrap.Lower), f(r.Bootstrap.Upper), "resamples="+strconv.Itoa(r.Bootstrap.Resamples))
	t.Append("normal", f(r.Normal), "", "", "mean+z*sd")
	return t
}

func normalZ(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}

func sortedInPlace(xs []float64) []float64 {
	sort.Float64s(xs)
	return xs
}
