package evt

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/queueing-sim/sim/dist"
	"github.com/inference-sim/queueing-sim/sim/stats"
)

// paretoSamples draws n values from Pareto(alpha) with mean 1.
func paretoSamples(t *testing.T, alpha float64, n int, seed int64) ([]float64, *dist.Pareto) {
	t.Helper()
	d, err := dist.NewPareto(alpha, 1)
	require.NoError(t, err)
	return dist.Draw(d, rand.New(rand.NewSource(seed)), n), d
}

func TestGPD_QuantileInvertsCDF(t *testing.T) {
	for _, g := range []GPD{{Xi: 0.4, Beta: 2}, {Xi: 0, Beta: 1.5}, {Xi: -0.2, Beta: 1}} {
		for _, q := range []float64{0.1, 0.5, 0.9, 0.99} {
			assert.InDelta(t, q, g.CDF(g.Quantile(q)), 1e-9, "%+v q=%g", g, q)
		}
	}
}

func TestFitGPD_RecoversParetoTail(t *testing.T) {
	// GIVEN Pareto(2.5): excesses over u are exactly GPD(xi=0.4, beta=0.4u)
	samples, _ := paretoSamples(t, 2.5, 20000, 3)

	fit, err := FitGPD(samples, DefaultThresholdPct)
	require.NoError(t, err)

	assert.Equal(t, "mle", fit.Method)
	assert.Equal(t, 20000, fit.N)
	assert.InDelta(t, 2000, fit.Exceedances, 2)
	assert.InDelta(t, 0.4, fit.Xi, 0.1)
	assert.InDelta(t, 0.4*fit.Threshold, fit.Beta, 0.1*fit.Threshold)
	assert.InDelta(t, 2.5, fit.TailIndex(), 0.8)
}

func TestFitGPD_Errors(t *testing.T) {
	_, err := FitGPD([]float64{1, 2, 3}, 90)
	assert.True(t, errors.Is(err, ErrTooFewExceedances))
	_, err = FitGPD([]float64{1, 2, 3}, 100)
	assert.True(t, errors.Is(err, ErrInvalidQuantile))

	samples, _ := paretoSamples(t, 2.5, 1000, 1)
	fit, err := FitGPD(samples, 90)
	require.NoError(t, err)
	// p = 0.5 lies in the body, below the threshold
	_, err = fit.Quantile(0.5)
	assert.True(t, errors.Is(err, ErrInvalidQuantile))
}

// Benchmark against ground truth: average relative error over 20 Pareto(2.5)
// samples of 10k values each.
func TestTailEstimators_AgainstTruePareto(t *testing.T) {
	const (
		runs  = 20
		n     = 10000
		p     = 0.99
		pFar  = 0.999
		alpha = 2.5
	)
	var gpdErr, hillErr, normalErr, normalFarErr, gpdFarErr float64
	var gpdEmpErr, normalEmpErr float64
	var truth, truthFar float64
	for i := 0; i < runs; i++ {
		samples, d := paretoSamples(t, alpha, n, int64(100+i))
		truth, truthFar = d.Quantile(p), d.Quantile(pFar)
		empirical := stats.CalculatePercentile(sortedCopy(samples), 100*p)

		q, fit, err := POTQuantile(samples, p, DefaultThresholdPct)
		require.NoError(t, err)
		gpdErr += RelativeError(q, truth)
		gpdEmpErr += RelativeError(q, empirical)
		far, err := fit.Quantile(pFar)
		require.NoError(t, err)
		gpdFarErr += RelativeError(far, truthFar)

		h, err := HillQuantile(samples, p, ThresholdK(n, DefaultThresholdPct))
		require.NoError(t, err)
		hillErr += RelativeError(h, truth)

		norm, err := NormalApproxQuantile(samples, p)
		require.NoError(t, err)
		normalErr += RelativeError(norm, truth)
		normalEmpErr += RelativeError(norm, empirical)
		normFar, err := NormalApproxQuantile(samples, pFar)
		require.NoError(t, err)
		normalFarErr += RelativeError(normFar, truthFar)
	}
	gpdErr /= runs
	gpdFarErr /= runs
	hillErr /= runs
	normalErr /= runs
	normalFarErr /= runs
	gpdEmpErr /= runs
	normalEmpErr /= runs
	t.Logf("P99 truth %.4f: gpd %.3f hill %.3f normal %.3f", truth, gpdErr, hillErr, normalErr)
	t.Logf("P99 vs empirical: gpd %.3f normal %.3f", gpdEmpErr, normalEmpErr)
	t.Logf("P99.9 truth %.4f: gpd %.3f normal %.3f", truthFar, gpdFarErr, normalFarErr)

	// THEN GPD is within 5% at P99 and the normal approximation misses by more than 20%
	assert.Less(t, gpdErr, 0.05)
	assert.Less(t, hillErr, 0.05)
	assert.Less(t, gpdErr, normalErr)
	assert.Greater(t, normalErr, 0.20, "normal approximation P99 against the true quantile")

	// AND the same holds against each sample's empirical P99
	assert.Less(t, gpdEmpErr, 0.05)
	assert.Greater(t, normalEmpErr, 0.20, "normal approximation P99 against the empirical P99")
	assert.Less(t, gpdFarErr, 0.15)
	assert.Greater(t, normalFarErr, 0.40, "normal approximation must underestimate the far tail")
}

func TestBootstrap_CoversTrueQuantile(t *testing.T) {
	const p = 0.99
	covered := 0
	for i := 0; i < 10; i++ {
		samples, d := paretoSamples(t, 2.5, 5000, int64(500+i))
		b, err := Bootstrap(samples, p, 200, 0.95, rand.New(rand.NewSource(int64(i))))
		require.NoError(t, err)
		assert.LessOrEqual(t, b.Lower, b.Estimate)
		assert.GreaterOrEqual(t, b.Upper, b.Estimate)
		if b.Contains(d.Quantile(p)) {
			covered++
		}
	}
	assert.GreaterOrEqual(t, covered, 7, "95%% intervals covered the truth %d/10 times", covered)
}

func TestBootstrap_DeterministicForSeed(t *testing.T) {
	samples, _ := paretoSamples(t, 2.5, 500, 9)
	a, err := Bootstrap(samples, 0.95, 50, 0.9, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	b, err := Bootstrap(samples, 0.95, 50, 0.9, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBootstrap_Errors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := Bootstrap([]float64{1}, 0.5, 10, 0.9, rng)
	assert.Error(t, err)
	_, err = Bootstrap([]float64{1, 2}, 1, 10, 0.9, rng)
	assert.True(t, errors.Is(err, ErrInvalidQuantile))
	_, err = Bootstrap([]float64{1, 2}, 0.5, 1, 0.9, rng)
	assert.Error(t, err)
}

func TestHill_ExactParetoIndex(t *testing.T) {
	samples, _ := paretoSamples(t, 2.5, 20000, 11)
	xi, err := Hill(samples, ThresholdK(len(samples), 90))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, xi, 0.04)

	_, err = Hill(samples, 0)
	assert.Error(t, err)
	_, err = HillQuantile(samples, 0.5, 100)
	assert.True(t, errors.Is(err, ErrInvalidQuantile))
}

func TestNormalApproxQuantile_ExactForStandardNormalMoments(t *testing.T) {
	// mean 0, sd 1 sample
	got, err := NormalApproxQuantile([]float64{-1, 1}, 0.975)
	require.NoError(t, err)
	assert.InDelta(t, 1.959964*math.Sqrt2, got, 1e-5)
}

func TestEstimateTail_Report(t *testing.T) {
	samples, d := paretoSamples(t, 2.5, 5000, 21)
	r, err := EstimateTail(samples, Options{Resamples: 100}, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	assert.Equal(t, 0.99, r.Options.Percentile)
	assert.Equal(t, DefaultThresholdPct, r.Options.ThresholdPct)
	assert.Equal(t, r.Bootstrap.Estimate, r.Empirical)
	assert.InDelta(t, d.Quantile(0.99), r.GPD, 0.2*d.Quantile(0.99))

	tbl := r.Table()
	require.Len(t, tbl.Rows, 4)
	assert.Equal(t, "gpd", tbl.Rows[0][0])
	assert.Equal(t, "normal", tbl.Rows[3][0])
}
