package dist

import (
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// SampleMoments are the empirical counterparts of Mean, Variance and CV2.
type SampleMoments struct {
	N        int
	Mean     float64
	Variance float64
	CV2      float64
}

// Moments computes unbiased sample moments. Fewer than two values yield zero
// variance.
func Moments(samples []float64) SampleMoments {
	m := SampleMoments{N: len(samples)}
	if len(samples) == 0 {
		return m
	}
	if len(samples) == 1 {
		m.Mean = samples[0]
		return m
	}
	m.Mean, m.Variance = stat.MeanVariance(samples, nil)
	if m.Mean != 0 {
		m.CV2 = m.Variance / (m.Mean * m.Mean)
	}
	return m
}

// Draw returns n samples from d.
func Draw(d Distribution, rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = d.Sample(rng)
	}
	return out
}
