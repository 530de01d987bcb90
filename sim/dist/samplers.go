package dist

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Exponential service times with the given rate (CV² = 1).
type Exponential struct {
	rate float64
}

// NewExponential creates an Exponential with mean 1/rate.
func NewExponential(rate float64) (*Exponential, error) {
	if err := checkPositive("rate", rate); err != nil {
		return nil, err
	}
	return &Exponential{rate: rate}, nil
}

// Sample uses the inverse CDF: -ln(1-U)/rate.
func (d *Exponential) Sample(rng *rand.Rand) float64 {
	return -math.Log(1-rng.Float64()) / d.rate
}

func (d *Exponential) Rate() float64     { return d.rate }
func (d *Exponential) Mean() float64     { return 1 / d.rate }
func (d *Exponential) Variance() float64 { return 1 / (d.rate * d.rate) }
func (d *Exponential) CV2() float64      { return 1 }
func (d *Exponential) Kind() Kind        { return KindExponential }

func (d *Exponential) String() string {
	return fmt.Sprintf("Exponential(rate=%g)", d.rate)
}

// Erlang is the sum of k exponential phases, each with rate k*rate, so the
// mean stays 1/rate for every k and CV² = 1/k.
type Erlang struct {
	k    int
	rate float64
}

// NewErlang creates an Erlang-k with mean 1/rate.
func NewErlang(k int, rate float64) (*Erlang, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: erlang phase count must be >= 1, got %d", ErrInvalidParameter, k)
	}
	if err := checkPositive("rate", rate); err != nil {
		return nil, err
	}
	return &Erlang{k: k, rate: rate}, nil
}

// Sample draws k phases with the same inverse CDF as Exponential. With k=1 it
// consumes the generator exactly like Exponential and returns the same value.
func (d *Erlang) Sample(rng *rand.Rand) float64 {
	phaseRate := d.rate * float64(d.k)
	total := 0.0
	for i := 0; i < d.k; i++ {
		total += -math.Log(1-rng.Float64()) / phaseRate
	}
	return total
}

func (d *Erlang) Phases() int   { return d.k }
func (d *Erlang) Rate() float64 { return d.rate }
func (d *Erlang) Mean() float64 { return 1 / d.rate }
func (d *Erlang) Variance() float64 {
	return 1 / (float64(d.k) * d.rate * d.rate)
}
func (d *Erlang) CV2() float64 { return 1 / float64(d.k) }
func (d *Erlang) Kind() Kind   { return KindErlang }

func (d *Erlang) String() string {
	return fmt.Sprintf("Erlang(k=%d, rate=%g)", d.k, d.rate)
}

// Pareto (type I) with shape alpha and a scale derived from the target mean.
type Pareto struct {
	alpha float64
	scale float64
}

// NewPareto creates a Pareto with the given alpha whose mean equals mean.
// The scale is mean*(alpha-1)/alpha. alpha <= 1 has no mean and is rejected.
// alpha in (1, 2] is accepted; Variance and CV2 then report Infinite.
func NewPareto(alpha, mean float64) (*Pareto, error) {
	if math.IsNaN(alpha) || alpha <= 1 {
		return nil, fmt.Errorf("%w: pareto alpha must be > 1 for a finite mean, got %g", ErrInvalidParameter, alpha)
	}
	if err := checkPositive("mean", mean); err != nil {
		return nil, err
	}
	if alpha <= 2 {
		logrus.Debugf("pareto alpha=%g: variance is infinite", alpha)
	}
	return &Pareto{alpha: alpha, scale: ParetoScale(alpha, mean)}, nil
}

// ParetoScale returns the scale that gives Pareto(alpha) the requested mean.
func ParetoScale(alpha, mean float64) float64 {
	return mean * (alpha - 1) / alpha
}

// Sample uses the inverse CDF: scale / (1-U)^(1/alpha).
func (d *Pareto) Sample(rng *rand.Rand) float64 {
	return d.scale / math.Pow(1-rng.Float64(), 1/d.alpha)
}

func (d *Pareto) Alpha() float64 { return d.alpha }
func (d *Pareto) Scale() float64 { return d.scale }
func (d *Pareto) Mean() float64  { return d.alpha * d.scale / (d.alpha - 1) }

func (d *Pareto) Variance() float64 {
	if d.alpha <= 2 {
		return Infinite
	}
	am1 := d.alpha - 1
	return d.alpha * d.scale * d.scale / (am1 * am1 * (d.alpha - 2))
}

func (d *Pareto) CV2() float64 {
	if d.alpha <= 2 {
		return Infinite
	}
	return 1 / (d.alpha * (d.alpha - 2))
}

func (d *Pareto) Kind() Kind { return KindPareto }

// Quantile returns the exact p-quantile, p in [0, 1).
func (d *Pareto) Quantile(p float64) float64 {
	return d.scale * math.Pow(1-p, -1/d.alpha)
}

func (d *Pareto) String() string {
	return fmt.Sprintf("Pareto(alpha=%g, scale=%g)", d.alpha, d.scale)
}

// Lognormal where ln(X) ~ Normal(mu, sigma²).
type Lognormal struct {
	mu    float64
	sigma float64
}

// NewLognormal creates a Lognormal from its log-space parameters.
func NewLognormal(mu, sigma float64) (*Lognormal, error) {
	if math.IsNaN(mu) || math.IsInf(mu, 0) {
		return nil, fmt.Errorf("%w: lognormal mu must be finite, got %g", ErrInvalidParameter, mu)
	}
	if err := checkPositive("sigma", sigma); err != nil {
		return nil, err
	}
	return &Lognormal{mu: mu, sigma: sigma}, nil
}

// LognormalFromMean picks mu = ln(mean) - sigma²/2 so that E[X] = mean.
func LognormalFromMean(mean, sigma float64) (*Lognormal, error) {
	if err := checkPositive("mean", mean); err != nil {
		return nil, err
	}
	return NewLognormal(math.Log(mean)-sigma*sigma/2, sigma)
}

func (d *Lognormal) Sample(rng *rand.Rand) float64 {
	return math.Exp(d.mu + d.sigma*rng.NormFloat64())
}

func (d *Lognormal) Mu() float64    { return d.mu }
func (d *Lognormal) Sigma() float64 { return d.sigma }
func (d *Lognormal) Mean() float64  { return math.Exp(d.mu + d.sigma*d.sigma/2) }

func (d *Lognormal) Variance() float64 {
	s2 := d.sigma * d.sigma
	return math.Expm1(s2) * math.Exp(2*d.mu+s2)
}

func (d *Lognormal) CV2() float64 { return math.Expm1(d.sigma * d.sigma) }
func (d *Lognormal) Kind() Kind   { return KindLognormal }

func (d *Lognormal) String() string {
	return fmt.Sprintf("Lognormal(mu=%g, sigma=%g)", d.mu, d.sigma)
}

// Weibull with shape k and scale lambda.
type Weibull struct {
	shape float64
	scale float64
}

// NewWeibull creates a Weibull from its native parameters.
func NewWeibull(shape, scale float64) (*Weibull, error) {
	if err := checkPositive("shape", shape); err != nil {
		return nil, err
	}
	if err := checkPositive("scale", scale); err != nil {
		return nil, err
	}
	return &Weibull{shape: shape, scale: scale}, nil
}

// WeibullFromMean picks scale = mean / Γ(1 + 1/shape).
func WeibullFromMean(mean, shape float64) (*Weibull, error) {
	if err := checkPositive("mean", mean); err != nil {
		return nil, err
	}
	if err := checkPositive("shape", shape); err != nil {
		return nil, err
	}
	return NewWeibull(shape, mean/math.Gamma(1+1/shape))
}

// Sample uses the inverse CDF: scale * (-ln(1-U))^(1/shape).
func (d *Weibull) Sample(rng *rand.Rand) float64 {
	return d.scale * math.Pow(-math.Log(1-rng.Float64()), 1/d.shape)
}

func (d *Weibull) Shape() float64 { return d.shape }
func (d *Weibull) Scale() float64 { return d.scale }
func (d *Weibull) Mean() float64  { return d.scale * math.Gamma(1+1/d.shape) }

func (d *Weibull) Variance() float64 {
	g1 := math.Gamma(1 + 1/d.shape)
	g2 := math.Gamma(1 + 2/d.shape)
	return d.scale * d.scale * (g2 - g1*g1)
}

func (d *Weibull) CV2() float64 { return weibullCV2(d.shape) }
func (d *Weibull) Kind() Kind   { return KindWeibull }

func (d *Weibull) String() string {
	return fmt.Sprintf("Weibull(shape=%g, scale=%g)", d.shape, d.scale)
}

// WeibullShapeForCV2 finds the shape k with Γ(1+2/k)/Γ(1+1/k)² - 1 = cv2 by
// bisection over k in [0.1, 100]. CV² decreases monotonically in k.
func WeibullShapeForCV2(cv2 float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		got := weibullCV2(mid)
		if math.Abs(got-cv2) < 1e-6*math.Max(cv2, 1e-3) {
			return mid
		}
		if got > cv2 {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("WeibullShapeForCV2: bisection did not converge for CV²=%.4f; using k=%.4f", cv2, (lo+hi)/2)
	return (lo + hi) / 2
}

func weibullCV2(k float64) float64 {
	g1 := math.Gamma(1 + 1/k)
	g2 := math.Gamma(1 + 2/k)
	return g2/(g1*g1) - 1
}

// Deterministic always returns the same duration (CV² = 0).
type Deterministic struct {
	value float64
}

// NewDeterministic creates a constant service time.
func NewDeterministic(value float64) (*Deterministic, error) {
	if err := checkPositive("value", value); err != nil {
		return nil, err
	}
	return &Deterministic{value: value}, nil
}

func (d *Deterministic) Sample(_ *rand.Rand) float64 { return d.value }
func (d *Deterministic) Mean() float64               { return d.value }
func (d *Deterministic) Variance() float64           { return 0 }
func (d *Deterministic) CV2() float64                { return 0 }
func (d *Deterministic) Kind() Kind                  { return KindDeterministic }

func (d *Deterministic) String() string {
	return fmt.Sprintf("Deterministic(%g)", d.value)
}
