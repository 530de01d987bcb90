// Package dist provides the service-time distributions used by the analytical
// solver and the discrete-event engine.
//
// Every variant implements Distribution. Variants can be built from a target
// mean (see New and the *FromMean constructors) so that distributions compared
// in one experiment share the same configured mean. Pareto never takes its scale
// as a free parameter: it is always back-computed from the mean.
package dist

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrInvalidParameter is wrapped by every constructor error.
var ErrInvalidParameter = errors.New("invalid distribution parameter")

// Infinite is the sentinel returned by Variance and CV2 when the moment does
// not exist (Pareto with alpha <= 2). It is +Inf, never NaN.
var Infinite = math.Inf(1)

// IsInfinite reports whether v is the undefined-moment sentinel.
func IsInfinite(v float64) bool {
	return math.IsInf(v, 1)
}

// Kind names a distribution variant.
type Kind string

const (
	KindExponential   Kind = "exponential"
	KindErlang        Kind = "erlang"
	KindPareto        Kind = "pareto"
	KindLognormal     Kind = "lognormal"
	KindWeibull       Kind = "weibull"
	KindDeterministic Kind = "deterministic"
)

// validKinds is used by config validation to reject unknown type names early.
var validKinds = map[Kind]bool{
	KindExponential:   true,
	KindErlang:        true,
	KindPareto:        true,
	KindLognormal:     true,
	KindWeibull:       true,
	KindDeterministic: true,
}

// IsValidKind reports whether k names a known variant.
func IsValidKind(k Kind) bool {
	return validKinds[k]
}

// Distribution is the capability shared by all service-time variants.
type Distribution interface {
	// Sample draws one duration using the caller's generator. Implementations
	// never touch global random state.
	Sample(rng *rand.Rand) float64
	Mean() float64
	// Variance returns Infinite when the second moment does not exist.
	Variance() float64
	// CV2 is Variance/Mean², or Infinite.
	CV2() float64
	Kind() Kind
}

// Spec is the serializable descriptor of a distribution.
//
// Shape is interpreted per variant: the phase count k for erlang, alpha for
// pareto, sigma for lognormal and the shape k for weibull. It is ignored for
// exponential and deterministic.
type Spec struct {
	Type  Kind    `yaml:"type" json:"type"`
	Mean  float64 `yaml:"mean" json:"mean"`
	Shape float64 `yaml:"shape,omitempty" json:"shape,omitempty"`
}

func (s Spec) String() string {
	if s.Shape == 0 {
		return fmt.Sprintf("%s(mean=%g)", s.Type, s.Mean)
	}
	return fmt.Sprintf("%s(mean=%g, shape=%g)", s.Type, s.Mean, s.Shape)
}

// New builds a mean-matched distribution from a Spec.
func New(spec Spec) (Distribution, error) {
	if err := checkPositive("mean", spec.Mean); err != nil {
		return nil, err
	}
	var (
		d   Distribution
		err error
	)
	switch spec.Type {
	case KindExponential:
		d, err = NewExponential(1 / spec.Mean)
	case KindErlang:
		if spec.Shape != math.Trunc(spec.Shape) {
			return nil, fmt.Errorf("%w: erlang phase count must be an integer, got %g", ErrInvalidParameter, spec.Shape)
		}
		d, err = NewErlang(int(spec.Shape), 1/spec.Mean)
	case KindPareto:
		d, err = NewPareto(spec.Shape, spec.Mean)
	case KindLognormal:
		d, err = LognormalFromMean(spec.Mean, spec.Shape)
	case KindWeibull:
		d, err = WeibullFromMean(spec.Mean, spec.Shape)
	case KindDeterministic:
		d, err = NewDeterministic(spec.Mean)
	default:
		return nil, fmt.Errorf("%w: unknown distribution type %q", ErrInvalidParameter, spec.Type)
	}
	// Constructors return typed nil pointers on error; never wrap those.
	if err != nil {
		return nil, err
	}
	return d, nil
}

// checkPositive rejects zero, negative, NaN and infinite parameters.
func checkPositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s must be a finite positive number, got %g", ErrInvalidParameter, name, v)
	}
	return nil
}

