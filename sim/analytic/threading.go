package analytic

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/queueing-sim/sim/config"
)

// DedicatedResult is the thread-per-connection capacity model.
type DedicatedResult struct {
	MaxConnections int     `json:"max_connections"`
	Capacity       float64 `json:"capacity"` // MaxConnections·mu
	Throughput     float64 `json:"throughput"`
	RejectedRate   float64 `json:"rejected_rate"`
	Utilization    float64 `json:"utilization"`
}

// Dedicated binds threadsPerConn threads to each connection. Arrivals beyond
// the connection limit are rejected rather than queued.
func Dedicated(lambda, mu float64, threads, threadsPerConn int) (DedicatedResult, error) {
	if !(lambda > 0) || !(mu > 0) || threads < 1 || threadsPerConn < 1 {
		return DedicatedResult{}, fmt.Errorf("%w: dedicated threading lambda=%g mu=%g threads=%d per_conn=%d",
			ErrInvalidInput, lambda, mu, threads, threadsPerConn)
	}
	nmax := threads / threadsPerConn
	capacity := float64(nmax) * mu
	x := math.Min(lambda, capacity)
	out := DedicatedResult{
		MaxConnections: nmax,
		Capacity:       capacity,
		Throughput:     x,
		RejectedRate:   lambda - x,
	}
	if capacity > 0 {
		out.Utilization = x / capacity
	}
	return out, nil
}

// SharedResult is the shared-pool contention model.
type SharedResult struct {
	EffectiveServiceRate float64 `json:"effective_service_rate"`
	Capacity             float64 `json:"capacity"` // active·mu_eff
	Throughput           float64 `json:"throughput"`
	Utilization          float64 `json:"utilization"`
	// Pathological marks overhead coefficients beyond ordinary contention.
	Pathological bool `json:"pathological"`
}

// Shared degrades the per-connection service rate with contention:
// mu_eff = mu / (1 + overhead·active/threads).
func Shared(lambda, mu float64, threads, active int, overhead float64) (SharedResult, error) {
	if !(lambda > 0) || !(mu > 0) || threads < 1 || active < 1 || overhead < 0 {
		return SharedResult{}, fmt.Errorf("%w: shared threading lambda=%g mu=%g threads=%d active=%d overhead=%g",
			ErrInvalidInput, lambda, mu, threads, active, overhead)
	}
	muEff := mu / (1 + overhead*float64(active)/float64(threads))
	capacity := float64(active) * muEff
	out := SharedResult{
		EffectiveServiceRate: muEff,
		Capacity:             capacity,
		Throughput:           math.Min(lambda, capacity),
		Utilization:          math.Min(1, lambda/capacity),
		Pathological:         overhead > config.MaxMeaningfulOverhead,
	}
	if out.Pathological {
		logrus.Warnf("overhead coefficient %.3g exceeds %.1f; shared-threading results describe pathological contention", overhead, config.MaxMeaningfulOverhead)
	}
	return out, nil
}

// Threading is the result of the configured threading sub-model.
type Threading struct {
	Policy    config.ThreadingPolicy `json:"policy"`
	Dedicated *DedicatedResult       `json:"dedicated,omitempty"`
	Shared    *SharedResult          `json:"shared,omitempty"`
}

// SolveThreading evaluates cfg.Threading. It returns nil when no threading
// model is configured.
func SolveThreading(cfg config.QueueConfig) (*Threading, error) {
	tc := cfg.Threading
	if tc == nil {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mean, err := cfg.MeanService()
	if err != nil {
		return nil, err
	}
	mu := 1 / mean
	out := &Threading{Policy: tc.Policy}
	switch tc.Policy {
	case config.ThreadingDedicated:
		r, err := Dedicated(cfg.ArrivalRate, mu, tc.Threads, tc.ThreadsPerConnection)
		if err != nil {
			return nil, err
		}
		out.Dedicated = &r
	case config.ThreadingShared:
		r, err := Shared(cfg.ArrivalRate, mu, tc.Threads, tc.ActiveConnections, tc.OverheadCoefficient)
		if err != nil {
			return nil, err
		}
		out.Shared = &r
	default:
		return nil, fmt.Errorf("%w: unknown threading policy %q", ErrInvalidInput, tc.Policy)
	}
	return out, nil
}
