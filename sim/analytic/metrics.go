// Package analytic computes steady-state queue metrics from closed-form and
// approximate formulas. Everything here is pure: no sampling, no shared state,
// identical inputs give bit-identical outputs.
package analytic

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"

	"github.com/inference-sim/queueing-sim/sim"
	"github.com/inference-sim/queueing-sim/sim/config"
)

var (
	// ErrUnstable is returned when utilization >= 1 for an unbounded queue.
	// Configuration errors for the same condition also match it.
	ErrUnstable = config.ErrUnstable
	// ErrNoClosedForm is returned for configurations without a formula here
	// (for example finite capacity with non-exponential service).
	ErrNoClosedForm = errors.New("no closed form for configuration")
	// ErrInvalidInput is returned for non-positive rates or server counts.
	ErrInvalidInput = errors.New("invalid model input")
)

// NormalZ99 is the standard normal 99th percentile used by the normal
// approximation of the response-time tail.
const NormalZ99 = 2.33

// HeavyTailCV2 is the service CV² above which the normal-approximation P99 is
// flagged as low confidence.
const HeavyTailCV2 = 2.0

// Metrics is the immutable result of one analytical solve.
type Metrics struct {
	ArrivalRate     float64 `json:"arrival_rate"`
	Servers         int     `json:"servers"`
	Utilization     float64 `json:"utilization"`
	OfferedLoad     float64 `json:"offered_load"`
	ProbabilityWait float64 `json:"probability_wait"`
	MeanQueueLength float64 `json:"mean_queue_length"`
	MeanInSystem    float64 `json:"mean_in_system"`
	MeanWait        float64 `json:"mean_wait"`
	MeanService     float64 `json:"mean_service"`
	MeanResponse    float64 `json:"mean_response"`
	ResponseStdDev  float64 `json:"response_std_dev"`
	// P99Response is R + 2.33·σ_R. It understates heavy tails; see LowConfidence.
	P99Response         float64 `json:"p99_response"`
	ServiceCV2          float64 `json:"service_cv2"`
	BlockingProbability float64 `json:"blocking_probability,omitempty"`
	Throughput          float64 `json:"throughput"`
	// LowConfidence marks numbers returned outside the regime where the
	// producing formula is accurate.
	LowConfidence bool     `json:"low_confidence"`
	Methods       []string `json:"methods"`
}

// MarshalJSON writes infinite values as 0 and lists their field names
// under "infinite", since JSON has no representation for +Inf.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type plain Metrics
	out := struct {
		plain
		Infinite []string `json:"infinite,omitempty"`
	}{plain: plain(m)}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"mean_queue_length", &out.MeanQueueLength},
		{"mean_in_system", &out.MeanInSystem},
		{"mean_wait", &out.MeanWait},
		{"mean_response", &out.MeanResponse},
		{"response_std_dev", &out.ResponseStdDev},
		{"p99_response", &out.P99Response},
		{"service_cv2", &out.ServiceCV2},
	} {
		if math.IsInf(*f.v, 0) {
			*f.v = 0
			out.Infinite = append(out.Infinite, f.name)
		}
	}
	return json.Marshal(out)
}

// Table flattens the metrics into one row per named value.
func (m Metrics) Table() sim.Table {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }
	t := sim.Table{Header: []string{"metric", "value"}}
	t.Append("arrival_rate", f(m.ArrivalRate))
	t.Append("servers", strconv.Itoa(m.Servers))
	t.Append("utilization", f(m.Utilization))
	t.Append("offered_load", f(m.OfferedLoad))
	t.Append("probability_wait", f(m.ProbabilityWait))
	t.Append("mean_queue_length", f(m.MeanQueueLength))
	t.Append("mean_in_system", f(m.MeanInSystem))
	t.Append("mean_wait", f(m.MeanWait))
	t.Append("mean_service", f(m.MeanService))
	t.Append("mean_response", f(m.MeanResponse))
	t.Append("response_std_dev", f(m.ResponseStdDev))
	t.Append("p99_response", f(m.P99Response))
	t.Append("service_cv2", f(m.ServiceCV2))
	if m.BlockingProbability > 0 {
		t.Append("blocking_probability", f(m.BlockingProbability))
	}
	t.Append("throughput", f(m.Throughput))
	t.Append("low_confidence", strconv.FormatBool(m.LowConfidence))
	for _, method := range m.Methods {
		t.Append("method", method)
	}
	return t
}
