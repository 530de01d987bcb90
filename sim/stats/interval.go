package stats

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inference-sim/queueing-sim/sim"
)

// ErrTooFewSamples is returned when an interval needs more observations.
var ErrTooFewSamples = errors.New("too few samples")

// DefaultLevel is the default two-sided confidence level.
const DefaultLevel = 0.95

// Interval is a two-sided confidence interval for a mean.
type Interval struct {
	Mean      float64 `json:"mean"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	HalfWidth float64 `json:"half_width"`
	Level     float64 `json:"level"`
	N         int     `json:"n"`
}

// Contains reports whether v lies inside the interval.
func (iv Interval) Contains(v float64) bool {
	return v >= iv.Lower && v <= iv.Upper
}

// ConfidenceInterval returns the Student-t interval of the mean of samples,
// which should be independent (one value per replication). It needs at
// least two samples.
func ConfidenceInterval(samples []float64, level float64) (Interval, error) {
	n := len(samples)
	if n < 2 {
		return Interval{}, fmt.Errorf("%w: confidence interval needs >= 2 samples, got %d", ErrTooFewSamples, n)
	}
	if !(level > 0 && level < 1) {
		return Interval{}, fmt.Errorf("confidence level must be in (0, 1), got %g", level)
	}
	mean, std := stat.MeanStdDev(samples, nil)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile(1 - (1-level)/2)
	half := t * std / math.Sqrt(float64(n))
	return Interval{
		Mean:      mean,
		Lower:     mean - half,
		Upper:     mean + half,
		HalfWidth: half,
		Level:     level,
		N:         n,
	}, nil
}

// ReplicationSummary combines independent replications of one configuration.
// Each interval is computed over per-replication values.
type ReplicationSummary struct {
	Runs         int             `json:"runs"`
	Seeds        []int64         `json:"seeds"`
	MeanWait     Interval        `json:"mean_wait"`
	MeanResponse Interval        `json:"mean_response"`
	P99Response  Interval        `json:"p99_response"`
	Throughput   Interval        `json:"throughput"`
	Replications []ResultSummary `json:"replications,omitempty"`
}

// SummarizeReplications summarizes each run and builds confidence intervals
// across them.
func SummarizeReplications(results []*sim.Result, level float64) (ReplicationSummary, error) {
	n := len(results)
	out := ReplicationSummary{Runs: n}
	waits := make([]float64, n)
	resp := make([]float64, n)
	p99 := make([]float64, n)
	tput := make([]float64, n)
	for i, r := range results {
		s := SummarizeResult(r)
		out.Seeds = append(out.Seeds, r.Seed)
		out.Replications = append(out.Replications, s)
		waits[i] = s.Wait.Mean
		resp[i] = s.Response.Mean
		p99[i] = s.Response.P99
		tput[i] = s.Throughput
	}
	var err error
	if out.MeanWait, err = ConfidenceInterval(waits, level); err != nil {
		return out, err
	}
	if out.MeanResponse, err = ConfidenceInterval(resp, level); err != nil {
		return out, err
	}
	if out.P99Response, err = ConfidenceInterval(p99, level); err != nil {
		return out, err
	}
	if out.Throughput, err = ConfidenceInterval(tput, level); err != nil {
		return out, err
	}
	return out, nil
}

// Table lists one row per interval.
func (rs ReplicationSummary) Table() sim.Table {
	t := sim.Table{Header: []string{"metric", "mean", "lower", "upper", "half_width", "level", "n"}}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }
	for _, row := range []struct {
		name string
		iv   Interval
	}{
		{"mean_wait", rs.MeanWait},
		{"mean_response", rs.MeanResponse},
		{"p99_response", rs.P99Response},
		{"throughput", rs.Throughput},
	} {
		t.Append(row.name, f(row.iv.Mean), f(row.iv.Lower), f(row.iv.Upper), f(row.iv.HalfWidth), f(row.iv.Level), strconv.Itoa(row.iv.N))
	}
	return t
}
