// Package stats aggregates simulation output: order statistics, Student-t
// confidence intervals over replications and Little's Law checks.
package stats

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/queueing-sim/sim"
)

// Summary holds order and moment statistics of one sample.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

// CalculatePercentile returns the p-th percentile (0..100) of sorted data
// using linear interpolation between closest ranks.
func CalculatePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if upperIdx >= n {
		return sorted[n-1]
	}
	if lowerIdx == upperIdx {
		return sorted[lowerIdx]
	}
	return sorted[lowerIdx] + (sorted[upperIdx]-sorted[lowerIdx])*(rank-float64(lowerIdx))
}

// Summarize computes a Summary. The input is not modified. An empty input
// yields a zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := sorted[0], 0.0
	if len(sorted) > 1 {
		mean, std = stat.MeanStdDev(sorted, nil)
	}
	median := CalculatePercentile(sorted, 50)
	return Summary{
		Count:  len(sorted),
		Mean:   mean,
		StdDev: std,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: median,
		P50:    median,
		P95:    CalculatePercentile(sorted, 95),
		P99:    CalculatePercentile(sorted, 99),
	}
}

// ClassSummary is the per-class view of a priority run.
type ClassSummary struct {
	Class    int     `json:"class"`
	Name     string  `json:"name,omitempty"`
	Wait     Summary `json:"wait"`
	Response Summary `json:"response"`
}

// ResultSummary is the aggregate view of one simulation run.
type ResultSummary struct {
	RunID               string         `json:"run_id"`
	Seed                int64          `json:"seed"`
	Wait                Summary        `json:"wait"`
	Response            Summary        `json:"response"`
	Throughput          float64        `json:"throughput"`
	Utilization         float64        `json:"utilization"`
	MeanQueueLength     float64        `json:"mean_queue_length"`
	MeanInSystem        float64        `json:"mean_in_system"`
	BlockingProbability float64        `json:"blocking_probability"`
	Discarded           int            `json:"discarded"`
	InFlight            int            `json:"in_flight"`
	Classes             []ClassSummary `json:"classes,omitempty"`
}

// SummarizeResult aggregates one run, including per-class summaries when
// the run has more than one class.
func SummarizeResult(r *sim.Result) ResultSummary {
	w := r.Window()
	out := ResultSummary{
		RunID:               r.RunID,
		Seed:                r.Seed,
		Wait:                Summarize(r.Waits()),
		Response:            Summarize(r.Responses()),
		Utilization:         r.Utilization(),
		BlockingProbability: r.BlockingProbability(),
		Discarded:           r.Discarded,
		InFlight:            r.InFlight,
	}
	if w > 0 {
		out.Throughput = float64(len(r.Records)) / w
		out.MeanQueueLength = r.QueueArea / w
		out.MeanInSystem = r.SystemArea / w
	}
	for c := 0; c < len(r.Classes) && len(r.Classes) > 1; c++ {
		recs := r.ClassRecords(c)
		waits := make([]float64, len(recs))
		resp := make([]float64, len(recs))
		for i, m := range recs {
			waits[i] = m.Waited
			resp[i] = m.Response()
		}
		out.Classes = append(out.Classes, ClassSummary{
			Class:    c,
			Name:     r.Classes[c],
			Wait:     Summarize(waits),
			Response: Summarize(resp),
		})
	}
	return out
}

// Table flattens the summary into one row per metric.
func (s ResultSummary) Table() sim.Table {
	t := sim.Table{Header: []string{"scope", "metric", "value"}}
	add := func(scope, metric string, v float64) {
		t.Append(scope, metric, strconv.FormatFloat(v, 'g', 10, 64))
	}
	addSummary := func(scope, prefix string, s Summary) {
		add(scope, prefix+"_count", float64(s.Count))
		add(scope, prefix+"_mean", s.Mean)
		add(scope, prefix+"_std_dev", s.StdDev)
		add(scope, prefix+"_min", s.Min)
		add(scope, prefix+"_median", s.Median)
		add(scope, prefix+"_p95", s.P95)
		add(scope, prefix+"_p99", s.P99)
		add(scope, prefix+"_max", s.Max)
	}
	addSummary("all", "wait", s.Wait)
	addSummary("all", "response", s.Response)
	add("all", "throughput", s.Throughput)
	add("all", "utilization", s.Utilization)
	add("all", "mean_queue_length", s.MeanQueueLength)
	add("all", "mean_in_system", s.MeanInSystem)
	add("all", "blocking_probability", s.BlockingProbability)
	add("all", "discarded", float64(s.Discarded))
	add("all", "in_flight", float64(s.InFlight))
	for _, c := range s.Classes {
		scope := c.Name
		if scope == "" {
			scope = strconv.Itoa(c.Class)
		}
		addSummary(scope, "wait", c.Wait)
		addSummary(scope, "response", c.Response)
	}
	return t
}
