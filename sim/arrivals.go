package sim

import (
	"math"
	"math/rand"
	"sort"
)

// Arrival is one job entering a queue. Tag is carried unchanged into the
// job's Message, which lets a downstream stage correlate its records with
// the upstream messages that produced them.
type Arrival struct {
	Time  float64 `json:"time"`
	Class int     `json:"class"`
	Tag   int64   `json:"tag"`
}

// ArrivalSource yields arrivals in non-decreasing time order.
type ArrivalSource interface {
	// Next returns the next arrival, or false when the source is exhausted.
	Next() (Arrival, bool)
}

// PoissonSource generates a Poisson process of rate lambda, assigning each
// arrival a class by the cumulative class shares.
type PoissonSource struct {
	rate     float64
	now      float64
	next     int64
	rng      *rand.Rand
	classRNG *rand.Rand
	cum      []float64
}

// NewPoissonSource creates a Poisson source. shares may be nil for a single class.
func NewPoissonSource(rate float64, shares []float64, rng, classRNG *rand.Rand) *PoissonSource {
	p := &PoissonSource{rate: rate, rng: rng, classRNG: classRNG}
	total := 0.0
	for _, s := range shares {
		total += s
		p.cum = append(p.cum, total)
	}
	return p
}

// Next draws an Exponential(rate) inter-arrival time by inverse CDF.
func (p *PoissonSource) Next() (Arrival, bool) {
	p.now += -math.Log(1-p.rng.Float64()) / p.rate
	a := Arrival{Time: p.now, Class: p.class(), Tag: p.next}
	p.next++
	return a, true
}

func (p *PoissonSource) class() int {
	if len(p.cum) <= 1 {
		return 0
	}
	u := p.classRNG.Float64() * p.cum[len(p.cum)-1]
	i := sort.Search(len(p.cum), func(i int) bool { return p.cum[i] > u })
	if i == len(p.cum) {
		i--
	}
	return i
}

// TraceSource replays a fixed list of arrivals.
type TraceSource struct {
	arrivals []Arrival
	i        int
}

// NewTraceSource copies and time-sorts arrivals. Ties keep their input order.
func NewTraceSource(arrivals []Arrival) *TraceSource {
	sorted := append([]Arrival(nil), arrivals...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return &TraceSource{arrivals: sorted}
}

func (t *TraceSource) Next() (Arrival, bool) {
	if t.i >= len(t.arrivals) {
		return Arrival{}, false
	}
	a := t.arrivals[t.i]
	t.i++
	return a, true
}

// Len returns the number of arrivals in the trace.
func (t *TraceSource) Len() int { return len(t.arrivals) }
