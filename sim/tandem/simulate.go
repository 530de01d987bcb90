package tandem

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/queueing-sim/sim"
	"github.com/inference-sim/queueing-sim/sim/config"
	"github.com/inference-sim/queueing-sim/sim/stats"
)

// attempt is one transmission of a broker message to the receiver.
type attempt struct {
	msg   sim.Message // broker record
	final bool        // the transmission that succeeds
	tries int         // transmissions used by msg
}

// Result is the simulated view of a pipeline.
type Result struct {
	Broker   *sim.Result `json:"broker"`
	Receiver *sim.Result `json:"receiver"`

	// Messages counts broker completions handed to the link.
	Messages int `json:"messages"`
	// Attempts counts transmissions, retries included.
	Attempts int `json:"attempts"`
	// Delivered counts post-warm-up broker messages whose final attempt
	// finished at the receiver before the horizon.
	Delivered int `json:"delivered"`
	// EndToEnd holds, per delivered message, receiver completion of the
	// final attempt minus broker arrival plus the acknowledgement delay.
	EndToEnd []float64 `json:"end_to_end"`
	// Network holds the link time per delivered message.
	Network []float64 `json:"network"`

	LinkDelay          float64 `json:"link_delay"`
	FailureProbability float64 `json:"failure_probability"`
}

// ExpectedNetworkTime is the mean link time of the simulated link model:
// one round trip of 2·D per transmission, 1/(1−p) transmissions per message.
func ExpectedNetworkTime(delay, p float64) float64 {
	return 2 * delay / (1 - p)
}

// Amplification is attempts per message, the measured 1/(1−p).
func (r *Result) Amplification() float64 {
	if r.Messages == 0 {
		return 0
	}
	return float64(r.Attempts) / float64(r.Messages)
}

// Simulate runs the broker, replays its departures over the link with
// geometric retransmissions, and drives the receiver with the resulting
// attempt trace.
//
// Attempt j of a message completing at c reaches the receiver at
// c + (2j+1)·D: each failure costs a send and a missing acknowledgement.
func Simulate(ctx context.Context, cfg config.TandemConfig) (*Result, error) {
	if err := cfg.ValidateSimulation(); err != nil {
		return nil, err
	}
	seed := cfg.Broker.SeedOrDefault()
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
	link := rng.ForSubsystem(sim.SubsystemLink)

	var departures []sim.Message
	broker, err := sim.Simulate(ctx, cfg.Broker,
		sim.WithDepartureHook(func(m sim.Message) { departures = append(departures, m) }))
	if err != nil {
		return nil, fmt.Errorf("broker stage: %w", err)
	}

	attempts, arrivals := transmit(departures, cfg.LinkDelay, cfg.FailureProbability, link)
	logrus.Infof("Tandem link: %d messages, %d attempts (%.4f per message, expected %.4f)",
		len(departures), len(attempts), float64(len(attempts))/float64(max(1, len(departures))),
		1/(1-cfg.FailureProbability))

	rcfg := cfg.ReceiverConfig()
	if rcfg.Seed == nil {
		rcfg = rcfg.WithSeed(sim.DeriveSeed(seed, sim.SubsystemReceiver))
	}
	receiver, err := sim.Simulate(ctx, rcfg, sim.WithArrivals(sim.NewTraceSource(arrivals)))
	if err != nil {
		return nil, fmt.Errorf("receiver stage: %w", err)
	}

	res := &Result{
		Broker:   broker,
		Receiver: receiver,
		Messages: len(departures),
		Attempts: len(attempts),

		LinkDelay:          cfg.LinkDelay,
		FailureProbability: cfg.FailureProbability,
	}
	for _, m := range receiver.Records {
		a := attempts[m.Tag]
		if !a.final || a.msg.Arrival < broker.WarmUp {
			continue
		}
		network := float64(2*a.tries) * cfg.LinkDelay
		res.EndToEnd = append(res.EndToEnd, m.Completion-a.msg.Arrival+cfg.LinkDelay)
		res.Network = append(res.Network, network)
	}
	res.Delivered = len(res.EndToEnd)
	return res, nil
}

// transmit expands departures into attempts. The number of transmissions
// per message is geometric with success probability 1−p.
func transmit(departures []sim.Message, delay, p float64, rng *rand.Rand) ([]attempt, []sim.Arrival) {
	var attempts []attempt
	var arrivals []sim.Arrival
	for _, m := range departures {
		tries := 1
		for rng.Float64() < p {
			tries++
		}
		for j := 0; j < tries; j++ {
			arrivals = append(arrivals, sim.Arrival{
				Time:  m.Completion + float64(2*j+1)*delay,
				Class: m.Class,
				Tag:   int64(len(attempts)),
			})
			attempts = append(attempts, attempt{msg: m, final: j == tries-1, tries: tries})
		}
	}
	return attempts, arrivals
}

// Summary aggregates both stages and the end-to-end latency.
type Summary struct {
	Broker        stats.ResultSummary `json:"broker"`
	Receiver      stats.ResultSummary `json:"receiver"`
	Amplification float64             `json:"amplification"`
	Delivered     int                 `json:"delivered"`
	EndToEnd      stats.Summary       `json:"end_to_end"`
	Network       stats.Summary       `json:"network"`
	// NetworkExpected is the simulated link's mean, 2D/(1−p).
	NetworkExpected float64 `json:"network_expected"`
	// NetworkAnalytic is the analytic composition's (2+p)·D.
	NetworkAnalytic float64 `json:"network_analytic"`
}

// Summarize reduces r with the stats aggregator.
func (r *Result) Summarize() Summary {
	return Summary{
		Broker:        stats.SummarizeResult(r.Broker),
		Receiver:      stats.SummarizeResult(r.Receiver),
		Amplification: r.Amplification(),
		Delivered:     r.Delivered,
		EndToEnd:      stats.Summarize(r.EndToEnd),
		Network:       stats.Summarize(r.Network),

		NetworkExpected: ExpectedNetworkTime(r.LinkDelay, r.FailureProbability),
		NetworkAnalytic: NetworkTime(r.LinkDelay, r.FailureProbability),
	}
}

// Table lists pipeline totals and then both stage summaries.
func (s Summary) Table() sim.Table {
	t := sim.Table{Header: []string{"stage", "scope", "metric", "value"}}
	add := func(metric string, v float64) {
		t.Append("pipeline", "all", metric, fmt.Sprintf("%.10g", v))
	}
	add("amplification", s.Amplification)
	add("delivered", float64(s.Delivered))
	add("end_to_end_mean", s.EndToEnd.Mean)
	add("end_to_end_p50", s.EndToEnd.P50)
	add("end_to_end_p95", s.EndToEnd.P95)
	add("end_to_end_p99", s.EndToEnd.P99)
	add("network_mean", s.Network.Mean)
	add("network_expected", s.NetworkExpected)
	add("network_analytic", s.NetworkAnalytic)
	for _, stage := range []struct {
		name string
		s    stats.ResultSummary
	}{{"broker", s.Broker}, {"receiver", s.Receiver}} {
		for _, row := range stage.s.Table().Rows {
			t.Append(append([]string{stage.name}, row...)...)
		}
	}
	return t
}
