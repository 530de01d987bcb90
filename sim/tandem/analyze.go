// Package tandem composes a broker queue and a receiver queue joined by a
// lossy link. Every failed transmission is retried, so the receiver sees
// Λ₂ = λ/(1−p) arrivals per unit time and all of its metrics use Λ₂.
package tandem

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/queueing-sim/sim"
	"github.com/inference-sim/queueing-sim/sim/analytic"
	"github.com/inference-sim/queueing-sim/sim/config"
)

// Analysis is the closed-form view of a two-stage pipeline.
type Analysis struct {
	Broker   analytic.Metrics `json:"broker"`
	Receiver analytic.Metrics `json:"receiver"`

	ArrivalRate           float64 `json:"arrival_rate"`
	EffectiveArrivalRate  float64 `json:"effective_arrival_rate"`
	ExpectedTransmissions float64 `json:"expected_transmissions"`
	// NetworkTime is (2+p)·D: initial send, acknowledgement and the
	// expected retry overhead.
	NetworkTime float64 `json:"network_time"`
	// EndToEnd is W₁ + S₁ + NetworkTime + W₂ + S₂.
	EndToEnd float64 `json:"end_to_end"`
}

// NetworkTime returns the expected link time per delivered message.
func NetworkTime(delay, p float64) float64 {
	return (2 + p) * delay
}

// Analyze solves both stages with method. The receiver is solved at
// Λ₂, and the pipeline is rejected when either stage is unstable.
func Analyze(cfg config.TandemConfig, method analytic.Method) (*Analysis, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	broker, err := analytic.Solve(cfg.Broker, method)
	if err != nil {
		return nil, fmt.Errorf("broker stage: %w", err)
	}
	receiver, err := analytic.Solve(cfg.ReceiverConfig(), method)
	if err != nil {
		return nil, fmt.Errorf("receiver stage: %w", err)
	}
	a := &Analysis{
		Broker:                broker,
		Receiver:              receiver,
		ArrivalRate:           cfg.Broker.ArrivalRate,
		EffectiveArrivalRate:  cfg.EffectiveArrivalRate(),
		ExpectedTransmissions: 1 / (1 - cfg.FailureProbability),
		NetworkTime:           NetworkTime(cfg.LinkDelay, cfg.FailureProbability),
	}
	a.EndToEnd = broker.MeanWait + broker.MeanService + a.NetworkTime + receiver.MeanWait + receiver.MeanService
	logrus.Debugf("Tandem: lambda=%g Lambda2=%g rho1=%.4f rho2=%.4f e2e=%.5g",
		a.ArrivalRate, a.EffectiveArrivalRate, broker.Utilization, receiver.Utilization, a.EndToEnd)
	return a, nil
}

// Table lists the pipeline totals followed by both stages' metrics.
func (a *Analysis) Table() sim.Table {
	t := sim.Table{Header: []string{"stage", "metric", "value"}}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }
	t.Append("pipeline", "arrival_rate", f(a.ArrivalRate))
	t.Append("pipeline", "effective_arrival_rate", f(a.EffectiveArrivalRate))
	t.Append("pipeline", "expected_transmissions", f(a.ExpectedTransmissions))
	t.Append("pipeline", "network_time", f(a.NetworkTime))
	t.Append("pipeline", "end_to_end", f(a.EndToEnd))
	for _, stage := range []struct {
		name string
		m    analytic.Metrics
	}{{"broker", a.Broker}, {"receiver", a.Receiver}} {
		for _, row := range stage.m.Table().Rows {
			t.Append(stage.name, row[0], row[1])
		}
	}
	return t
}
