package analytic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErlangB is the blocking probability of an M/M/N/N loss system with offered
// load a = lambda/mu, computed with the stable recursion B(k) = aB/(k + aB).
func ErlangB(servers int, a float64) float64 {
	b := 1.0
	for k := 1; k <= servers; k++ {
		b = a * b / (float64(k) + a*b)
	}
	return b
}

// ErlangC is the probability that an arrival waits in an M/M/N queue.
// It returns 1 when a >= servers.
func ErlangC(servers int, a float64) float64 {
	n := float64(servers)
	if a >= n {
		return 1
	}
	b := ErlangB(servers, a)
	return n * b / (n - a*(1-b))
}

// erlangState returns P0 and the Erlang-C probability. Terms are summed in log
// space so large server counts do not overflow a^n/n!.
func erlangState(a float64, servers int) (p0, c float64) {
	n := float64(servers)
	rho := a / n
	logA := math.Log(a)
	terms := make([]float64, servers+1)
	for k := 0; k < servers; k++ {
		lg, _ := math.Lgamma(float64(k) + 1)
		terms[k] = float64(k)*logA - lg
	}
	lg, _ := math.Lgamma(n + 1)
	tail := n*logA - lg - math.Log1p(-rho)
	terms[servers] = tail
	norm := floats.LogSumExp(terms)
	return math.Exp(-norm), math.Exp(tail - norm)
}

// MMN solves the M/M/N queue with arrival rate lambda and per-server rate mu.
func MMN(lambda float64, servers int, mu float64) (Metrics, error) {
	if err := checkRates(lambda, servers, mu); err != nil {
		return Metrics{}, err
	}
	n := float64(servers)
	rho := lambda / (n * mu)
	if rho >= 1 {
		return Metrics{}, fmt.Errorf("%w: utilization %.4f >= 1 (lambda=%g, servers=%d, mu=%g)", ErrUnstable, rho, lambda, servers, mu)
	}
	a := lambda / mu
	_, c := erlangState(a, servers)

	lq := c * rho / (1 - rho)
	wq := lq / lambda
	service := 1 / mu
	r := wq + service

	// Conditional on waiting, Wq is exponential with rate N·mu − lambda.
	varWq := c * (2 - c) / ((n*mu - lambda) * (n*mu - lambda))
	sigma := math.Sqrt(varWq + service*service)

	return Metrics{
		ArrivalRate:     lambda,
		Servers:         servers,
		Utilization:     rho,
		OfferedLoad:     a,
		ProbabilityWait: c,
		MeanQueueLength: lq,
		MeanInSystem:    lambda * r,
		MeanWait:        wq,
		MeanService:     service,
		MeanResponse:    r,
		ResponseStdDev:  sigma,
		P99Response:     r + NormalZ99*sigma,
		ServiceCV2:      1,
		Throughput:      lambda,
		Methods:         []string{"M/M/N Erlang-C", "normal-approximation P99"},
	}, nil
}

// MMNK solves the M/M/N/K queue, where capacity counts waiting plus in-service
// jobs. Arrivals finding the system full are lost, so any utilization is valid.
func MMNK(lambda float64, servers int, mu float64, capacity int) (Metrics, error) {
	if err := checkRates(lambda, servers, mu); err != nil {
		return Metrics{}, err
	}
	if capacity < servers {
		return Metrics{}, fmt.Errorf("%w: capacity %d below servers %d", ErrNoClosedForm, capacity, servers)
	}
	n := float64(servers)
	a := lambda / mu
	rho := a / n
	logA, logRho := math.Log(a), math.Log(rho)
	lgN, _ := math.Lgamma(n + 1)

	logP := make([]float64, capacity+1)
	for k := 0; k <= capacity; k++ {
		if k <= servers {
			lg, _ := math.Lgamma(float64(k) + 1)
			logP[k] = float64(k)*logA - lg
		} else {
			logP[k] = n*logA - lgN + float64(k-servers)*logRho
		}
	}
	norm := floats.LogSumExp(logP)
	p := make([]float64, capacity+1)
	for k := range logP {
		p[k] = math.Exp(logP[k] - norm)
	}

	blocking := p[capacity]
	admitted := 1 - blocking
	lambdaEff := lambda * admitted

	var l, lq, pWait, ew, ew2 float64
	gap := n * mu
	for k, pk := range p {
		l += float64(k) * pk
		if k > servers {
			lq += float64(k-servers) * pk
		}
		// An admitted arrival that sees k >= N jobs waits for k−N+1
		// exponential(N·mu) completions.
		if k >= servers && k < capacity {
			pi := pk / admitted
			j := float64(k - servers + 1)
			pWait += pi
			ew += pi * j / gap
			ew2 += pi * j * (j + 1) / (gap * gap)
		}
	}
	wq := lq / lambdaEff
	service := 1 / mu
	r := wq + service
	varWq := math.Max(0, ew2-ew*ew)
	sigma := math.Sqrt(varWq + service*service)

	return Metrics{
		ArrivalRate:         lambda,
		Servers:             servers,
		Utilization:         lambdaEff / (n * mu),
		OfferedLoad:         a,
		ProbabilityWait:     pWait,
		MeanQueueLength:     lq,
		MeanInSystem:        l,
		MeanWait:            wq,
		MeanService:         service,
		MeanResponse:        r,
		ResponseStdDev:      sigma,
		P99Response:         r + NormalZ99*sigma,
		ServiceCV2:          1,
		BlockingProbability: blocking,
		Throughput:          lambdaEff,
		Methods:             []string{"M/M/N/K birth-death", "normal-approximation P99"},
	}, nil
}

func checkRates(lambda float64, servers int, mu float64) error {
	if !(lambda > 0) || servers < 1 || !(mu > 0) || math.IsInf(lambda, 0) || math.IsInf(mu, 0) {
		return fmt.Errorf("%w: lambda=%g servers=%d mu=%g", ErrInvalidInput, lambda, servers, mu)
	}
	return nil
}
