package analytic

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/queueing-sim/sim"
	"github.com/inference-sim/queueing-sim/sim/config"
	"github.com/inference-sim/queueing-sim/sim/dist"
)

// Method names an M/G/N waiting-time approximation.
type Method string

const (
	MethodKingman      Method = "kingman"
	MethodWhitt        Method = "whitt"
	MethodAllenCunneen Method = "allen-cunneen"
	// MethodAuto picks one of the above from the service CV² and utilization.
	MethodAuto Method = "auto"
)

// Methods lists the concrete approximations in comparison order.
var Methods = []Method{MethodKingman, MethodWhitt, MethodAllenCunneen}

// ParseMethod accepts a method name case-insensitively. Empty means auto.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return MethodAuto, nil
	case MethodKingman, MethodWhitt, MethodAllenCunneen, MethodAuto:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown approximation %q (want kingman, whitt, allen-cunneen or auto)", ErrInvalidInput, s)
}

func (m Method) label() string {
	switch m {
	case MethodKingman:
		return "Kingman"
	case MethodWhitt:
		return "Whitt (1993)"
	case MethodAllenCunneen:
		return "Allen-Cunneen"
	}
	return string(m)
}

// SelectMethod is the auto policy: Allen-Cunneen for very high or undefined
// variability, Kingman for low variability at moderate load, Whitt otherwise.
func SelectMethod(cs2, rho float64) Method {
	switch {
	case dist.IsInfinite(cs2) || cs2 >= 4:
		return MethodAllenCunneen
	case cs2 < 2 && rho < 0.8:
		return MethodKingman
	default:
		return MethodWhitt
	}
}

// KingmanWait scales the M/M/N wait by (1 + cs²)/2.
func KingmanWait(wqMMN, cs2 float64) float64 {
	return wqMMN * (1 + cs2) / 2
}

// AllenCunneenWait scales the M/M/N wait by (ca² + cs²)/2.
func AllenCunneenWait(wqMMN, ca2, cs2 float64) float64 {
	return wqMMN * (ca2 + cs2) / 2
}

// WhittWait applies Whitt's (1993) GI/G/m correction φ to the Allen-Cunneen
// scaling of the M/M/N wait. φ <= 1, so the prediction never exceeds
// Allen-Cunneen.
func WhittWait(wqMMN, rho, ca2, cs2 float64, servers int) float64 {
	return AllenCunneenWait(wqMMN, ca2, cs2) * whittPhi(rho, ca2, cs2, servers)
}

// whittPhi is Whitt's φ(ρ, ca², cs², m) without the 1+γ multi-server uplift
// on the φ1 term: when arrivals are at least as variable as service, φ is the
// convex combination of 1 and ψ.
func whittPhi(rho, ca2, cs2 float64, servers int) float64 {
	if ca2 == 0 && cs2 == 0 {
		// D/D/N: no wait below saturation, the scaling is already zero.
		return 1
	}
	m := float64(servers)
	gamma := math.Min(0.24, (1-rho)*(m-1)*(math.Sqrt(4+5*m)-2)/(16*m*rho))
	phi1 := 1 + gamma
	phi2 := 1 - 4*gamma
	phi3 := phi2 * math.Exp(-2*(1-rho)/(3*rho))
	phi4 := math.Min(1, (phi1+phi3)/2)

	c2 := (ca2 + cs2) / 2
	psi := 1.0
	if c2 < 1 {
		psi = math.Pow(phi4, 2*(1-c2))
	}
	if ca2 >= cs2 {
		denom := 4*ca2 - 3*cs2
		return 4*(ca2-cs2)/denom + cs2/denom*psi
	}
	sum := ca2 + cs2
	return (cs2-ca2)/(2*sum)*phi3 + (cs2+3*ca2)/(2*sum)*psi
}

// MGN approximates an M/G/N (or GI/G/N with ca2 != 1) queue with the given
// service distribution. The M/M/N baseline uses the same mean service time.
// Infinite service variance yields infinite waits, never NaN.
func MGN(lambda float64, servers int, service dist.Distribution, ca2 float64, method Method) (Metrics, error) {
	return mgn(lambda, servers, service.Mean(), service.Variance(), service.CV2(), ca2, method)
}

func mgn(lambda float64, servers int, mean, variance, cs2, ca2 float64, method Method) (Metrics, error) {
	base, err := MMN(lambda, servers, 1/mean)
	if err != nil {
		return Metrics{}, err
	}
	if method == MethodAuto {
		method = SelectMethod(cs2, base.Utilization)
	}

	var wq float64
	switch {
	case dist.IsInfinite(cs2):
		wq = dist.Infinite
	case method == MethodKingman:
		wq = KingmanWait(base.MeanWait, cs2)
	case method == MethodWhitt:
		wq = WhittWait(base.MeanWait, base.Utilization, ca2, cs2, servers)
	case method == MethodAllenCunneen:
		wq = AllenCunneenWait(base.MeanWait, ca2, cs2)
	default:
		return Metrics{}, fmt.Errorf("%w: unknown approximation %q", ErrInvalidInput, method)
	}

	out := base
	out.ServiceCV2 = cs2
	out.MeanService = mean
	out.MeanWait = wq
	out.MeanQueueLength = lambda * wq
	out.MeanResponse = wq + mean
	out.MeanInSystem = lambda * out.MeanResponse
	out.Methods = []string{"M/M/N Erlang-C baseline", method.label(), "normal-approximation P99"}

	if dist.IsInfinite(cs2) || dist.IsInfinite(variance) {
		out.ResponseStdDev = dist.Infinite
		out.P99Response = dist.Infinite
		out.LowConfidence = true
		out.Methods = append(out.Methods, "infinite service variance")
		return out, nil
	}
	// Keep the M/M/N shape for the wait: mixed point mass at zero and an
	// exponential tail whose mean is Wq/C.
	c := base.ProbabilityWait
	cond := wq / c
	varWq := c * (2 - c) * cond * cond
	out.ResponseStdDev = math.Sqrt(varWq + variance)
	out.P99Response = out.MeanResponse + NormalZ99*out.ResponseStdDev
	out.LowConfidence = cs2 > HeavyTailCV2
	return out, nil
}

// Solve dispatches a validated queue configuration to the matching model:
// M/M/N/K for finite capacity, M/M/N for exponential service, and the chosen
// M/G/N approximation otherwise. Priority classes are aggregated into one
// service mixture.
func Solve(cfg config.QueueConfig, method Method) (Metrics, error) {
	if err := cfg.Validate(); err != nil {
		return Metrics{}, err
	}
	mean, variance, err := serviceMoments(cfg)
	if err != nil {
		return Metrics{}, err
	}
	cs2 := variance / (mean * mean)
	if dist.IsInfinite(variance) {
		cs2 = dist.Infinite
	}
	exponential := len(cfg.Classes) == 0 && cfg.ServiceSpec().Type == dist.KindExponential

	var m Metrics
	switch {
	case cfg.Capacity > 0:
		if !exponential {
			return Metrics{}, fmt.Errorf("%w: finite capacity needs exponential service, got %s", ErrNoClosedForm, cfg.ServiceSpec())
		}
		m, err = MMNK(cfg.ArrivalRate, cfg.Servers, 1/mean, cfg.Capacity)
	case exponential && cfg.EffectiveArrivalCV2() == 1 && (method == MethodAuto || method == ""):
		m, err = MMN(cfg.ArrivalRate, cfg.Servers, 1/mean)
	default:
		if method == "" {
			method = MethodAuto
		}
		m, err = mgn(cfg.ArrivalRate, cfg.Servers, mean, variance, cs2, cfg.EffectiveArrivalCV2(), method)
	}
	if err != nil {
		return Metrics{}, err
	}
	if len(cfg.Classes) > 0 {
		m.Methods = append(m.Methods, fmt.Sprintf("%d classes aggregated", len(cfg.Classes)))
	}
	if m.LowConfidence {
		logrus.Warnf("%s: service CV² %.3g exceeds %.0f, normal-approximation P99 %.4g is low confidence", name(cfg), m.ServiceCV2, HeavyTailCV2, m.P99Response)
	}
	logrus.Debugf("%s: solved with %v", name(cfg), m.Methods)
	return m, nil
}

// serviceMoments returns the mean and variance of the arrival-weighted
// mixture of class service times.
func serviceMoments(cfg config.QueueConfig) (mean, variance float64, err error) {
	if len(cfg.Classes) == 0 {
		d, err := cfg.ServiceDistribution()
		if err != nil {
			return 0, 0, err
		}
		return d.Mean(), d.Variance(), nil
	}
	var second float64
	for i, cl := range cfg.Classes {
		d, err := cfg.ClassService(i)
		if err != nil {
			return 0, 0, err
		}
		mean += cl.Share * d.Mean()
		second += cl.Share * (d.Variance() + d.Mean()*d.Mean())
	}
	if dist.IsInfinite(second) {
		return mean, dist.Infinite, nil
	}
	return mean, second - mean*mean, nil
}

func name(cfg config.QueueConfig) string {
	if cfg.Name == "" {
		return "queue"
	}
	return cfg.Name
}

// MethodError is one approximation's prediction against a measured wait.
type MethodError struct {
	Method        Method  `json:"method"`
	Predicted     float64 `json:"predicted"`
	RelativeError float64 `json:"relative_error"`
}

// Comparison ranks every approximation against a measured mean wait.
type Comparison struct {
	Measured float64       `json:"measured"`
	Entries  []MethodError `json:"entries"` // sorted by relative error, best first
	Best     Method        `json:"best"`
}

// Compare evaluates every approximation for cfg against a measured Wq,
// typically the mean wait from simulation.
func Compare(cfg config.QueueConfig, measuredWq float64) (Comparison, error) {
	if !(measuredWq > 0) {
		return Comparison{}, fmt.Errorf("%w: measured wait must be > 0, got %g", ErrInvalidInput, measuredWq)
	}
	out := Comparison{Measured: measuredWq}
	for _, method := range Methods {
		m, err := solveApprox(cfg, method)
		if err != nil {
			return Comparison{}, err
		}
		out.Entries = append(out.Entries, MethodError{
			Method:        method,
			Predicted:     m.MeanWait,
			RelativeError: math.Abs(m.MeanWait-measuredWq) / measuredWq,
		})
	}
	sort.SliceStable(out.Entries, func(i, j int) bool {
		return out.Entries[i].RelativeError < out.Entries[j].RelativeError
	})
	out.Best = out.Entries[0].Method
	return out, nil
}

// Table lists the approximations best first.
func (c Comparison) Table() sim.Table {
	t := sim.Table{Header: []string{"method", "predicted", "measured", "relative_error"}}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }
	for _, e := range c.Entries {
		t.Append(string(e.Method), f(e.Predicted), f(c.Measured), f(e.RelativeError))
	}
	return t
}

// solveApprox forces the named approximation even for exponential service.
func solveApprox(cfg config.QueueConfig, method Method) (Metrics, error) {
	if err := cfg.Validate(); err != nil {
		return Metrics{}, err
	}
	if cfg.Capacity > 0 {
		return Metrics{}, fmt.Errorf("%w: approximations assume unbounded capacity", ErrNoClosedForm)
	}
	mean, variance, err := serviceMoments(cfg)
	if err != nil {
		return Metrics{}, err
	}
	cs2 := dist.Infinite
	if !dist.IsInfinite(variance) {
		cs2 = variance / (mean * mean)
	}
	return mgn(cfg.ArrivalRate, cfg.Servers, mean, variance, cs2, cfg.EffectiveArrivalCV2(), method)
}
