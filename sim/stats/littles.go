package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/inference-sim/queueing-sim/sim"
)

// ErrLittlesLawViolation signals an engine defect: a completed run whose
// time-average occupancy disagrees with arrival rate times mean sojourn.
var ErrLittlesLawViolation = errors.New("little's law violated")

// LittleCheck compares L with lambda·W for one part of the system.
type LittleCheck struct {
	L             float64 `json:"l"`      // time-average number present
	Lambda        float64 `json:"lambda"` // completions per unit time in the window
	W             float64 `json:"w"`      // mean time spent per record
	RelativeError float64 `json:"relative_error"`
}

// LittlesLaw checks the wait list (Lq vs lambda·Wq) and the whole system
// (L vs lambda·W) over the run's measurement window.
func LittlesLaw(r *sim.Result) (queue, system LittleCheck) {
	w := r.Window()
	if w <= 0 || len(r.Records) == 0 {
		return LittleCheck{}, LittleCheck{}
	}
	lambda := float64(len(r.Records)) / w
	var sumWait, sumResp float64
	for _, m := range r.Records {
		sumWait += m.Waited
		sumResp += m.Response()
	}
	n := float64(len(r.Records))
	queue = newCheck(r.QueueArea/w, lambda, sumWait/n)
	system = newCheck(r.SystemArea/w, lambda, sumResp/n)
	return queue, system
}

func newCheck(l, lambda, w float64) LittleCheck {
	c := LittleCheck{L: l, Lambda: lambda, W: w}
	expected := lambda * w
	switch {
	case l == 0 && expected == 0:
	case l == 0:
		c.RelativeError = math.Inf(1)
	default:
		c.RelativeError = math.Abs(l-expected) / l
	}
	return c
}

// AssertLittlesLaw returns ErrLittlesLawViolation when the system-level
// check exceeds tol. The queue-level check is included when the run had a
// non-trivial queue (Lq >= 0.01).
func AssertLittlesLaw(r *sim.Result, tol float64) error {
	queue, system := LittlesLaw(r)
	if system.RelativeError > tol {
		return fmt.Errorf("%w: L=%.5g but lambda*W=%.5g (rel err %.3g > %.3g)",
			ErrLittlesLawViolation, system.L, system.Lambda*system.W, system.RelativeError, tol)
	}
	if queue.L >= 0.01 && queue.RelativeError > tol {
		return fmt.Errorf("%w: Lq=%.5g but lambda*Wq=%.5g (rel err %.3g > %.3g)",
			ErrLittlesLawViolation, queue.L, queue.Lambda*queue.W, queue.RelativeError, tol)
	}
	return nil
}
