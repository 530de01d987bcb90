// Package trace provides decision-trace recording for queue policy analysis.
// It has no dependency on sim/ and holds plain data types only.
package trace

// Admission reasons.
const (
	ReasonIdleServer = "idle_server"
	ReasonQueued     = "queued"
	ReasonPreempted  = "preempted_lower_class"
	ReasonCapacity   = "capacity"
)

// AdmissionRecord captures what happened to one arrival.
type AdmissionRecord struct {
	Job       int // -1 when blocked
	Class     int
	Clock     float64
	Admitted  bool
	Occupancy int // jobs in system seen by the arrival
	Reason    string
}

// PreemptionRecord captures one preemptive interrupt.
type PreemptionRecord struct {
	Clock       float64
	Job         int // the preempting job
	Class       int
	Victim      int
	VictimClass int
	Server      int
	Remaining   float64 // victim's remaining work at the interrupt
}
