package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions int     `json:"total_decisions"`
	AdmittedCount  int     `json:"admitted_count"`
	RejectedCount  int     `json:"rejected_count"`
	Preemptions    int     `json:"preemptions"`
	MeanRemaining  float64 `json:"mean_remaining"`
	MaxRemaining   float64 `json:"max_remaining"`
	// ReasonDistribution maps admission reason to count.
	ReasonDistribution map[string]int `json:"reason_distribution"`
	// VictimsByClass maps class to the number of times it was preempted.
	VictimsByClass map[int]int `json:"victims_by_class"`
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ReasonDistribution: make(map[string]int),
		VictimsByClass:     make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Admissions)
	for _, a := range st.Admissions {
		if a.Admitted {
			summary.AdmittedCount++
		} else {
			summary.RejectedCount++
		}
		summary.ReasonDistribution[a.Reason]++
	}

	if len(st.Preemptions) > 0 {
		total := 0.0
		for _, p := range st.Preemptions {
			summary.VictimsByClass[p.VictimClass]++
			total += p.Remaining
			if p.Remaining > summary.MaxRemaining {
				summary.MaxRemaining = p.Remaining
			}
		}
		summary.Preemptions = len(st.Preemptions)
		summary.MeanRemaining = total / float64(len(st.Preemptions))
	}
	return summary
}
