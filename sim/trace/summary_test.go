package trace

import "testing"

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalDecisions != 0 || summary.Preemptions != 0 {
		t.Errorf("expected zero summary, got %+v", summary)
	}
	if summary.ReasonDistribution == nil || summary.VictimsByClass == nil {
		t.Error("maps must be non-nil")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed admission and preemption records
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})
	st.RecordAdmission(AdmissionRecord{Job: 0, Admitted: true, Reason: ReasonIdleServer})
	st.RecordAdmission(AdmissionRecord{Job: -1, Admitted: false, Reason: ReasonCapacity})
	st.RecordAdmission(AdmissionRecord{Job: 1, Admitted: true, Reason: ReasonPreempted})
	st.RecordPreemption(PreemptionRecord{Job: 1, Class: 0, Victim: 0, VictimClass: 1, Remaining: 0.1})
	st.RecordPreemption(PreemptionRecord{Job: 2, Class: 0, Victim: 0, VictimClass: 1, Remaining: 0.3})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match
	if summary.TotalDecisions != 3 {
		t.Errorf("expected 3 total decisions, got %d", summary.TotalDecisions)
	}
	if summary.AdmittedCount != 2 || summary.RejectedCount != 1 {
		t.Errorf("admitted/rejected = %d/%d, want 2/1", summary.AdmittedCount, summary.RejectedCount)
	}
	if summary.ReasonDistribution[ReasonCapacity] != 1 {
		t.Errorf("capacity rejections = %d, want 1", summary.ReasonDistribution[ReasonCapacity])
	}
	if summary.Preemptions != 2 || summary.VictimsByClass[1] != 2 {
		t.Errorf("preemptions = %d, class-1 victims = %d, want 2 and 2", summary.Preemptions, summary.VictimsByClass[1])
	}
	if diff := summary.MeanRemaining - 0.2; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("mean remaining = %v, want 0.2", summary.MeanRemaining)
	}
	if summary.MaxRemaining != 0.3 {
		t.Errorf("max remaining = %v, want 0.3", summary.MaxRemaining)
	}
}
