package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every admission and preemption decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// Limit caps the number of records kept per kind; 0 keeps everything.
	Limit int
}

// SimulationTrace collects decision records during one simulation run.
// It is not safe for concurrent use; give each replication its own trace.
type SimulationTrace struct {
	Config      TraceConfig
	Admissions  []AdmissionRecord
	Preemptions []PreemptionRecord
	// Dropped counts records not kept because of Config.Limit.
	Dropped int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:      config,
		Admissions:  make([]AdmissionRecord, 0),
		Preemptions: make([]PreemptionRecord, 0),
	}
}

// Enabled reports whether decisions should be recorded. Safe on nil.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDecisions
}

// RecordAdmission appends an admission decision record.
func (st *SimulationTrace) RecordAdmission(record AdmissionRecord) {
	if st.full(len(st.Admissions)) {
		return
	}
	st.Admissions = append(st.Admissions, record)
}

// RecordPreemption appends a preemption decision record.
func (st *SimulationTrace) RecordPreemption(record PreemptionRecord) {
	if st.full(len(st.Preemptions)) {
		return
	}
	st.Preemptions = append(st.Preemptions, record)
}

func (st *SimulationTrace) full(n int) bool {
	if st.Config.Limit > 0 && n >= st.Config.Limit {
		st.Dropped++
		return true
	}
	return false
}
