package sim

// Message is the immutable record of one completed job.
//
// Waited is the total time spent in the wait list. Without preemption it
// equals Start − Arrival; a preempted job also accumulates the time it spent
// paused. Start is the first time the job entered service.
type Message struct {
	ID          int     `json:"id"`
	Class       int     `json:"class"`
	Tag         int64   `json:"tag"`
	Arrival     float64 `json:"arrival"`
	Start       float64 `json:"start"`
	Completion  float64 `json:"completion"`
	Service     float64 `json:"service"`
	Waited      float64 `json:"wait"`
	Preemptions int     `json:"preemptions,omitempty"`
}

// Wait is the time the job spent queued.
func (m Message) Wait() float64 { return m.Waited }

// Response is completion minus arrival.
func (m Message) Response() float64 { return m.Completion - m.Arrival }

// job is the mutable arena entry for a message in flight. Jobs are referenced
// by index; preemption updates remaining and token in place.
type job struct {
	class     int
	tag       int64
	arrival   float64
	start     float64
	started   bool
	service   float64
	remaining float64
	waited    float64
	queuedAt  float64
	sliceAt   float64 // start of the current service slice
	server    int
	token     int
	preempted int
}

func (j *job) message(id int, completion float64) Message {
	return Message{
		ID:          id,
		Class:       j.class,
		Tag:         j.tag,
		Arrival:     j.arrival,
		Start:       j.start,
		Completion:  completion,
		Service:     j.service,
		Waited:      j.waited,
		Preemptions: j.preempted,
	}
}
