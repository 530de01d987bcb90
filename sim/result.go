package sim

import (
	"strconv"
)

// Result is the output of one simulation run. It is owned by the caller and
// never modified by the engine after Run returns.
type Result struct {
	RunID string `json:"run_id"`
	Name  string `json:"name,omitempty"`
	Seed  int64  `json:"seed"`
	// Records are the completed messages that arrived at or after WarmUp,
	// in completion order.
	Records []Message `json:"records,omitempty"`
	// Discarded counts completions whose arrival preceded WarmUp.
	Discarded int `json:"discarded"`
	// InFlight counts jobs queued or in service at the horizon.
	InFlight int `json:"in_flight"`
	// Arrivals and Blocked count offered and rejected arrivals inside the window.
	Arrivals int `json:"arrivals"`
	Blocked  int `json:"blocked"`

	WarmUp  float64 `json:"warm_up"`
	Horizon float64 `json:"horizon"`
	// Time integrals of the number waiting, the number in system and the
	// number of busy servers over [WarmUp, Horizon].
	QueueArea  float64 `json:"queue_area"`
	SystemArea float64 `json:"system_area"`
	BusyArea   float64 `json:"busy_area"`

	Events  int64    `json:"events"`
	Servers int      `json:"servers"`
	Classes []string `json:"classes,omitempty"`
}

// Window is the length of the measurement interval.
func (r *Result) Window() float64 {
	return r.Horizon - r.WarmUp
}

// BlockingProbability is the fraction of in-window arrivals rejected at capacity.
func (r *Result) BlockingProbability() float64 {
	if r.Arrivals == 0 {
		return 0
	}
	return float64(r.Blocked) / float64(r.Arrivals)
}

// Utilization is the time-average fraction of busy servers.
func (r *Result) Utilization() float64 {
	if r.Window() <= 0 || r.Servers == 0 {
		return 0
	}
	return r.BusyArea / (r.Window() * float64(r.Servers))
}

// Waits returns every record's wait time.
func (r *Result) Waits() []float64 {
	return r.collect(func(m Message) float64 { return m.Waited })
}

// Responses returns every record's response time.
func (r *Result) Responses() []float64 {
	return r.collect(func(m Message) float64 { return m.Response() })
}

// ClassRecords returns the records of one class.
func (r *Result) ClassRecords(class int) []Message {
	var out []Message
	for _, m := range r.Records {
		if m.Class == class {
			out = append(out, m)
		}
	}
	return out
}

func (r *Result) collect(f func(Message) float64) []float64 {
	out := make([]float64, len(r.Records))
	for i, m := range r.Records {
		out[i] = f(m)
	}
	return out
}

// Table returns one row per record.
func (r *Result) Table() Table {
	t := Table{Header: []string{"id", "class", "tag", "arrival", "start", "completion", "service", "wait", "response", "preemptions"}}
	for _, m := range r.Records {
		t.Append(
			strconv.Itoa(m.ID),
			r.className(m.Class),
			strconv.FormatInt(m.Tag, 10),
			formatFloat(m.Arrival),
			formatFloat(m.Start),
			formatFloat(m.Completion),
			formatFloat(m.Service),
			formatFloat(m.Waited),
			formatFloat(m.Response()),
			strconv.Itoa(m.Preemptions),
		)
	}
	return t
}

func (r *Result) className(class int) string {
	if class >= 0 && class < len(r.Classes) {
		return r.Classes[class]
	}
	return strconv.Itoa(class)
}
