package sim

import (
	"container/heap"

	"github.com/sirupsen/logrus"
)

// EventType orders simultaneous events: arrivals first, then departures,
// then progress checks.
type EventType int

const (
	EventArrival EventType = iota + 1
	EventDeparture
	EventProgress
)

func (t EventType) String() string {
	switch t {
	case EventArrival:
		return "arrival"
	case EventDeparture:
		return "departure"
	case EventProgress:
		return "progress"
	}
	return "unknown"
}

// Event defines the interface for all simulation events.
// Each event has a Timestamp in simulated seconds, a Type used for tie
// breaking, and an Execute method that advances simulation state.
type Event interface {
	Timestamp() float64
	Type() EventType
	Execute(*Simulator)
}

// eventEntry wraps an Event with a sequence ID for deterministic FIFO
// tie-breaking when timestamp and type are equal.
type eventEntry struct {
	event Event
	seqID int64
}

// EventQueue is a min-heap ordered by (Timestamp, Type, seqID).
// Implements heap.Interface.
type EventQueue []eventEntry

func (q EventQueue) Len() int { return len(q) }

func (q EventQueue) Less(i, j int) bool {
	if q[i].event.Timestamp() != q[j].event.Timestamp() {
		return q[i].event.Timestamp() < q[j].event.Timestamp()
	}
	if q[i].event.Type() != q[j].event.Type() {
		return q[i].event.Type() < q[j].event.Type()
	}
	return q[i].seqID < q[j].seqID
}

func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) {
	*q = append(*q, x.(eventEntry))
}

func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// peek returns the earliest event without removing it.
func (q EventQueue) peek() Event {
	if len(q) == 0 {
		return nil
	}
	return q[0].event
}

// ArrivalEvent is a job entering the system.
type ArrivalEvent struct {
	time    float64
	arrival Arrival
}

func (e *ArrivalEvent) Timestamp() float64 { return e.time }
func (e *ArrivalEvent) Type() EventType    { return EventArrival }

// Execute admits or blocks the job, then schedules the next arrival.
func (e *ArrivalEvent) Execute(sim *Simulator) {
	logrus.Tracef("<< arrival class=%d tag=%d at %.6f", e.arrival.Class, e.arrival.Tag, e.time)
	sim.arrive(e.arrival)
	sim.scheduleNextArrival()
}

// DepartureEvent is the completion of a job's current service slice. A job
// preempted after this event was scheduled makes it stale; the token detects that.
type DepartureEvent struct {
	time   float64
	server int
	job    int
	token  int
}

func (e *DepartureEvent) Timestamp() float64 { return e.time }
func (e *DepartureEvent) Type() EventType    { return EventDeparture }

// Execute frees the server and starts the next waiting job.
func (e *DepartureEvent) Execute(sim *Simulator) {
	if sim.jobs[e.job].token != e.token {
		logrus.Tracef("<< stale departure job=%d at %.6f", e.job, e.time)
		return
	}
	logrus.Tracef("<< departure job=%d server=%d at %.6f", e.job, e.server, e.time)
	sim.depart(e.server)
}

// ProgressEvent reports the run's position to the progress callback at a
// fixed simulated cadence.
type ProgressEvent struct {
	time float64
}

func (e *ProgressEvent) Timestamp() float64 { return e.time }
func (e *ProgressEvent) Type() EventType    { return EventProgress }

// Execute reports progress and schedules the next report.
func (e *ProgressEvent) Execute(sim *Simulator) {
	sim.reportProgress()
	if next := e.time + sim.progressInterval; next < sim.Horizon {
		sim.Schedule(&ProgressEvent{time: next})
	}
}

// Schedule pushes an event into the simulator's EventQueue.
func (sim *Simulator) Schedule(ev Event) {
	heap.Push(&sim.EventQueue, eventEntry{event: ev, seqID: sim.nextSeqID()})
}

func (sim *Simulator) nextSeqID() int64 {
	id := sim.seq
	sim.seq++
	return id
}
