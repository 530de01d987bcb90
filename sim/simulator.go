// sim/simulator.go
package sim

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/queueing-sim/sim/config"
	"github.com/inference-sim/queueing-sim/sim/dist"
	"github.com/inference-sim/queueing-sim/sim/trace"
)

// ErrSimulationDivergence is returned when a run produces no usable records.
var ErrSimulationDivergence = errors.New("simulation produced no post-warm-up records")

// cancelCheckEvery is the number of events between context checks.
const cancelCheckEvery = 4096

// Progress is passed to the progress callback.
type Progress struct {
	Clock     float64 `json:"clock"`
	Horizon   float64 `json:"horizon"`
	Fraction  float64 `json:"fraction"`
	Events    int64   `json:"events"`
	Completed int     `json:"completed"`
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithArrivals replaces the Poisson arrival process with src.
func WithArrivals(src ArrivalSource) Option {
	return func(s *Simulator) { s.source = src }
}

// WithServiceDistribution overrides the configured service distribution for
// every class.
func WithServiceDistribution(d dist.Distribution) Option {
	return func(s *Simulator) {
		for i := range s.services {
			s.services[i] = d
		}
	}
}

// WithProgress calls fn every interval simulated seconds and once at the end.
// A zero interval uses the configured progress interval, or 1.
func WithProgress(fn func(Progress), interval float64) Option {
	return func(s *Simulator) {
		s.progressFn = fn
		if interval > 0 {
			s.progressInterval = interval
		}
	}
}

// WithDepartureHook calls fn for every completed job, warm-up included, in
// completion order.
func WithDepartureHook(fn func(Message)) Option {
	return func(s *Simulator) { s.onDepart = fn }
}

// WithTrace records admission and preemption decisions into st.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(s *Simulator) { s.trace = st }
}

// Simulator is the core object that holds simulation time, system state, and the event loop.
type Simulator struct {
	Clock   float64
	Horizon float64
	WarmUp  float64
	// EventQueue has all pending arrival, departure and progress events
	EventQueue EventQueue
	// WaitQ holds jobs waiting for a server
	WaitQ *WaitQueue

	cfg        config.QueueConfig
	rng        *PartitionedRNG
	source     ArrivalSource
	services   []dist.Distribution
	serviceRNG *rand.Rand
	preemptive bool
	priority   bool
	capacity   int

	// servers[i] is the job in service at server i, or -1 when idle
	servers []int
	idle    []int
	busy    int
	jobs    []job

	records   []Message
	discarded int
	arrivals  int
	blocked   int

	queueArea  float64
	systemArea float64
	busyArea   float64
	events     int64
	seq        int64

	progressFn       func(Progress)
	progressInterval float64
	onDepart         func(Message)
	trace            *trace.SimulationTrace
	ran              bool
}

// New validates cfg and builds a simulator. Invalid or unstable
// configurations are rejected here, before any random draw.
func New(cfg config.QueueConfig, opts ...Option) (*Simulator, error) {
	if err := cfg.ValidateSimulation(); err != nil {
		return nil, err
	}
	classes := max(1, len(cfg.Classes))
	s := &Simulator{
		Horizon:          cfg.Duration,
		WarmUp:           cfg.EffectiveWarmUp(),
		EventQueue:       make(EventQueue, 0),
		cfg:              cfg,
		rng:              NewPartitionedRNG(NewSimulationKey(cfg.SeedOrDefault())),
		services:         make([]dist.Distribution, classes),
		capacity:         cfg.Capacity,
		servers:          make([]int, cfg.Servers),
		idle:             make([]int, 0, cfg.Servers),
		progressInterval: cfg.ProgressInterval,
	}
	switch cfg.EffectiveDiscipline() {
	case config.DisciplinePreemptive:
		s.preemptive, s.priority = true, true
	case config.DisciplinePriority:
		s.priority = true
	}
	levels := 1
	if s.priority {
		levels = classes
	}
	s.WaitQ = NewWaitQueue(levels)

	for i := range s.servers {
		s.servers[i] = -1
		// Pop from the end hands out server 0 first.
		s.idle = append(s.idle, cfg.Servers-1-i)
	}
	for i := range s.services {
		d, err := cfg.ClassService(i)
		if err != nil {
			return nil, fmt.Errorf("class %d service: %w", i, err)
		}
		s.services[i] = d
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.progressInterval <= 0 {
		s.progressInterval = 1
	}
	s.serviceRNG = s.rng.ForSubsystem(SubsystemService)
	if s.source == nil {
		var shares []float64
		for _, cl := range cfg.Classes {
			shares = append(shares, cl.Share)
		}
		s.source = NewPoissonSource(cfg.ArrivalRate, shares,
			s.rng.ForSubsystem(SubsystemArrivals), s.rng.ForSubsystem(SubsystemClasses))
	}
	return s, nil
}

// Run advances the clock until the horizon and returns the post-warm-up
// records. Jobs still queued or in service at the horizon are excluded.
// The context is checked between events; a cancelled run returns no result.
func (sim *Simulator) Run(ctx context.Context) (*Result, error) {
	if sim.ran {
		return nil, errors.New("simulator already ran")
	}
	sim.ran = true
	logrus.Infof("Simulation %s: lambda=%g servers=%d horizon=%g warm-up=%g seed=%d",
		sim.name(), sim.cfg.ArrivalRate, len(sim.servers), sim.Horizon, sim.WarmUp, sim.rng.Key())

	sim.scheduleNextArrival()
	if sim.progressFn != nil && sim.progressInterval < sim.Horizon {
		sim.Schedule(&ProgressEvent{time: sim.progressInterval})
	}

	for len(sim.EventQueue) > 0 {
		if sim.EventQueue.peek().Timestamp() >= sim.Horizon {
			break
		}
		if sim.events%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("simulation %s abandoned at t=%.3f: %w", sim.name(), sim.Clock, err)
			}
		}
		ev := heap.Pop(&sim.EventQueue).(eventEntry).event
		sim.advance(ev.Timestamp())
		ev.Execute(sim)
		sim.events++
	}
	sim.advance(sim.Horizon)
	if sim.progressFn != nil {
		sim.reportProgress()
	}

	res := sim.result()
	logrus.Infof("Simulation %s ended: %d records, %d discarded, %d in flight, %d blocked, %d events",
		sim.name(), len(res.Records), res.Discarded, res.InFlight, res.Blocked, res.Events)
	if len(res.Records) == 0 {
		return res, fmt.Errorf("%w: %s (horizon %g, warm-up %g)", ErrSimulationDivergence, sim.name(), sim.Horizon, sim.WarmUp)
	}
	return res, nil
}

// advance integrates queue and system occupancy over [warm-up, horizon] up to t.
func (sim *Simulator) advance(t float64) {
	lo := math.Max(sim.Clock, sim.WarmUp)
	hi := math.Min(t, sim.Horizon)
	if hi > lo {
		dt := hi - lo
		q, b := float64(sim.WaitQ.Len()), float64(sim.busy)
		sim.queueArea += q * dt
		sim.busyArea += b * dt
		sim.systemArea += (q + b) * dt
	}
	sim.Clock = t
}

func (sim *Simulator) scheduleNextArrival() {
	a, ok := sim.source.Next()
	if !ok || a.Time >= sim.Horizon {
		return
	}
	sim.Schedule(&ArrivalEvent{time: math.Max(a.Time, sim.Clock), arrival: a})
}

func (sim *Simulator) arrive(a Arrival) {
	inWindow := sim.Clock >= sim.WarmUp
	if inWindow {
		sim.arrivals++
	}
	occupancy := sim.busy + sim.WaitQ.Len()
	class := min(max(a.Class, 0), len(sim.services)-1)
	if sim.capacity > 0 && occupancy >= sim.capacity {
		if inWindow {
			sim.blocked++
		}
		sim.recordAdmission(-1, class, occupancy, trace.ReasonCapacity)
		return
	}

	id := len(sim.jobs)
	service := sim.services[class].Sample(sim.serviceRNG)
	sim.jobs = append(sim.jobs, job{
		class:     class,
		tag:       a.Tag,
		arrival:   sim.Clock,
		service:   service,
		remaining: service,
		queuedAt:  sim.Clock,
		server:    -1,
	})

	if n := len(sim.idle); n > 0 {
		srv := sim.idle[n-1]
		sim.idle = sim.idle[:n-1]
		sim.recordAdmission(id, class, occupancy, trace.ReasonIdleServer)
		sim.start(id, srv)
		return
	}
	if sim.preemptive {
		if srv := sim.preemptionTarget(class); srv >= 0 {
			sim.recordAdmission(id, class, occupancy, trace.ReasonPreempted)
			sim.preempt(srv, id)
			sim.start(id, srv)
			return
		}
	}
	sim.recordAdmission(id, class, occupancy, trace.ReasonQueued)
	sim.WaitQ.Enqueue(id, sim.level(class))
}

func (sim *Simulator) recordAdmission(id, class, occupancy int, reason string) {
	if !sim.trace.Enabled() {
		return
	}
	sim.trace.RecordAdmission(trace.AdmissionRecord{
		Job:       id,
		Class:     class,
		Clock:     sim.Clock,
		Admitted:  id >= 0,
		Occupancy: occupancy,
		Reason:    reason,
	})
}

// preemptionTarget returns the server running the lowest-priority job below
// class, preferring the most recently started slice, or -1.
func (sim *Simulator) preemptionTarget(class int) int {
	target := -1
	for srv, id := range sim.servers {
		if id < 0 {
			continue
		}
		j := &sim.jobs[id]
		if j.class <= class {
			continue
		}
		if target < 0 {
			target = srv
			continue
		}
		cur := &sim.jobs[sim.servers[target]]
		if j.class > cur.class || (j.class == cur.class && j.sliceAt > cur.sliceAt) {
			target = srv
		}
	}
	return target
}

// preempt pauses the job at srv, keeping its remaining work, and puts it at
// the front of its level. by is the preempting job.
func (sim *Simulator) preempt(srv, by int) {
	id := sim.servers[srv]
	j := &sim.jobs[id]
	j.remaining = math.Max(0, j.remaining-(sim.Clock-j.sliceAt))
	j.token++
	j.preempted++
	j.queuedAt = sim.Clock
	j.server = -1
	sim.servers[srv] = -1
	sim.busy--
	sim.WaitQ.PrependFront(id, sim.level(j.class))
	if sim.trace.Enabled() {
		sim.trace.RecordPreemption(trace.PreemptionRecord{
			Clock:       sim.Clock,
			Job:         by,
			Class:       sim.jobs[by].class,
			Victim:      id,
			VictimClass: j.class,
			Server:      srv,
			Remaining:   j.remaining,
		})
	}
}

func (sim *Simulator) start(id, srv int) {
	j := &sim.jobs[id]
	if !j.started {
		j.started = true
		j.start = sim.Clock
	}
	j.waited += sim.Clock - j.queuedAt
	j.sliceAt = sim.Clock
	j.server = srv
	sim.servers[srv] = id
	sim.busy++
	sim.Schedule(&DepartureEvent{time: sim.Clock + j.remaining, server: srv, job: id, token: j.token})
}

func (sim *Simulator) depart(srv int) {
	id := sim.servers[srv]
	j := &sim.jobs[id]
	j.remaining = 0
	j.server = -1
	msg := j.message(id, sim.Clock)
	sim.servers[srv] = -1
	sim.busy--

	if sim.onDepart != nil {
		sim.onDepart(msg)
	}
	if msg.Arrival >= sim.WarmUp {
		sim.records = append(sim.records, msg)
	} else {
		sim.discarded++
	}

	if next, ok := sim.WaitQ.Dequeue(); ok {
		sim.start(next, srv)
		return
	}
	sim.idle = append(sim.idle, srv)
}

func (sim *Simulator) level(class int) int {
	if !sim.priority {
		return 0
	}
	return class
}

func (sim *Simulator) reportProgress() {
	sim.progressFn(Progress{
		Clock:     math.Min(sim.Clock, sim.Horizon),
		Horizon:   sim.Horizon,
		Fraction:  math.Min(1, sim.Clock/sim.Horizon),
		Events:    sim.events,
		Completed: len(sim.records),
	})
}

func (sim *Simulator) name() string {
	if sim.cfg.Name == "" {
		return "queue"
	}
	return sim.cfg.Name
}

func (sim *Simulator) result() *Result {
	classes := make([]string, 0, len(sim.cfg.Classes))
	for _, cl := range sim.cfg.Classes {
		classes = append(classes, cl.Name)
	}
	return &Result{
		RunID:      uuid.NewString(),
		Name:       sim.cfg.Name,
		Seed:       int64(sim.rng.Key()),
		Records:    sim.records,
		Discarded:  sim.discarded,
		InFlight:   sim.busy + sim.WaitQ.Len(),
		Arrivals:   sim.arrivals,
		Blocked:    sim.blocked,
		WarmUp:     sim.WarmUp,
		Horizon:    sim.Horizon,
		QueueArea:  sim.queueArea,
		SystemArea: sim.systemArea,
		BusyArea:   sim.busyArea,
		Events:     sim.events,
		Servers:    len(sim.servers),
		Classes:    classes,
	}
}

// Simulate builds and runs one simulation.
func Simulate(ctx context.Context, cfg config.QueueConfig, opts ...Option) (*Result, error) {
	s, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}
