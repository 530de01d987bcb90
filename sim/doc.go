// Package sim provides the discrete-event simulation engine for multi-server
// queues.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - message.go: the job arena and the immutable Message record
//   - event.go: arrival, departure and progress events and the event heap
//   - simulator.go: the event loop, server assignment, priority and preemption
//
// # Architecture
//
// The sim package holds the engine; models and analysis live in sub-packages:
//   - sim/dist/: service-time distributions with exact moments
//   - sim/config/: validated queue, tandem and threading configuration
//   - sim/analytic/: closed-form and approximate M/M/N, M/G/N, M/M/N/K solvers
//   - sim/stats/: summaries, confidence intervals and Little's Law checks
//   - sim/evt/: peaks-over-threshold tail estimation
//   - sim/tandem/: two-stage pipelines over a lossy link
//
// # Determinism
//
// Each run owns a PartitionedRNG derived from its seed, and simultaneous
// events are ordered by (timestamp, event type, sequence number). A run with
// the same configuration and seed yields identical records. Replications
// derive independent seeds with ReplicationSeed and run in parallel.
package sim
