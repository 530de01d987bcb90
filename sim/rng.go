package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemArrivals drives inter-arrival times. Uses the master seed
	// directly, so a run's arrival stream equals rand.NewSource(seed).
	SubsystemArrivals = "arrivals"

	// SubsystemService drives service-time draws.
	SubsystemService = "service"

	// SubsystemClasses drives priority-class assignment of arrivals.
	SubsystemClasses = "classes"

	// SubsystemLink drives transmission failures between tandem stages.
	SubsystemLink = "link"

	// SubsystemBootstrap drives resampling in tail estimation.
	SubsystemBootstrap = "bootstrap"

	// SubsystemReceiver seeds the second stage of a tandem pipeline.
	SubsystemReceiver = "receiver"
)

// SubsystemReplication returns the subsystem name for replication i.
func SubsystemReplication(i int) string {
	return fmt.Sprintf("replication_%d", i)
}

// ReplicationSeed derives the master seed of replication i. Replication 0
// keeps the configured seed, so a single run and the first replication agree.
func ReplicationSeed(master int64, i int) int64 {
	if i == 0 {
		return master
	}
	return DeriveSeed(master, SubsystemReplication(i))
}

// DeriveSeed returns master XOR fnv1a64(subsystem), the seed a
// PartitionedRNG would use for that subsystem.
func DeriveSeed(master int64, subsystem string) int64 {
	return master ^ fnv1a64(subsystem)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemArrivals: uses masterSeed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Each run owns its own PartitionedRNG.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	derivedSeed := int64(p.key)
	if name != SubsystemArrivals {
		derivedSeed ^= fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// ForReplication returns a fresh PartitionedRNG for replication i.
func (p *PartitionedRNG) ForReplication(i int) *PartitionedRNG {
	return NewPartitionedRNG(NewSimulationKey(ReplicationSeed(int64(p.key), i)))
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
