package sim

import (
	"math"
	"math/rand"
	"testing"
)

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// GIVEN two generators from the same key
	rng1 := NewPartitionedRNG(NewSimulationKey(42))
	rng2 := NewPartitionedRNG(NewSimulationKey(42))

	// WHEN the service stream is drawn from each
	// THEN the sequences are identical
	for i := 0; i < 5; i++ {
		a := rng1.ForSubsystem(SubsystemService).Float64()
		b := rng2.ForSubsystem(SubsystemService).Float64()
		if a != b {
			t.Errorf("value %d: got %v and %v, want identical", i, a, b)
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// GIVEN a run that draws many arrivals before its first service time
	busy := NewPartitionedRNG(NewSimulationKey(42))
	for i := 0; i < 100; i++ {
		busy.ForSubsystem(SubsystemArrivals).Float64()
	}

	// THEN the first service draw is unaffected
	fresh := NewPartitionedRNG(NewSimulationKey(42))
	if got, want := busy.ForSubsystem(SubsystemService).Float64(), fresh.ForSubsystem(SubsystemService).Float64(); got != want {
		t.Errorf("service stream depends on arrival draws: %v != %v", got, want)
	}
}

func TestPartitionedRNG_ArrivalsUseMasterSeed(t *testing.T) {
	for _, seed := range []int64{0, 42, math.MinInt64} {
		arrivals := NewPartitionedRNG(NewSimulationKey(seed)).ForSubsystem(SubsystemArrivals)
		direct := rand.New(rand.NewSource(seed))
		for i := 0; i < 10; i++ {
			if got, want := arrivals.Float64(), direct.Float64(); got != want {
				t.Fatalf("seed %d value %d: arrivals RNG = %v, direct = %v", seed, i, got, want)
			}
		}
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))
	if rng.ForSubsystem(SubsystemClasses) != rng.ForSubsystem(SubsystemClasses) {
		t.Error("ForSubsystem returned different instances for same name")
	}
	if len(rng.subsystems) != 1 {
		t.Errorf("have %d subsystems, want 1", len(rng.subsystems))
	}
}

func TestReplicationSeed(t *testing.T) {
	if got := ReplicationSeed(42, 0); got != 42 {
		t.Errorf("replication 0 seed = %d, want 42", got)
	}
	seen := map[int64]int{}
	for i := 0; i < 64; i++ {
		s := ReplicationSeed(42, i)
		if prev, ok := seen[s]; ok {
			t.Fatalf("replications %d and %d share seed %d", prev, i, s)
		}
		seen[s] = i
	}

	p := NewPartitionedRNG(NewSimulationKey(42))
	if p.ForReplication(3).Key() != SimulationKey(ReplicationSeed(42, 3)) {
		t.Error("ForReplication key does not match ReplicationSeed")
	}
}

func TestFnv1a64_NoCollisionAmongSubsystems(t *testing.T) {
	names := []string{SubsystemArrivals, SubsystemService, SubsystemClasses, SubsystemLink, SubsystemReplication(1), ""}
	hashes := make(map[int64]string)
	for _, name := range names {
		h := fnv1a64(name)
		if existing, ok := hashes[h]; ok {
			t.Errorf("hash collision: %q and %q both hash to %d", name, existing, h)
		}
		hashes[h] = name
	}
}

func BenchmarkPartitionedRNG_ForSubsystem_CacheHit(b *testing.B) {
	rng := NewPartitionedRNG(NewSimulationKey(42))
	rng.ForSubsystem(SubsystemService)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rng.ForSubsystem(SubsystemService)
	}
}
