package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/queueing-sim/sim/dist"
)

func baseConfig() QueueConfig {
	return QueueConfig{ArrivalRate: 100, Servers: 10, ServiceRate: 12, Duration: 1000, WarmUp: 100}
}

func requireViolation(t *testing.T, err error, field string) *ValidationError {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Has(field), "expected violation on %q, got %v", field, ve.Violations)
	return ve
}

func TestValidate_StableConfigPasses(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.ValidateSimulation())

	rho, err := cfg.Utilization()
	require.NoError(t, err)
	assert.InDelta(t, 100.0/120.0, rho, 1e-12)
}

func TestValidate_RejectsUnstableUnboundedQueue(t *testing.T) {
	for _, lambda := range []float64{120, 150} {
		cfg := baseConfig()
		cfg.ArrivalRate = lambda
		requireViolation(t, cfg.Validate(), "utilization")
	}
}

func TestValidate_FiniteCapacityToleratesOverload(t *testing.T) {
	// GIVEN rho = 1.5 but a bounded system
	cfg := baseConfig()
	cfg.ArrivalRate = 180
	cfg.Capacity = 20
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ReportsEveryTagViolation(t *testing.T) {
	cfg := QueueConfig{ArrivalRate: -1, Servers: 0, ServiceRate: -3}
	ve := requireViolation(t, cfg.Validate(), "arrival_rate")
	assert.True(t, ve.Has("servers"))
	assert.True(t, ve.Has("service_rate"))
}

func TestValidate_ParetoAlphaAtMostOneIsConfigError(t *testing.T) {
	cfg := baseConfig()
	cfg.Service = &dist.Spec{Type: dist.KindPareto, Mean: 1.0 / 12, Shape: 1}
	requireViolation(t, cfg.Validate(), "service")
}

func TestValidate_HeavyTailAlphaAccepted(t *testing.T) {
	cfg := baseConfig()
	cfg.Service = &dist.Spec{Type: dist.KindPareto, Mean: 1.0 / 12, Shape: 1.8}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ClassShares(t *testing.T) {
	cfg := baseConfig()
	cfg.Discipline = DisciplinePriority
	cfg.Classes = []ClassConfig{{Name: "gold", Share: 0.3}, {Name: "bronze", Share: 0.3}}
	requireViolation(t, cfg.Validate(), "classes")

	cfg.Classes[1].Share = 0.7
	assert.NoError(t, cfg.Validate())
}

func TestValidate_PriorityNeedsClasses(t *testing.T) {
	cfg := baseConfig()
	cfg.Discipline = DisciplinePreemptive
	requireViolation(t, cfg.Validate(), "classes")
}

func TestValidate_UnknownDiscipline(t *testing.T) {
	cfg := baseConfig()
	cfg.Discipline = "lifo"
	requireViolation(t, cfg.Validate(), "discipline")
}

func TestValidate_ClassFieldsUseYAMLNames(t *testing.T) {
	cfg := baseConfig()
	cfg.Discipline = DisciplinePriority
	cfg.Classes = []ClassConfig{{Name: "", Share: 1}}
	requireViolation(t, cfg.Validate(), "classes[0].name")
}

func TestValidate_CapacityBelowServers(t *testing.T) {
	cfg := baseConfig()
	cfg.Capacity = 5
	requireViolation(t, cfg.Validate(), "capacity")
}

func TestValidateSimulation_NeedsDuration(t *testing.T) {
	cfg := baseConfig()
	cfg.Duration = 0
	assert.NoError(t, cfg.Validate())
	requireViolation(t, cfg.ValidateSimulation(), "duration")

	cfg.Duration = 100
	cfg.WarmUp = 100
	requireViolation(t, cfg.ValidateSimulation(), "warm_up")
}

func TestValidate_Threading(t *testing.T) {
	cfg := baseConfig()
	cfg.Threading = &ThreadingConfig{Policy: ThreadingDedicated, Threads: 8}
	requireViolation(t, cfg.Validate(), "threading.threads_per_connection")

	cfg.Threading = &ThreadingConfig{Policy: "pooled", Threads: 8}
	requireViolation(t, cfg.Validate(), "threading.policy")
}

func TestTandem_ReceiverUsesEffectiveArrivalRate(t *testing.T) {
	// GIVEN lambda = 100 and p = 0.2
	tc := TandemConfig{
		Broker:             baseConfig(),
		Receiver:           QueueConfig{Servers: 12, ServiceRate: 12},
		LinkDelay:          0.001,
		FailureProbability: 0.2,
	}

	// THEN the receiver sees exactly 125 arrivals per unit time
	assert.Equal(t, 125.0, tc.EffectiveArrivalRate())
	assert.Equal(t, 125.0, tc.ReceiverConfig().ArrivalRate)
	assert.NoError(t, tc.Validate())

	// WHEN the receiver would be stable at lambda but not at Lambda2
	tc.Receiver.Servers = 9 // 100/108 < 1 but 125/108 > 1
	requireViolation(t, tc.Validate(), "receiver.utilization")
}

func TestTandem_FailureProbabilityRange(t *testing.T) {
	tc := TandemConfig{Broker: baseConfig(), Receiver: baseConfig(), FailureProbability: 1}
	requireViolation(t, tc.Validate(), "failure_probability")
}

func TestDefaults(t *testing.T) {
	cfg := baseConfig()
	cfg.WarmUp = 0
	assert.Equal(t, DefaultSeed, cfg.SeedOrDefault())
	assert.Equal(t, 100.0, cfg.EffectiveWarmUp())
	assert.Equal(t, 1.0, cfg.EffectiveArrivalCV2())
	assert.Equal(t, DisciplineFIFO, cfg.EffectiveDiscipline())
	assert.Equal(t, int64(7), cfg.WithSeed(7).SeedOrDefault())
	assert.Nil(t, cfg.Seed, "WithSeed must not mutate the receiver")
}

func TestLoad_StrictYAML(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
arrival_rate: 100
servers: 10
service:
  type: pareto
  mean: 0.0833
  shape: 2.5
duration: 1000
warm_up: 100
seed: 7
`), 0o644))

	cfg, err := Load(good)
	require.NoError(t, err)
	assert.Equal(t, dist.KindPareto, cfg.Service.Type)
	assert.Equal(t, int64(7), cfg.SeedOrDefault())
	assert.NoError(t, cfg.ValidateSimulation())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("arrival_rate: 1\nservrs: 2\n"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err, "unknown keys must be rejected")
}
