package cmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/queueing-sim/sim/analytic"
	"github.com/inference-sim/queueing-sim/sim/config"
	"github.com/inference-sim/queueing-sim/sim/dist"
)

const testPresets = "../presets.yaml"

// resetFlags restores every flag to its default so tests do not leak state
// through the package-level flag variables.
func resetFlags() {
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())
	return buf.String()
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), out)
	return m
}

func withFlags(t *testing.T, c *cobra.Command, kv ...string) {
	t.Helper()
	resetFlags()
	for i := 0; i < len(kv); i += 2 {
		require.NoError(t, c.Flags().Set(kv[i], kv[i+1]))
	}
}

func TestSolve_DefaultsAreErlangC(t *testing.T) {
	// GIVEN the default flags (lambda=100, N=10, mu=12)
	out := decode(t, execute(t, "solve"))

	// THEN the Erlang-C mean wait is reported
	metrics := out["metrics"].(map[string]any)
	assert.InDelta(t, 0.024380530400296512, metrics["mean_wait"], 1e-12)
	assert.Contains(t, metrics["methods"], "M/M/N Erlang-C")
}

func TestSolve_CSV(t *testing.T) {
	out := execute(t, "solve", "--format", "csv")
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"metric", "value"}, rows[0])
	assert.Equal(t, []string{"servers", "10"}, rows[2])
}

func TestSolve_HeavyTailMethod(t *testing.T) {
	out := decode(t, execute(t, "solve", "--service", "pareto", "--shape", "2.5", "--method", "whitt"))
	metrics := out["metrics"].(map[string]any)
	assert.Contains(t, fmt.Sprint(metrics["methods"]), "Whitt")
	assert.Equal(t, false, metrics["low_confidence"])
}

func TestSolve_UnstableIsAnError(t *testing.T) {
	withFlags(t, solveCmd, "lambda", "200")
	err := runSolve(solveCmd)
	assert.True(t, errors.Is(err, analytic.ErrUnstable))
}

func TestLoadQueueConfig_FlagsOverrideFile(t *testing.T) {
	// GIVEN a config file and an explicit --servers flag
	path := filepath.Join(t.TempDir(), "queue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("arrival_rate: 50\nservers: 8\nservice_rate: 10\nduration: 100\n"), 0o644))
	withFlags(t, solveCmd, "config", path, "servers", "12")

	cfg, err := loadQueueConfig(solveCmd)
	require.NoError(t, err)

	// THEN only the set flag overrides the file
	assert.Equal(t, 12, cfg.Servers)
	assert.Equal(t, 50.0, cfg.ArrivalRate)
	assert.Equal(t, 100.0, cfg.Duration)
	assert.Nil(t, cfg.Seed)
}

func TestLoadQueueConfig_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("arrival_rate: 50\nserverz: 8\n"), 0o644))
	withFlags(t, solveCmd, "config", path)

	_, err := loadQueueConfig(solveCmd)
	assert.Error(t, err)
}

func TestLoadQueueConfig_ServiceFlags(t *testing.T) {
	withFlags(t, solveCmd, "service", "erlang", "shape", "4", "service-mean", "0.05")
	cfg, err := loadQueueConfig(solveCmd)
	require.NoError(t, err)
	require.NotNil(t, cfg.Service)
	assert.Equal(t, dist.Spec{Type: dist.KindErlang, Mean: 0.05, Shape: 4}, *cfg.Service)
}

func TestPresets_AllValid(t *testing.T) {
	p, err := loadPresets(testPresets)
	require.NoError(t, err)
	require.NotEmpty(t, p.Queues)
	for name, q := range p.Queues {
		assert.NoError(t, q.ValidateSimulation(), "queue preset %s", name)
	}
	for name, tc := range p.Tandems {
		assert.NoError(t, tc.ValidateSimulation(), "tandem preset %s", name)
	}

	q, err := loadPreset(testPresets, "broker")
	require.NoError(t, err)
	assert.Equal(t, "broker", q.Name)

	_, err = loadPreset(testPresets, "nope")
	assert.ErrorContains(t, err, "broker-bounded")
}

func TestSimulate_SingleRunCSV(t *testing.T) {
	out := execute(t, "simulate", "--lambda", "10", "--servers", "1", "--mu", "12", "--duration", "100", "--format", "csv")
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"scope", "metric", "value"}, rows[0])
	assert.Equal(t, "wait_count", rows[1][1])
}

func TestSimulate_TraceAndLittlesLaw(t *testing.T) {
	out := decode(t, execute(t, "simulate", "--preset", "broker-priority", "--presets", testPresets,
		"--duration", "100", "--trace-level", "decisions"))

	tr := out["trace"].(map[string]any)
	assert.Greater(t, tr["total_decisions"], 0.0)
	law := out["littles_law"].(map[string]any)
	assert.Less(t, law["system"].(map[string]any)["relative_error"], 0.15)
	summary := out["summary"].(map[string]any)
	assert.Len(t, summary["classes"], 2)
}

func TestSimulate_Replications(t *testing.T) {
	out := decode(t, execute(t, "simulate", "--duration", "100", "--replications", "3", "--workers", "2"))
	reps := out["replications"].(map[string]any)
	assert.Equal(t, 3.0, reps["runs"])
	assert.Equal(t, float64(config.DefaultSeed), reps["seeds"].([]any)[0])
}

func TestSimulate_RecordsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")
	out := execute(t, "simulate", "--lambda", "5", "--servers", "1", "--mu", "10", "--duration", "20",
		"--records", "--format", "csv", "--out", path)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "id", rows[0][0])
	assert.Greater(t, len(rows), 10)
}

func TestSimulate_InvalidTraceLevel(t *testing.T) {
	withFlags(t, simulateCmd, "trace-level", "verbose")
	assert.Error(t, runSimulate(simulateCmd))
}

func TestCompare_RanksMethods(t *testing.T) {
	out := decode(t, execute(t, "compare", "--service", "erlang", "--shape", "2", "--duration", "200", "--replications", "3"))
	cmp := out["comparison"].(map[string]any)
	assert.Len(t, cmp["entries"], len(analytic.Methods))
	assert.NotEmpty(t, cmp["best"])
}

func TestTandem_PresetUsesEffectiveRate(t *testing.T) {
	out := decode(t, execute(t, "tandem", "--preset", "broker-to-receiver", "--presets", testPresets))
	a := out["analysis"].(map[string]any)
	assert.Equal(t, 125.0, a["effective_arrival_rate"])
	assert.Nil(t, out["simulation"])
}

func TestTandem_RequiresConfig(t *testing.T) {
	resetFlags()
	assert.Error(t, runTandem(tandemCmd))
}

func TestTail_FromInputFile(t *testing.T) {
	// GIVEN 5000 Pareto(2.5) samples with a header line
	d, err := dist.NewPareto(2.5, 1)
	require.NoError(t, err)
	var b strings.Builder
	b.WriteString("duration\n")
	for _, v := range dist.Draw(d, rand.New(rand.NewSource(4)), 5000) {
		fmt.Fprintf(&b, "%g\n", v)
	}
	path := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	out := decode(t, execute(t, "tail", "--input", path, "--resamples", "50"))

	report := out["report"].(map[string]any)
	assert.Equal(t, 5000.0, report["n"])
	assert.InDelta(t, d.Quantile(0.99), report["gpd"], 0.2*d.Quantile(0.99))
	assert.Nil(t, out["analytic_p99"])
}

func TestTail_FromSimulation(t *testing.T) {
	out := decode(t, execute(t, "tail", "--duration", "200", "--resamples", "50"))
	assert.Equal(t, "simulated response", out["source"])
	assert.NotNil(t, out["analytic_p99"])
}

func TestReadSamples(t *testing.T) {
	got, err := readSamples(strings.NewReader("value,class\n0.5,a\n 1.5,b\n\nnot-a-number\n2\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5, 2}, got)

	_, err = readSamples(strings.NewReader("a\nb\n"))
	assert.Error(t, err)
}

func TestRoot_RejectsUnknownFormat(t *testing.T) {
	resetFlags()
	rootCmd.SetArgs([]string{"solve", "--format", "xml"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil); rootCmd.SetErr(nil) })
	assert.Error(t, rootCmd.Execute())
}
