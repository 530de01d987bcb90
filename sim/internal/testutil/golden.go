// Package testutil provides shared test infrastructure for the queueing engine.
// It holds the golden dataset of reference queue values and assertion helpers
// used across the sim/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/inference-sim/queueing-sim/sim/config"
	"github.com/inference-sim/queueing-sim/sim/dist"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one queue with reference metric values.
type GoldenTestCase struct {
	Name string `json:"name"`
	// Model is "mmn", "mmnk" or "mgn".
	Model       string     `json:"model"`
	Method      string     `json:"method,omitempty"`
	ArrivalRate float64    `json:"arrival_rate"`
	Servers     int        `json:"servers"`
	ServiceRate float64    `json:"service_rate,omitempty"`
	Service     *dist.Spec `json:"service,omitempty"`
	Capacity    int        `json:"capacity,omitempty"`
	// Metrics maps metric JSON names to expected values.
	Metrics map[string]float64 `json:"metrics"`
}

// QueueConfig returns the case as a configuration.
func (c GoldenTestCase) QueueConfig() config.QueueConfig {
	return config.QueueConfig{
		Name:        c.Name,
		ArrivalRate: c.ArrivalRate,
		Servers:     c.Servers,
		ServiceRate: c.ServiceRate,
		Service:     c.Service,
		Capacity:    c.Capacity,
	}
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
