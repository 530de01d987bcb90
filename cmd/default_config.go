package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/inference-sim/queueing-sim/sim/config"
)

// defaultPresetsPath is where presets are looked up relative to the working directory.
const defaultPresetsPath = "presets.yaml"

// Presets represents the full presets.yaml structure.
// All top-level sections must be listed to satisfy strict parsing.
type Presets struct {
	Version string                         `yaml:"version"`
	Queues  map[string]config.QueueConfig  `yaml:"queues"`
	Tandems map[string]config.TandemConfig `yaml:"tandems"`
}

// loadPresets parses a presets file with strict field checking.
func loadPresets(path string) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading presets: %w", err)
	}
	var p Presets
	if err := config.Decode(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// loadPreset returns the named queue.
func loadPreset(path, name string) (config.QueueConfig, error) {
	p, err := loadPresets(path)
	if err != nil {
		return config.QueueConfig{}, err
	}
	q, ok := p.Queues[name]
	if !ok {
		return config.QueueConfig{}, fmt.Errorf("preset %q not found in %s (have %v)", name, path, presetNames(p.Queues))
	}
	if q.Name == "" {
		q.Name = name
	}
	return q, nil
}

// loadTandemPreset returns the named pipeline.
func loadTandemPreset(path, name string) (config.TandemConfig, error) {
	p, err := loadPresets(path)
	if err != nil {
		return config.TandemConfig{}, err
	}
	t, ok := p.Tandems[name]
	if !ok {
		return config.TandemConfig{}, fmt.Errorf("tandem preset %q not found in %s (have %v)", name, path, presetNames(p.Tandems))
	}
	return t, nil
}

func presetNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
