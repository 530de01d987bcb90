package cmd

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/queueing-sim/sim/analytic"
	"github.com/inference-sim/queueing-sim/sim/config"
	"github.com/inference-sim/queueing-sim/sim/tandem"
)

var (
	tandemConfigPath string // Pipeline YAML file
	tandemPreset     string // Named pipeline from the presets file
	tandemSimulate   bool   // Simulate instead of solving
)

type tandemOutput struct {
	Config     config.TandemConfig `json:"config"`
	Analysis   *tandem.Analysis    `json:"analysis"`
	Simulation *tandem.Summary     `json:"simulation,omitempty"`
}

var tandemCmd = &cobra.Command{
	Use:   "tandem",
	Short: "Model a broker and receiver joined by a lossy link",
	Long: "Solve (and optionally simulate) a two-stage pipeline. Failed transmissions are retried, " +
		"so the receiver carries lambda/(1-p) arrivals per second.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runTandem(cmd); err != nil {
			logrus.Fatalf("Tandem failed: %v", err)
		}
	},
}

func loadTandemConfig() (config.TandemConfig, error) {
	switch {
	case tandemConfigPath != "":
		cfg, err := config.LoadTandem(tandemConfigPath)
		if err != nil {
			return config.TandemConfig{}, err
		}
		return *cfg, nil
	case tandemPreset != "":
		return loadTandemPreset(presetsPath, tandemPreset)
	}
	return config.TandemConfig{}, errors.New("one of --config or --preset is required")
}

func runTandem(cmd *cobra.Command) error {
	cfg, err := loadTandemConfig()
	if err != nil {
		return err
	}
	method, err := analytic.ParseMethod(methodName)
	if err != nil {
		return err
	}
	a, err := tandem.Analyze(cfg, method)
	if err != nil {
		return err
	}
	out := tandemOutput{Config: cfg, Analysis: a}
	if !tandemSimulate {
		return writeOutput(cmd, out, a.Table())
	}

	res, err := tandem.Simulate(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	s := res.Summarize()
	out.Simulation = &s
	logrus.Infof("Tandem: analytic e2e %.6g, simulated %.6g over %d deliveries",
		a.EndToEnd, s.EndToEnd.Mean, s.Delivered)
	return writeOutput(cmd, out, s.Table())
}

func init() {
	tandemCmd.Flags().StringVar(&tandemConfigPath, "config", "", "Path to a tandem configuration YAML file")
	tandemCmd.Flags().StringVar(&tandemPreset, "preset", "", "Named pipeline from the presets file")
	tandemCmd.Flags().StringVar(&presetsPath, "presets", defaultPresetsPath, "Path to the presets YAML file")
	tandemCmd.Flags().StringVar(&methodName, "method", string(analytic.MethodAuto), "Approximation for general service (auto, kingman, whitt, allen-cunneen)")
	tandemCmd.Flags().BoolVar(&tandemSimulate, "simulate", false, "Also simulate the pipeline")
	rootCmd.AddCommand(tandemCmd)
}
