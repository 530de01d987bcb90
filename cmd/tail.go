package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/queueing-sim/sim"
	"github.com/inference-sim/queueing-sim/sim/analytic"
	"github.com/inference-sim/queueing-sim/sim/evt"
)

var (
	tailInput     string  // File of observed durations
	tailMetric    string  // response or wait, when simulating
	tailQuantile  float64 // Target quantile
	tailThreshold float64 // POT threshold percentile
	tailResamples int     // Bootstrap resamples
)

type tailOutput struct {
	Source string     `json:"source"`
	Report evt.Report `json:"report"`
	// AnalyticP99 is the closed-form normal-approximation P99 of the
	// simulated queue, for contrast with the tail fit.
	AnalyticP99 *float64 `json:"analytic_p99,omitempty"`
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Estimate extreme percentiles with peaks-over-threshold",
	Long: "Fit a Generalized Pareto tail to observed durations (--input) or to simulated response times, " +
		"and report the GPD, Hill, bootstrap and normal-approximation estimates.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runTail(cmd); err != nil {
			logrus.Fatalf("Tail estimation failed: %v", err)
		}
	},
}

func runTail(cmd *cobra.Command) error {
	var samples []float64
	out := tailOutput{Source: tailInput}
	if tailInput != "" {
		f, err := os.Open(tailInput)
		if err != nil {
			return fmt.Errorf("opening samples: %w", err)
		}
		defer f.Close()
		if samples, err = readSamples(f); err != nil {
			return fmt.Errorf("%s: %w", tailInput, err)
		}
	} else {
		cfg, err := loadQueueConfig(cmd)
		if err != nil {
			return err
		}
		res, err := sim.Simulate(commandContext(cmd), cfg)
		if err != nil {
			return err
		}
		switch tailMetric {
		case "response":
			samples = res.Responses()
		case "wait":
			samples = res.Waits()
		default:
			return fmt.Errorf("unknown metric %q (want response or wait)", tailMetric)
		}
		out.Source = "simulated " + tailMetric
		if m, err := analytic.Solve(cfg, analytic.MethodAuto); err == nil && tailMetric == "response" && !math.IsInf(m.P99Response, 0) {
			out.AnalyticP99 = &m.P99Response
		}
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed)).ForSubsystem(sim.SubsystemBootstrap)
	report, err := evt.EstimateTail(samples, evt.Options{
		Percentile:   tailQuantile,
		ThresholdPct: tailThreshold,
		Resamples:    tailResamples,
		Level:        confidenceLevel,
	}, rng)
	if err != nil {
		return err
	}
	out.Report = report
	logrus.Infof("P%g: gpd=%.6g hill=%.6g bootstrap=%.6g normal=%.6g",
		100*report.Options.Percentile, report.GPD, report.Hill, report.Bootstrap.Estimate, report.Normal)
	return writeOutput(cmd, out, report.Table())
}

// readSamples parses the first column of CSV or newline-separated input.
// Lines whose first field is not a number, such as a header, are skipped.
func readSamples(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var samples []float64
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			continue
		}
		samples = append(samples, v)
	}
	if len(samples) == 0 {
		return nil, errors.New("no numeric samples")
	}
	return samples, nil
}

func init() {
	addQueueFlags(tailCmd)
	tailCmd.Flags().StringVar(&tailInput, "input", "", "CSV or newline-separated durations (first column); simulate the queue when empty")
	tailCmd.Flags().StringVar(&tailMetric, "metric", "response", "Simulated sample to fit (response, wait)")
	tailCmd.Flags().Float64Var(&tailQuantile, "quantile", 0.99, "Target quantile in (0, 1)")
	tailCmd.Flags().Float64Var(&tailThreshold, "threshold", evt.DefaultThresholdPct, "Threshold percentile for peaks-over-threshold")
	tailCmd.Flags().IntVar(&tailResamples, "resamples", evt.DefaultResamples, "Bootstrap resamples")
	tailCmd.Flags().Float64Var(&confidenceLevel, "level", 0.95, "Bootstrap confidence level")
	rootCmd.AddCommand(tailCmd)
}
