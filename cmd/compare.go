package cmd

import (
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/queueing-sim/sim"
	"github.com/inference-sim/queueing-sim/sim/analytic"
	"github.com/inference-sim/queueing-sim/sim/config"
	"github.com/inference-sim/queueing-sim/sim/stats"
)

var compareReplications int

type compareOutput struct {
	Config     config.QueueConfig  `json:"config"`
	Measured   stats.Interval      `json:"measured_wait"`
	Comparison analytic.Comparison `json:"comparison"`
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Rank the M/G/N approximations against simulated waiting time",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCompare(cmd); err != nil {
			logrus.Fatalf("Compare failed: %v", err)
		}
	},
}

func runCompare(cmd *cobra.Command) error {
	cfg, err := loadQueueConfig(cmd)
	if err != nil {
		return err
	}
	results, err := sim.Replicate(commandContext(cmd), cfg, compareReplications, workers)
	if err != nil {
		return err
	}
	rs, err := stats.SummarizeReplications(results, confidenceLevel)
	if err != nil {
		return err
	}
	cmp, err := analytic.Compare(cfg, rs.MeanWait.Mean)
	if err != nil {
		return err
	}
	for _, e := range cmp.Entries {
		if !rs.MeanWait.Contains(e.Predicted) {
			logrus.Infof("%s prediction %.6g is outside the %.0f%% interval [%.6g, %.6g]",
				e.Method, e.Predicted, 100*rs.MeanWait.Level, rs.MeanWait.Lower, rs.MeanWait.Upper)
		}
	}
	logrus.Infof("Best approximation: %s", cmp.Best)
	return writeOutput(cmd, compareOutput{Config: cfg, Measured: rs.MeanWait, Comparison: cmp}, cmp.Table())
}

func init() {
	addQueueFlags(compareCmd)
	compareCmd.Flags().IntVar(&compareReplications, "replications", 5, "Independent replications measuring Wq")
	compareCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Replications run concurrently")
	compareCmd.Flags().Float64Var(&confidenceLevel, "level", stats.DefaultLevel, "Two-sided confidence level")
	rootCmd.AddCommand(compareCmd)
}
