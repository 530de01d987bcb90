package cmd

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/queueing-sim/sim"
	"github.com/inference-sim/queueing-sim/sim/config"
	"github.com/inference-sim/queueing-sim/sim/stats"
	"github.com/inference-sim/queueing-sim/sim/trace"
)

var (
	replications     int     // Independent replications
	workers          int     // Replications run concurrently
	confidenceLevel  float64 // Two-sided confidence level
	traceLevel       string  // Decision trace verbosity
	traceLimit       int     // Maximum trace records per kind
	includeRecords   bool    // Emit per-message records
	progressInterval float64 // Simulated seconds between progress logs
)

type simulateOutput struct {
	Config       config.QueueConfig        `json:"config"`
	Summary      *stats.ResultSummary      `json:"summary,omitempty"`
	LittlesLaw   *littlesOutput            `json:"littles_law,omitempty"`
	Replications *stats.ReplicationSummary `json:"replications,omitempty"`
	Trace        *trace.TraceSummary       `json:"trace,omitempty"`
	Records      []sim.Message             `json:"records,omitempty"`
}

type littlesOutput struct {
	Queue  stats.LittleCheck `json:"queue"`
	System stats.LittleCheck `json:"system"`
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the discrete-event simulation of a queue",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSimulate(cmd); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
	},
}

func runSimulate(cmd *cobra.Command) error {
	if !trace.IsValidTraceLevel(traceLevel) {
		return fmt.Errorf("unknown trace level %q", traceLevel)
	}
	cfg, err := loadQueueConfig(cmd)
	if err != nil {
		return err
	}
	if replications > 1 {
		return runReplications(cmd, cfg)
	}

	var opts []sim.Option
	var st *trace.SimulationTrace
	if trace.TraceLevel(traceLevel) == trace.TraceLevelDecisions {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions, Limit: traceLimit})
		opts = append(opts, sim.WithTrace(st))
	}
	if progressInterval > 0 {
		opts = append(opts, sim.WithProgress(logProgress, progressInterval))
	}
	res, err := sim.Simulate(commandContext(cmd), cfg, opts...)
	if err != nil {
		return err
	}

	summary := stats.SummarizeResult(res)
	queue, system := stats.LittlesLaw(res)
	if err := stats.AssertLittlesLaw(res, 0.05); err != nil {
		logrus.Warnf("Run %s: %v", res.RunID, err)
	}
	out := simulateOutput{
		Config:     cfg,
		Summary:    &summary,
		LittlesLaw: &littlesOutput{Queue: queue, System: system},
	}
	if st != nil {
		out.Trace = trace.Summarize(st)
	}
	table := summary.Table()
	if includeRecords {
		out.Records = res.Records
		table = res.Table()
	}
	return writeOutput(cmd, out, table)
}

func runReplications(cmd *cobra.Command, cfg config.QueueConfig) error {
	if traceLevel != "" && trace.TraceLevel(traceLevel) != trace.TraceLevelNone {
		logrus.Warnf("--trace-level is ignored with %d replications", replications)
	}
	results, err := sim.Replicate(commandContext(cmd), cfg, replications, workers)
	if err != nil {
		return err
	}
	rs, err := stats.SummarizeReplications(results, confidenceLevel)
	if err != nil {
		return err
	}
	logrus.Infof("%d replications: Wq = %.6g ± %.3g (%.0f%%)",
		rs.Runs, rs.MeanWait.Mean, rs.MeanWait.HalfWidth, 100*rs.MeanWait.Level)
	return writeOutput(cmd, simulateOutput{Config: cfg, Replications: &rs}, rs.Table())
}

func logProgress(p sim.Progress) {
	logrus.Infof("Progress %5.1f%%: t=%.1f/%.1f events=%d completed=%d",
		100*p.Fraction, p.Clock, p.Horizon, p.Events, p.Completed)
}

func init() {
	addQueueFlags(simulateCmd)
	simulateCmd.Flags().IntVar(&replications, "replications", 1, "Independent replications (>1 reports confidence intervals)")
	simulateCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Replications run concurrently")
	simulateCmd.Flags().Float64Var(&confidenceLevel, "level", stats.DefaultLevel, "Two-sided confidence level")
	simulateCmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelNone), "Decision trace level (none, decisions)")
	simulateCmd.Flags().IntVar(&traceLimit, "trace-limit", 0, "Maximum trace records per kind (0 = unlimited)")
	simulateCmd.Flags().BoolVar(&includeRecords, "records", false, "Include per-message records in the output")
	simulateCmd.Flags().Float64Var(&progressInterval, "progress", 0, "Log progress every this many simulated seconds (0 = off)")
	rootCmd.AddCommand(simulateCmd)
}
