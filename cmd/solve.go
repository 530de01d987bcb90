package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/queueing-sim/sim/analytic"
	"github.com/inference-sim/queueing-sim/sim/config"
)

var methodName string // Waiting-time approximation

type solveOutput struct {
	Config    config.QueueConfig  `json:"config"`
	Metrics   analytic.Metrics    `json:"metrics"`
	Threading *analytic.Threading `json:"threading,omitempty"`
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Compute steady-state metrics from closed-form and approximate formulas",
	Long: "Solve a queue analytically: Erlang-C for M/M/N, the birth-death chain for finite capacity, " +
		"and the Kingman, Whitt or Allen-Cunneen approximation for general service.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSolve(cmd); err != nil {
			logrus.Fatalf("Solve failed: %v", err)
		}
	},
}

func runSolve(cmd *cobra.Command) error {
	cfg, err := loadQueueConfig(cmd)
	if err != nil {
		return err
	}
	method, err := analytic.ParseMethod(methodName)
	if err != nil {
		return err
	}
	m, err := analytic.Solve(cfg, method)
	if err != nil {
		return err
	}
	out := solveOutput{Config: cfg, Metrics: m}
	if out.Threading, err = analytic.SolveThreading(cfg); err != nil {
		return err
	}
	logrus.Infof("Solved %v: rho=%.4f Wq=%.6g R=%.6g", m.Methods, m.Utilization, m.MeanWait, m.MeanResponse)
	return writeOutput(cmd, out, m.Table())
}

func init() {
	addQueueFlags(solveCmd)
	solveCmd.Flags().StringVar(&methodName, "method", string(analytic.MethodAuto), "Approximation for general service (auto, kingman, whitt, allen-cunneen)")
	rootCmd.AddCommand(solveCmd)
}
