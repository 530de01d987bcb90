package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/queueing-sim/sim/config"
	"github.com/inference-sim/queueing-sim/sim/dist"
)

var (
	logLevel    string // Log verbosity level
	configPath  string // YAML configuration file
	presetName  string // Named configuration from the presets file
	presetsPath string // Presets file
	format      string // Output format: json or csv
	outPath     string // Output file; stdout when empty

	// Queue flags, applied over the loaded configuration when set
	arrivalRate  float64 // Arrivals per second (lambda)
	servers      int     // Number of servers (N)
	serviceRate  float64 // Per-server service rate (mu) for exponential service
	serviceType  string  // Service distribution variant
	serviceMean  float64 // Mean service time in seconds
	serviceShape float64 // Shape parameter of the service distribution
	arrivalCV2   float64 // Squared CV of inter-arrival times
	capacity     int     // System capacity K; 0 is unbounded
	discipline   string  // fifo, priority or preemptive
	duration     float64 // Simulated seconds
	warmUp       float64 // Warm-up seconds discarded from statistics
	seed         int64   // Master seed
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "queueing-sim",
	Short: "Analytic and discrete-event performance models of multi-server queues",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		logrus.SetLevel(level)
		if format != formatJSON && format != formatCSV {
			return fmt.Errorf("unknown format %q (want %s or %s)", format, formatJSON, formatCSV)
		}
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the CLI root command. An interrupt cancels a running
// simulation between events.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// addQueueFlags registers the single-queue flags on cmd.
func addQueueFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a queue configuration YAML file")
	cmd.Flags().StringVar(&presetName, "preset", "", "Named queue from the presets file")
	cmd.Flags().StringVar(&presetsPath, "presets", defaultPresetsPath, "Path to the presets YAML file")

	cmd.Flags().Float64Var(&arrivalRate, "lambda", 100, "Arrival rate (jobs per second)")
	cmd.Flags().IntVar(&servers, "servers", 10, "Number of servers")
	cmd.Flags().Float64Var(&serviceRate, "mu", 12, "Per-server service rate for exponential service")
	cmd.Flags().StringVar(&serviceType, "service", "", "Service distribution (exponential, erlang, pareto, lognormal, weibull, deterministic)")
	cmd.Flags().Float64Var(&serviceMean, "service-mean", 0, "Mean service time in seconds (default 1/mu)")
	cmd.Flags().Float64Var(&serviceShape, "shape", 0, "Service shape: erlang k, pareto alpha, lognormal sigma, weibull k")
	cmd.Flags().Float64Var(&arrivalCV2, "arrival-cv2", 0, "Squared CV of inter-arrival times (default 1, Poisson)")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "System capacity K including jobs in service (0 = unbounded)")
	cmd.Flags().StringVar(&discipline, "discipline", "", "Queue discipline for class-based configs (fifo, priority, preemptive)")
	cmd.Flags().Float64Var(&duration, "duration", 1000, "Simulated duration in seconds")
	cmd.Flags().Float64Var(&warmUp, "warm-up", 0, "Warm-up seconds excluded from statistics (default 10% of duration)")
	cmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "Master seed")
}

// loadQueueConfig builds the queue from --config or --preset, then applies
// every flag the user set. Without a file all flags apply.
func loadQueueConfig(cmd *cobra.Command) (config.QueueConfig, error) {
	var cfg config.QueueConfig
	fromFile := false
	switch {
	case configPath != "":
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg, fromFile = *loaded, true
	case presetName != "":
		p, err := loadPreset(presetsPath, presetName)
		if err != nil {
			return cfg, err
		}
		cfg, fromFile = p, true
	}
	set := func(name string) bool { return !fromFile || cmd.Flags().Changed(name) }

	if set("lambda") {
		cfg.ArrivalRate = arrivalRate
	}
	if set("servers") {
		cfg.Servers = servers
	}
	if set("mu") {
		cfg.ServiceRate = serviceRate
	}
	if serviceType != "" || (fromFile && (cmd.Flags().Changed("service-mean") || cmd.Flags().Changed("shape"))) {
		spec := cfg.ServiceSpec()
		if serviceType != "" {
			spec.Type = dist.Kind(serviceType)
		}
		if serviceMean > 0 {
			spec.Mean = serviceMean
		}
		if serviceShape > 0 {
			spec.Shape = serviceShape
		}
		cfg.Service = &spec
	}
	if set("arrival-cv2") {
		cfg.ArrivalCV2 = arrivalCV2
	}
	if set("capacity") {
		cfg.Capacity = capacity
	}
	if set("discipline") && discipline != "" {
		cfg.Discipline = config.Discipline(discipline)
	}
	if set("duration") {
		cfg.Duration = duration
	}
	if set("warm-up") {
		cfg.WarmUp = warmUp
	}
	if set("seed") {
		cfg = cfg.WithSeed(seed)
	}
	logrus.Debugf("Queue configuration: %+v", cfg)
	return cfg, nil
}

// init sets up persistent flags
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&format, "format", formatJSON, "Output format (json, csv)")
	rootCmd.PersistentFlags().StringVar(&outPath, "out", "", "Write output to this file instead of stdout")
}
