package sim

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/queueing-sim/sim/config"
)

// Replicate runs n independent replications of cfg, at most workers at a
// time (0 means GOMAXPROCS). Replication i is seeded by ForReplication(i) and
// owns all of its state, so results are identical for any worker count.
// Options are shared by every replication and must be safe for concurrent use.
// The first failing replication cancels the rest.
func Replicate(ctx context.Context, cfg config.QueueConfig, n, workers int, opts ...Option) ([]*Result, error) {
	if n < 1 {
		return nil, fmt.Errorf("replications must be >= 1, got %d", n)
	}
	if err := cfg.ValidateSimulation(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	master := cfg.SeedOrDefault()
	logrus.Infof("Replicating %d runs of %s with %d workers, master seed %d", n, cfg.Name, workers, master)

	root := NewPartitionedRNG(NewSimulationKey(master))
	results := make([]*Result, n)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		seed := int64(root.ForReplication(i).Key())
		g.Go(func() error {
			res, err := Simulate(gCtx, cfg.WithSeed(seed), opts...)
			if err != nil {
				return fmt.Errorf("replication %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
