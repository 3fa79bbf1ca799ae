// Package nn assigns fitness to the networks of a population. Evaluation is the only step of
// a generation that may run in parallel: every task reads and writes a single network.
package nn

import (
	"context"
	"fmt"
	"runtime"

	"github.com/baldhumanity/neat-expanded/neat"
	"github.com/sourcegraph/conc/pool"
)

// ScoreFunc computes the fitness of one network.
type ScoreFunc func(n *neat.Network) (float64, error)

// ParallelFitness returns a FitnessFunc that scores every network on a bounded pool of
// goroutines. workers <= 0 uses GOMAXPROCS. The first error cancels the remaining tasks
// and is returned.
func ParallelFitness(ctx context.Context, workers int, score ScoreFunc) neat.FitnessFunc {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return func(networks map[int]*neat.Network) error {
		p := pool.New().
			WithMaxGoroutines(workers).
			WithContext(ctx).
			WithCancelOnError().
			WithFirstError()

		for _, n := range networks {
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				fitness, err := score(n)
				if err != nil {
					return fmt.Errorf("network %d: %w", n.ID, err)
				}
				n.Fitness = fitness
				return nil
			})
		}
		return p.Wait()
	}
}

// SequentialFitness returns a FitnessFunc that scores networks one by one in ascending ID order.
func SequentialFitness(score ScoreFunc) neat.FitnessFunc {
	return func(networks map[int]*neat.Network) error {
		for _, id := range sortedIDs(networks) {
			n := networks[id]
			fitness, err := score(n)
			if err != nil {
				return fmt.Errorf("network %d: %w", n.ID, err)
			}
			n.Fitness = fitness
		}
		return nil
	}
}
