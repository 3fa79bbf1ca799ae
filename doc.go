// Package neat evolves small neural networks with NeuroEvolution of Augmenting Topologies.
//
// Networks start with only their input, bias and action neurons and grow through mutation.
// Every structural edge receives a population-wide innovation ID, so networks from different
// lineages can be aligned for crossover and for the genetic distance used to group them into
// species. Connections that would close a cycle are stored as recurrent and read the previous
// output of their source, which keeps the feed-forward part layered and acyclic.
//
// The library lives in the neat subpackage; neat/nn assigns fitness, optionally in parallel.
//
// Basic usage:
//
//	config, err := neat.LoadConfig("configs/xor-config")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	pop, err := neat.NewPopulation(config)
//	if err != nil {
//		log.Fatalf("Error creating population: %v", err)
//	}
//
//	score := nn.MeanAbsoluteScore(nn.XORCases(3, true))
//	fitness := nn.ParallelFitness(ctx, config.Neat.Workers, score)
//	for i := 0; i < 300; i++ {
//		winner, err := pop.RunGeneration(fitness)
//		if err != nil {
//			log.Fatalf("Error running generation: %v", err)
//		}
//		if winner != nil {
//			fmt.Println("Solution found!")
//			break
//		}
//	}
package neat
