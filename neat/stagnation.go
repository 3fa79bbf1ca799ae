package neat

import (
	"fmt"
	"slices"
)

// Stagnation tracks how long each species has gone without improving its fitness.
type Stagnation struct {
	Config             *StagnationConfig
	SpeciesFitnessFunc func([]float64) float64
}

// NewStagnation creates a new stagnation manager.
func NewStagnation(config *StagnationConfig) (*Stagnation, error) {
	fn, ok := StatFunctions[config.SpeciesFitnessFunc]
	if !ok {
		return nil, fmt.Errorf("invalid species_fitness_func in config: %s", config.SpeciesFitnessFunc)
	}

	return &Stagnation{
		Config:             config,
		SpeciesFitnessFunc: fn,
	}, nil
}

// StagnationInfo holds the results of the stagnation update for a single species.
type StagnationInfo struct {
	SpeciesID  int
	Species    *Species
	Fitness    float64
	IsStagnant bool
}

// Update scores every non-empty species, moves its best-fitness watermark and improvement
// counter, and flags species that have not improved for more than MaxStagnation generations.
// The result is ordered from fittest to least fit species; ties keep ascending species ID.
func (s *Stagnation) Update(species []*Species) []StagnationInfo {
	result := make([]StagnationInfo, 0, len(species))
	for _, sp := range species {
		if len(sp.Members) == 0 {
			continue
		}
		fitness := s.SpeciesFitnessFunc(sp.Fitnesses())
		if fitness > sp.BestAverageFitness {
			sp.BestAverageFitness = fitness
			sp.StepsSinceImprovement = 0
		} else {
			sp.StepsSinceImprovement++
		}
		result = append(result, StagnationInfo{
			SpeciesID:  sp.ID,
			Species:    sp,
			Fitness:    fitness,
			IsStagnant: sp.StepsSinceImprovement > s.Config.MaxStagnation,
		})
	}

	slices.SortStableFunc(result, func(a, b StagnationInfo) int {
		switch {
		case a.Fitness > b.Fitness:
			return -1
		case a.Fitness < b.Fitness:
			return 1
		}
		return a.SpeciesID - b.SpeciesID
	})
	return result
}
