package neat

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// Species groups networks that are within the compatibility threshold of its representative.
type Species struct {
	ID      int
	Created int // Generation the species was founded in.

	// Representative is a frozen copy used only for distance comparisons.
	Representative *Network
	Members        map[int]*Network

	BestAverageFitness    float64
	StepsSinceImprovement int
}

// NewSpecies founds a species around a copy of representative.
func NewSpecies(id, generation int, representative *Network) *Species {
	return &Species{
		ID:                 id,
		Created:            generation,
		Representative:     representative.Clone(-1),
		Members:            make(map[int]*Network),
		BestAverageFitness: math.Inf(-1),
	}
}

// String returns a short description of the species.
func (s *Species) String() string {
	return fmt.Sprintf("Species(id=%d, members=%d, best_avg=%.4f, stagnant=%d)",
		s.ID, len(s.Members), s.BestAverageFitness, s.StepsSinceImprovement)
}

// CheckCompatibility reports whether n is within threshold of the representative.
func (s *Species) CheckCompatibility(n *Network, opts DistanceOptions, threshold float64) bool {
	return Distance(s.Representative, n, opts) <= threshold
}

// Add makes n a member and points its SpeciesID at s.
func (s *Species) Add(n *Network) {
	n.SpeciesID = s.ID
	s.Members[n.ID] = n
}

// Remove drops n from the species.
func (s *Species) Remove(n *Network) bool {
	if _, ok := s.Members[n.ID]; !ok {
		return false
	}
	delete(s.Members, n.ID)
	n.SpeciesID = NoSpecies
	return true
}

// MemberIDs returns the member network IDs in ascending order.
func (s *Species) MemberIDs() []int {
	ids := make([]int, 0, len(s.Members))
	for id := range s.Members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// members returns the members ordered by ID.
func (s *Species) members() []*Network {
	ids := s.MemberIDs()
	out := make([]*Network, len(ids))
	for i, id := range ids {
		out[i] = s.Members[id]
	}
	return out
}

// Fitnesses returns the sanitized fitness of every member, ordered by network ID.
func (s *Species) Fitnesses() []float64 {
	members := s.members()
	out := make([]float64, len(members))
	for i, n := range members {
		out[i] = fitnessOf(n)
	}
	return out
}

// AverageFitness returns the mean member fitness. With adjusted set, each member's fitness is
// first divided by the species size, which favours small species.
func (s *Species) AverageFitness(adjusted bool) float64 {
	if len(s.Members) == 0 {
		return 0
	}
	avg := Mean(s.Fitnesses())
	if adjusted {
		avg /= float64(len(s.Members))
	}
	return avg
}

// Best returns the fittest member, preferring the lowest ID on ties.
func (s *Species) Best() *Network {
	var best *Network
	for _, n := range s.members() {
		if best == nil || fitnessOf(n) > fitnessOf(best) {
			best = n
		}
	}
	return best
}

// RemoveWorstMembers drops round(len*fraction) of the least fit members. At least one member
// always survives.
func (s *Species) RemoveWorstMembers(fraction float64) []*Network {
	if fraction <= 0 || len(s.Members) == 0 {
		return nil
	}
	members := s.members()
	slices.SortStableFunc(members, func(a, b *Network) int {
		fa, fb := fitnessOf(a), fitnessOf(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	})
	amount := int(math.Round(float64(len(members)) * fraction))
	amount = min(amount, len(members)-1)
	for _, n := range members[:amount] {
		s.Remove(n)
	}
	return members[:amount]
}

// RandomByFitness draws a member with probability proportional to its fitness. When every
// member has zero fitness the draw is uniform. It returns nil for an empty species.
func (s *Species) RandomByFitness(rng *rand.Rand) *Network {
	members := s.members()
	if len(members) == 0 {
		return nil
	}
	weights := make([]float64, len(members))
	total := 0.0
	for i, n := range members {
		weights[i] = max(fitnessOf(n), 0)
		total += weights[i]
	}
	if total == 0 {
		return members[rng.IntN(len(members))]
	}
	idx, ok := sampleuv.NewWeighted(weights, rng).Take()
	if !ok {
		return members[rng.IntN(len(members))]
	}
	return members[idx]
}

// RefreshRepresentative replaces the representative with a copy of a random member.
func (s *Species) RefreshRepresentative(rng *rand.Rand) {
	members := s.members()
	if len(members) == 0 {
		return
	}
	s.Representative = members[rng.IntN(len(members))].Clone(-1)
}

// fitnessOf treats NaN fitness as zero.
func fitnessOf(n *Network) float64 {
	if math.IsNaN(n.Fitness) {
		return 0
	}
	return n.Fitness
}
