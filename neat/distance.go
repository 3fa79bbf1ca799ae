package neat

import (
	"math"

	"github.com/campoy/unique"
)

// DistanceOptions weighs the two terms of the genetic distance.
type DistanceOptions struct {
	DisjointFactor float64
	WeightFactor   float64
}

// MatchingAndDisjoint splits the innovation IDs of a and b, across both connection maps,
// into genes present in both networks and genes present in only one. Both results are sorted.
func MatchingAndDisjoint(a, b *Network) (matching, disjoint []int) {
	all := append(a.InnovationIDs(), b.InnovationIDs()...)
	unique.Slice(&all, func(i, j int) bool { return all[i] < all[j] })

	for _, innov := range all {
		_, inA := a.Connection(innov)
		_, inB := b.Connection(innov)
		if inA && inB {
			matching = append(matching, innov)
		} else {
			disjoint = append(disjoint, innov)
		}
	}
	return matching, disjoint
}

// Distance returns disjointFactor*|disjoint|/N + weightFactor*W, where N is the larger gene
// count of the two networks and W the mean absolute weight difference of matching genes.
// Two networks without genes are at distance 0.
func Distance(a, b *Network, opts DistanceOptions) float64 {
	n := max(a.GeneCount(), b.GeneCount())
	if n == 0 {
		return 0
	}
	matching, disjoint := MatchingAndDisjoint(a, b)

	w := 0.0
	if len(matching) > 0 {
		for _, innov := range matching {
			ca, _ := a.Connection(innov)
			cb, _ := b.Connection(innov)
			w += math.Abs(ca.Weight - cb.Weight)
		}
		w /= float64(len(matching))
	}
	return opts.DisjointFactor*float64(len(disjoint))/float64(n) + opts.WeightFactor*w
}
