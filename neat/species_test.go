package neat

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func speciesWithFitness(t *testing.T, fitness ...float64) *Species {
	t.Helper()
	var sp *Species
	for i, f := range fitness {
		n := newTestNetwork(t, i)
		n.Fitness = f
		if sp == nil {
			sp = NewSpecies(1, 0, n)
		}
		sp.Add(n)
	}
	return sp
}

func TestSpeciesMembership(t *testing.T) {
	rep := newTestNetwork(t, 3)
	sp := NewSpecies(7, 2, rep)
	assert.NotSame(t, rep, sp.Representative)
	assert.Equal(t, 2, sp.Created)
	assert.True(t, math.IsInf(sp.BestAverageFitness, -1))

	sp.Add(rep)
	assert.Equal(t, 7, rep.SpeciesID)
	assert.Equal(t, []int{3}, sp.MemberIDs())

	assert.True(t, sp.Remove(rep))
	assert.False(t, sp.Remove(rep))
	assert.Equal(t, NoSpecies, rep.SpeciesID)
	assert.Empty(t, sp.Members)
}

func TestSpeciesRepresentativeIsFrozen(t *testing.T) {
	rep := newTestNetwork(t, 0)
	sp := NewSpecies(0, 0, rep)
	require.NoError(t, rep.AddConnection(0, 0, 4, 1))
	assert.Zero(t, sp.Representative.GeneCount())
}

func TestCheckCompatibility(t *testing.T) {
	rep := newTestNetwork(t, 0)
	require.NoError(t, rep.AddConnection(0, 0, 4, 1))
	sp := NewSpecies(0, 0, rep)

	other := newTestNetwork(t, 1)
	require.NoError(t, other.AddConnection(1, 1, 4, 1))
	opts := DistanceOptions{DisjointFactor: 1}

	assert.True(t, sp.CheckCompatibility(rep.Clone(2), opts, 0))
	assert.False(t, sp.CheckCompatibility(other, opts, 1.5))
	assert.True(t, sp.CheckCompatibility(other, opts, 2))
}

func TestSpeciesAverageFitness(t *testing.T) {
	sp := speciesWithFitness(t, 1, 2, 3)
	assert.InDelta(t, 2.0, sp.AverageFitness(false), 1e-12)
	assert.InDelta(t, 2.0/3, sp.AverageFitness(true), 1e-12)

	withNaN := speciesWithFitness(t, math.NaN(), 4)
	assert.InDelta(t, 2.0, withNaN.AverageFitness(false), 1e-12)

	assert.Zero(t, (&Species{Members: map[int]*Network{}}).AverageFitness(false))
}

func TestSpeciesBestPrefersLowestID(t *testing.T) {
	sp := speciesWithFitness(t, 1, 5, 5, 2)
	assert.Equal(t, 1, sp.Best().ID)
}

func TestRemoveWorstMembers(t *testing.T) {
	sp := speciesWithFitness(t, 4, 1, 3, 2)
	removed := sp.RemoveWorstMembers(0.5)
	require.Len(t, removed, 2)
	assert.Equal(t, []int{0, 2}, sp.MemberIDs())
	for _, n := range removed {
		assert.Equal(t, NoSpecies, n.SpeciesID)
	}

	all := speciesWithFitness(t, 4, 1, 3)
	all.RemoveWorstMembers(1)
	assert.Equal(t, []int{0}, all.MemberIDs(), "the best member survives")

	none := speciesWithFitness(t, 4, 1)
	assert.Empty(t, none.RemoveWorstMembers(0))
	assert.Len(t, none.Members, 2)
}

func TestRandomByFitness(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	sp := speciesWithFitness(t, 0, 0, 5)
	for i := 0; i < 50; i++ {
		assert.Equal(t, 2, sp.RandomByFitness(rng).ID)
	}

	zero := speciesWithFitness(t, 0, 0, 0)
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		seen[zero.RandomByFitness(rng).ID] = true
	}
	assert.Len(t, seen, 3, "zero fitness falls back to a uniform draw")

	assert.Nil(t, (&Species{Members: map[int]*Network{}}).RandomByFitness(rng))
}

func TestRefreshRepresentative(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	sp := speciesWithFitness(t, 1, 2)
	require.NoError(t, sp.Members[1].AddConnection(0, 0, 4, 1))

	sp.RefreshRepresentative(rng)
	found := false
	for _, n := range sp.Members {
		if n.GeneCount() == sp.Representative.GeneCount() {
			found = true
		}
		assert.NotSame(t, n, sp.Representative)
	}
	assert.True(t, found)
	assert.Equal(t, -1, sp.Representative.ID)
}
