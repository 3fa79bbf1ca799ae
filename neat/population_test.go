package neat

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Neat.PopSize = 20
	cfg.Neat.Seed = 1
	return cfg
}

func newTestPopulation(t *testing.T, cfg *Config) *Population {
	t.Helper()
	p, err := NewPopulation(cfg)
	require.NoError(t, err)
	p.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return p
}

func constantFitness(v float64) FitnessFunc {
	return func(networks map[int]*Network) error {
		for _, n := range networks {
			n.Fitness = v
		}
		return nil
	}
}

// sizeFitness rewards small structural differences so that runs are reproducible.
func sizeFitness(networks map[int]*Network) error {
	for _, n := range networks {
		n.Fitness = float64(n.GeneCount()%5) / 10
	}
	return nil
}

// assertSpeciated checks that every network sits in exactly the species it points to.
func assertSpeciated(t *testing.T, p *Population) {
	t.Helper()
	members := 0
	for _, sp := range p.Species {
		members += len(sp.Members)
		for id, n := range sp.Members {
			assert.Same(t, p.Networks[id], n)
			assert.Equal(t, sp.ID, n.SpeciesID)
		}
	}
	assert.Equal(t, len(p.Networks), members)
}

type recordingReporter struct {
	stats []GenerationStats
}

func (r *recordingReporter) Report(stats GenerationStats) error {
	r.stats = append(r.stats, stats)
	return nil
}

func TestNewPopulation(t *testing.T) {
	p := newTestPopulation(t, testConfig())

	assert.NotEmpty(t, p.RunID)
	assert.Zero(t, p.Generation)
	assert.Len(t, p.Networks, 20)
	assert.Equal(t, 5, p.Tracker.NextNeuronID)
	for id, n := range p.Networks {
		assert.Equal(t, id, n.ID)
		assert.Zero(t, n.GeneCount())
		assert.Equal(t, []int{0, 1, 2, 3}, n.InputIDs())
		assert.Equal(t, []int{4}, n.ActionIDs())
	}
	require.Len(t, p.Species, 1, "identical networks share a species")
	assertSpeciated(t, p)
}

func TestNewPopulationRejectsBadTemplates(t *testing.T) {
	inputs, _ := xorTemplates()
	_, err := NewPopulationWithTemplates(testConfig(), inputs, nil)
	assert.ErrorIs(t, err, ErrTemplateMismatch)

	_, err = NewPopulationWithTemplates(testConfig(), inputs, []Neuron{NewNeuron(4, Hidden, Sigmoid)})
	assert.ErrorIs(t, err, ErrTemplateMismatch)
}

func TestRunGenerationWithZeroFitness(t *testing.T) {
	p := newTestPopulation(t, testConfig())

	winner, err := p.RunGeneration(constantFitness(0))
	require.NoError(t, err)
	assert.Nil(t, winner)
	assert.Equal(t, 1, p.Generation)
	assert.Len(t, p.Networks, 20)
	assertSpeciated(t, p)
	require.NotNil(t, p.BestNetwork)
}

func TestRunGenerationReturnsWinner(t *testing.T) {
	p := newTestPopulation(t, testConfig())
	reporter := &recordingReporter{}
	p.Reporters = append(p.Reporters, reporter)

	winner, err := p.RunGeneration(constantFitness(1))
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, 1.0, winner.Fitness)
	assert.Equal(t, 0, winner.ID, "ties go to the lowest ID")
	assert.Zero(t, p.Generation)

	require.Len(t, reporter.stats, 1)
	assert.Equal(t, p.RunID, reporter.stats[0].RunID)
	assert.Equal(t, 1.0, reporter.stats[0].BestFitness)
}

func TestRunWithoutFitnessTermination(t *testing.T) {
	cfg := testConfig()
	cfg.Neat.NoFitnessTermination = true
	p := newTestPopulation(t, cfg)

	best, err := p.Run(constantFitness(1), 3)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 3, p.Generation)
	assert.Equal(t, 1.0, best.Fitness)
}

func TestRunGenerationLogsStats(t *testing.T) {
	p := newTestPopulation(t, testConfig())
	var buf bytes.Buffer
	p.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	_, err := p.RunGeneration(constantFitness(0.25))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "generation evaluated")
	assert.Contains(t, buf.String(), "stats.generation=0")
	assert.Contains(t, buf.String(), "stats.population=20")
}

func TestRunIsReproducibleWithSeed(t *testing.T) {
	cfg := testConfig()
	cfg.Mutation.AddConnectionProb = 0.5
	cfg.Mutation.AddNeuronProb = 0.2

	a := newTestPopulation(t, cfg)
	b := newTestPopulation(t, cfg)
	for i := 0; i < 5; i++ {
		_, err := a.RunGeneration(sizeFitness)
		require.NoError(t, err)
		_, err = b.RunGeneration(sizeFitness)
		require.NoError(t, err)
	}

	require.Equal(t, a.NetworkIDs(), b.NetworkIDs())
	for _, id := range a.NetworkIDs() {
		assert.Equal(t, a.Networks[id].Connections, b.Networks[id].Connections)
		assert.Equal(t, a.Networks[id].SpeciesID, b.Networks[id].SpeciesID)
	}
	assert.Equal(t, a.CompatibilityThreshold, b.CompatibilityThreshold)
}

func TestPopulationSurvivesManyGenerations(t *testing.T) {
	cfg := testConfig()
	cfg.Mutation.AddConnectionProb = 0.5
	cfg.Mutation.AddNeuronProb = 0.2
	cfg.Mutation.RemoveNeuronProb = 0.1
	p := newTestPopulation(t, cfg)

	for i := 0; i < 20; i++ {
		_, err := p.RunGeneration(sizeFitness)
		require.NoError(t, err)
		assert.Len(t, p.Networks, cfg.Neat.PopSize)
		assert.GreaterOrEqual(t, p.CompatibilityThreshold, cfg.Speciation.MinThreshold)
		assertSpeciated(t, p)
		for _, n := range p.Networks {
			assertConsistent(t, n)
			assert.Empty(t, n.UselessHidden())
		}
	}
}

func connectedNetwork(t *testing.T, p *Population, edges ...[2]int) *Network {
	t.Helper()
	n, err := p.AddNetwork()
	require.NoError(t, err)
	for _, e := range edges {
		require.NoError(t, n.AddConnection(p.Tracker.NewInnovation(e[0], e[1]), e[0], e[1], 1))
	}
	return n
}

func TestSpeciateSingleFoundsSpecies(t *testing.T) {
	p := newTestPopulation(t, testConfig())
	n := connectedNetwork(t, p, [2]int{0, 4}, [2]int{1, 4})
	assert.Equal(t, NoSpecies, n.SpeciesID)

	p.SpeciateSingle(n)
	assert.Equal(t, 1, n.SpeciesID)
	assert.Len(t, p.Species, 2)
	assert.Equal(t, 2, p.NextSpeciesID)

	// A compatible network joins the earliest matching species.
	m := connectedNetwork(t, p, [2]int{0, 4}, [2]int{1, 4})
	p.SpeciateSingle(m)
	assert.Equal(t, 1, m.SpeciesID)

	// Re-speciating keeps the current species when it still fits.
	p.SpeciateSingle(n)
	assert.Equal(t, 1, n.SpeciesID)
	assertSpeciated(t, p)
}

func TestAdjustCompatibilityThreshold(t *testing.T) {
	p := newTestPopulation(t, testConfig())
	start := p.CompatibilityThreshold

	p.AdjustCompatibilityThreshold()
	assert.InDelta(t, start-0.05, p.CompatibilityThreshold, 1e-12, "too few species")

	p.CompatibilityThreshold = 0.06
	p.AdjustCompatibilityThreshold()
	assert.Equal(t, 0.05, p.CompatibilityThreshold, "clamped to the minimum")

	p.SpeciateSingle(connectedNetwork(t, p, [2]int{0, 4}, [2]int{1, 4}, [2]int{2, 4}))
	p.Config.Speciation.TargetSpecies = 1
	p.AdjustCompatibilityThreshold()
	assert.InDelta(t, 0.10, p.CompatibilityThreshold, 1e-12, "too many species")

	p.Config.Speciation.TargetSpecies = 0
	p.AdjustCompatibilityThreshold()
	assert.InDelta(t, 0.10, p.CompatibilityThreshold, 1e-12, "disabled")
}

func TestRemoveNetwork(t *testing.T) {
	p := newTestPopulation(t, testConfig())

	assert.ErrorIs(t, p.RemoveNetwork(999), ErrNotFound)

	require.NoError(t, p.RemoveNetwork(3))
	assert.NotContains(t, p.Networks, 3)
	assertSpeciated(t, p)

	p.RemoveAllNetworks()
	assert.Empty(t, p.Networks)
	for _, sp := range p.Species {
		assert.Empty(t, sp.Members)
	}
	err := p.CompleteGeneration()
	assert.ErrorIs(t, err, ErrExtinct)
}

func TestMigrateNetworkRetracksInnovations(t *testing.T) {
	p := newTestPopulation(t, testConfig())
	p.Tracker.NewInnovation(0, 4)

	cfg := testConfig()
	cfg.Neat.Seed = 2
	other := newTestPopulation(t, cfg)
	foreign := connectedNetwork(t, other, [2]int{2, 4}, [2]int{0, 4})
	hidden, err := foreign.SplitConnection(1, other.Tracker, Sigmoid)
	require.NoError(t, err)
	require.Equal(t, 5, hidden)
	p.Tracker.NextNeuronID = 5

	migrant, err := p.MigrateNetwork(foreign)
	require.NoError(t, err)
	assert.Same(t, migrant, p.Networks[migrant.ID])
	assert.Equal(t, 20, migrant.ID)
	assert.NotEqual(t, NoSpecies, migrant.SpeciesID)
	assertSpeciated(t, p)

	require.Equal(t, []int{0, 1, 2, 3}, migrant.InnovationIDs())
	c, _ := migrant.Connection(0)
	assert.Equal(t, ConnectionKey{SourceID: 0, TargetID: 4}, c.Key())
	assert.False(t, c.Activated)
	c, _ = migrant.Connection(1)
	assert.Equal(t, ConnectionKey{SourceID: 2, TargetID: 4}, c.Key())
	assert.Equal(t, []int{5}, migrant.HiddenIDs())
	assert.Equal(t, 6, p.Tracker.NextNeuronID, "local neuron IDs move past the migrant's")
	assertConsistent(t, migrant)

	c, _ = foreign.Connection(0)
	assert.Equal(t, ConnectionKey{SourceID: 2, TargetID: 4}, c.Key(), "the template is not modified")

	inputs, _ := xorTemplates()
	alien, err := NewNetwork(0, inputs, []Neuron{NewNeuron(7, Action, Sigmoid)})
	require.NoError(t, err)
	_, err = p.MigrateNetwork(alien)
	assert.ErrorIs(t, err, ErrTemplateMismatch)
}

func TestChangeNetworkKeepsID(t *testing.T) {
	p := newTestPopulation(t, testConfig())
	template := newTestNetwork(t, 77)
	require.NoError(t, template.AddConnection(0, 1, 4, 2))

	assert.ErrorIs(t, p.ChangeNetwork(999, template), ErrNotFound)

	require.NoError(t, p.ChangeNetwork(6, template))
	n := p.Networks[6]
	assert.Equal(t, 6, n.ID)
	assert.Equal(t, 1, n.GeneCount())
	innov, ok := p.Tracker.Lookup(1, 4)
	require.True(t, ok)
	c, ok := n.Connection(innov)
	require.True(t, ok)
	assert.Equal(t, 2.0, c.Weight)
	assert.Len(t, p.Networks, 20)
	assertSpeciated(t, p)

	added, err := p.AddNetworkFrom(template)
	require.NoError(t, err)
	assert.Equal(t, 20, added.ID)
	assert.Equal(t, 1, added.GeneCount())
	assertSpeciated(t, p)
}

func TestCrossoverNetworks(t *testing.T) {
	p := newTestPopulation(t, testConfig())
	a := connectedNetwork(t, p, [2]int{0, 4})
	b := connectedNetwork(t, p, [2]int{1, 4})
	a.Fitness = 1
	p.SpeciateSingle(a)
	p.SpeciateSingle(b)

	child, err := p.CrossoverNetworks(a, b)
	require.NoError(t, err)
	assert.Same(t, child, p.Networks[child.ID])
	assert.Equal(t, []int{a.ID, b.ID}, p.Reproduction.Ancestors[child.ID])
	assert.Equal(t, a.InnovationIDs(), child.InnovationIDs())
	assertSpeciated(t, p)
}

func TestPopulationStats(t *testing.T) {
	p := newTestPopulation(t, testConfig())
	for id, n := range p.Networks {
		n.Fitness = float64(id % 2)
	}
	p.Networks[5].Fitness = 3

	stats := p.Stats()
	assert.Equal(t, p.RunID, stats.RunID)
	assert.Equal(t, 20, stats.PopulationSize)
	assert.Equal(t, 1, stats.SpeciesCount)
	assert.Equal(t, 3.0, stats.BestFitness)
	assert.Equal(t, 5, stats.BestNetworkID)
	assert.InDelta(t, 12.0/20, stats.MeanFitness, 1e-12)
	assert.Zero(t, stats.AllTimeBestFitness)
}
