package neat

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
)

// FitnessFunc is the type for the function provided by the user to evaluate network fitness.
// It receives the current generation and must set the Fitness field of every network.
type FitnessFunc func(networks map[int]*Network) error

// Population holds the state of the NEAT evolutionary process: every network, every species,
// the innovation tracker and the counters that must survive across generations.
type Population struct {
	Config *Config
	RunID  string

	Networks map[int]*Network
	Species  map[int]*Species

	Tracker      *InnovationTracker
	Mutator      *Mutator
	Reproduction *Reproduction
	Stagnation   *Stagnation

	InputTemplate  []Neuron
	ActionTemplate []Neuron

	CompatibilityThreshold float64
	Generation             int
	BestNetwork            *Network // Copy of the best network seen so far
	NextSpeciesID          int

	Reporters []Reporter
	Logger    *slog.Logger

	src *rand.PCG
	rng *rand.Rand
}

// NewPopulation creates a population whose templates come from cfg.Network. The first
// generation holds pop_size unconnected networks, already speciated.
func NewPopulation(config *Config) (*Population, error) {
	inputs, actions, err := config.Templates()
	if err != nil {
		return nil, err
	}
	return NewPopulationWithTemplates(config, inputs, actions)
}

// NewPopulationWithTemplates creates a population around caller-supplied neuron templates.
// Every network of the population shares their IDs, types and functions.
func NewPopulationWithTemplates(config *Config, inputs, actions []Neuron) (*Population, error) {
	p, err := newPopulation(config, inputs, actions)
	if err != nil {
		return nil, err
	}
	p.RunID = uuid.NewString()

	p.Networks, err = p.Reproduction.CreateNewPopulation(inputs, actions, config.Neat.PopSize, config.Network.AllowUselessHidden)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial population: %w", err)
	}
	p.SpeciateAll()
	return p, nil
}

// newPopulation wires the managers of a population without creating any network.
func newPopulation(config *Config, inputs, actions []Neuron) (*Population, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("population needs at least one action neuron: %w", ErrTemplateMismatch)
	}
	// Validates the templates.
	probe, err := NewNetwork(0, inputs, actions)
	if err != nil {
		return nil, err
	}

	stagnation, err := NewStagnation(&config.Stagnation)
	if err != nil {
		return nil, fmt.Errorf("failed to create stagnation manager: %w", err)
	}
	opts, err := config.Mutation.Options()
	if err != nil {
		return nil, err
	}

	nextNeuronID := 0
	for id := range probe.Neurons {
		nextNeuronID = max(nextNeuronID, id+1)
	}

	seed := config.Neat.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	rng := rand.New(src)
	tracker := NewInnovationTracker(nextNeuronID)

	return &Population{
		Config:                 config,
		Networks:               make(map[int]*Network),
		Species:                make(map[int]*Species),
		Tracker:                tracker,
		Mutator:                NewMutator(opts, tracker, rng),
		Reproduction:           NewReproduction(&config.Reproduction, stagnation),
		Stagnation:             stagnation,
		InputTemplate:          slices.Clone(inputs),
		ActionTemplate:         slices.Clone(actions),
		CompatibilityThreshold: config.Speciation.CompatibilityThreshold,
		Logger:                 slog.Default(),
		src:                    src,
		rng:                    rng,
	}, nil
}

// Rand returns the randomness source shared by every operation of the population.
func (p *Population) Rand() *rand.Rand {
	return p.rng
}

// NetworkIDs returns the IDs of all networks in ascending order.
func (p *Population) NetworkIDs() []int {
	ids := make([]int, 0, len(p.Networks))
	for id := range p.Networks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SpeciesList returns the species ordered by ID, which is also their creation order.
func (p *Population) SpeciesList() []*Species {
	out := make([]*Species, 0, len(p.Species))
	for _, sp := range p.Species {
		out = append(out, sp)
	}
	slices.SortFunc(out, func(a, b *Species) int { return a.ID - b.ID })
	return out
}

// AddNetwork adds an unconnected network built from the templates. It is not speciated.
func (p *Population) AddNetwork() (*Network, error) {
	id := p.Reproduction.getNextID()
	n, err := NewNetwork(id, p.InputTemplate, p.ActionTemplate)
	if err != nil {
		return nil, err
	}
	n.AllowUselessHidden = p.Config.Network.AllowUselessHidden
	p.Networks[id] = n
	return n, nil
}

// AddNetworkFrom adds a copy of template, which may come from another population, and speciates it.
func (p *Population) AddNetworkFrom(template *Network) (*Network, error) {
	n, err := p.AddNetwork()
	if err != nil {
		return nil, err
	}
	if err := p.ChangeNetwork(n.ID, template); err != nil {
		delete(p.Networks, n.ID)
		return nil, err
	}
	return p.Networks[n.ID], nil
}

// ChangeNetwork replaces the network with the given ID by a copy of template that keeps the
// ID, then speciates the copy.
func (p *Population) ChangeNetwork(id int, template *Network) error {
	old, ok := p.Networks[id]
	if !ok {
		return fmt.Errorf("network %d: %w", id, ErrNotFound)
	}
	n, err := p.migrate(id, template)
	if err != nil {
		return err
	}
	if sp, ok := p.Species[old.SpeciesID]; ok {
		sp.Remove(old)
	}
	p.Networks[id] = n
	p.SpeciateSingle(n)
	return nil
}

// RemoveNetwork drops a network from the population and from its species.
func (p *Population) RemoveNetwork(id int) error {
	n, ok := p.Networks[id]
	if !ok {
		return fmt.Errorf("network %d: %w", id, ErrNotFound)
	}
	if sp, ok := p.Species[n.SpeciesID]; ok {
		sp.Remove(n)
	}
	delete(p.Networks, id)
	return nil
}

// RemoveAllNetworks empties the population. Species are kept, without members.
func (p *Population) RemoveAllNetworks() {
	for _, id := range p.NetworkIDs() {
		_ = p.RemoveNetwork(id)
	}
}

// MigrateNetwork imports a network that may come from another population. Every gene is
// re-tracked so that edges the population already knows receive their local innovation IDs.
// The migrant gets a fresh ID, joins the population and is speciated.
func (p *Population) MigrateNetwork(template *Network) (*Network, error) {
	id := p.Reproduction.getNextID()
	n, err := p.migrate(id, template)
	if err != nil {
		return nil, err
	}
	p.Networks[id] = n
	p.Reproduction.Ancestors[id] = []int{}
	p.SpeciateSingle(n)
	return n, nil
}

func (p *Population) migrate(id int, template *Network) (*Network, error) {
	if err := matchTemplates(template, p.InputTemplate, p.ActionTemplate); err != nil {
		return nil, fmt.Errorf("cannot migrate network %d: %w", template.ID, err)
	}

	n := template.Clone(id)
	n.SpeciesID = NoSpecies
	n.AllowUselessHidden = true

	genes := make([]Connection, 0, n.GeneCount())
	for _, innov := range n.InnovationIDs() {
		c, _ := n.Connection(innov)
		genes = append(genes, c)
		if err := n.RemoveConnection(innov); err != nil {
			return nil, err
		}
	}
	for _, hid := range n.HiddenIDs() {
		if hid >= p.Tracker.NextNeuronID {
			p.Tracker.NextNeuronID = hid + 1
		}
	}
	for _, c := range genes {
		c.InnovationID = p.Tracker.NewInnovation(c.SourceID, c.TargetID)
		if err := n.addGene(c); err != nil && !errors.Is(err, ErrStructuralConflict) {
			return nil, err
		}
	}

	n.AllowUselessHidden = template.AllowUselessHidden
	if err := n.RecalculateStructure(!n.AllowUselessHidden); err != nil {
		return nil, err
	}
	return n, nil
}

// CrossoverNetworks breeds two networks of the population and adds the child, speciated.
func (p *Population) CrossoverNetworks(parent1, parent2 *Network) (*Network, error) {
	id := p.Reproduction.getNextID()
	child, err := p.Reproduction.Crossover(id, parent1, parent2, p.rng)
	if err != nil {
		return nil, err
	}
	p.Networks[id] = child
	p.SpeciateSingle(child)
	return child, nil
}

// SpeciateAll assigns every network, in ascending ID order, to a species.
func (p *Population) SpeciateAll() {
	for _, id := range p.NetworkIDs() {
		p.SpeciateSingle(p.Networks[id])
	}
}

// SpeciateSingle assigns n to a species. Its previous species is tried first, then every
// species in creation order; if none is compatible n founds a new species.
func (p *Population) SpeciateSingle(n *Network) {
	opts := p.Config.Speciation.DistanceOptions()

	if sp, ok := p.Species[n.SpeciesID]; ok {
		if sp.CheckCompatibility(n, opts, p.CompatibilityThreshold) {
			sp.Add(n)
			return
		}
		sp.Remove(n)
	}

	for _, sp := range p.SpeciesList() {
		if sp.CheckCompatibility(n, opts, p.CompatibilityThreshold) {
			sp.Add(n)
			return
		}
	}

	sp := NewSpecies(p.NextSpeciesID, p.Generation, n)
	p.NextSpeciesID++
	sp.Add(n)
	p.Species[sp.ID] = sp
}

// AdjustCompatibilityThreshold moves the threshold one step towards the target species count:
// down when there are too few non-empty species, up when there are too many. The result never
// drops below MinThreshold.
func (p *Population) AdjustCompatibilityThreshold() {
	target := p.Config.Speciation.TargetSpecies
	if target <= 0 {
		return
	}
	count := 0
	for _, sp := range p.Species {
		if len(sp.Members) > 0 {
			count++
		}
	}

	step := p.Config.Speciation.ThresholdStep
	switch {
	case count < target:
		p.CompatibilityThreshold -= step
	case count > target:
		p.CompatibilityThreshold += step
	}
	p.CompatibilityThreshold = max(p.CompatibilityThreshold, p.Config.Speciation.MinThreshold)
}

// RemoveEmptySpecies deletes every species without members.
func (p *Population) RemoveEmptySpecies() {
	for id, sp := range p.Species {
		if len(sp.Members) == 0 {
			delete(p.Species, id)
		}
	}
}

// CompleteGeneration replaces the population with its offspring and re-speciates it. Every
// network must carry its fitness for the current generation.
func (p *Population) CompleteGeneration() error {
	species := make([]*Species, 0, len(p.Species))
	for _, sp := range p.SpeciesList() {
		if len(sp.Members) > 0 {
			species = append(species, sp)
		}
	}

	offspring, err := p.Reproduction.Reproduce(species, p.currentBest(), p.Config.Neat.PopSize,
		p.Config.Speciation.UseAdjustedFitness, p.Mutator, p.rng)
	if err != nil {
		return fmt.Errorf("reproduction failed in generation %d: %w", p.Generation, err)
	}
	if len(offspring) == 0 {
		return fmt.Errorf("generation %d: %w", p.Generation, ErrExtinct)
	}

	p.Networks = offspring
	for _, sp := range p.Species {
		clear(sp.Members)
	}
	p.Generation++
	p.SpeciateAll()
	p.RemoveEmptySpecies()
	p.AdjustCompatibilityThreshold()
	return nil
}

// RunGeneration evaluates the population, reports statistics and, unless the fitness
// threshold was reached, advances to the next generation. It returns the best network when
// the threshold is met, otherwise nil.
func (p *Population) RunGeneration(fitnessFunc FitnessFunc) (*Network, error) {
	start := time.Now()
	if err := fitnessFunc(p.Networks); err != nil {
		return nil, fmt.Errorf("fitness evaluation failed in generation %d: %w", p.Generation, err)
	}

	if current := p.currentBest(); current != nil {
		if p.BestNetwork == nil || fitnessOf(current) > fitnessOf(p.BestNetwork) {
			p.BestNetwork = current.Clone(current.ID)
			p.BestNetwork.Fitness = current.Fitness
			p.Logger.Debug("new best network", "network", current.ID, "fitness", current.Fitness)
		}
	}

	stats := p.Stats()
	stats.DurationMs = time.Since(start).Milliseconds()
	p.Logger.Info("generation evaluated", "stats", stats)
	for _, r := range p.Reporters {
		if err := r.Report(stats); err != nil {
			return nil, fmt.Errorf("reporter failed in generation %d: %w", p.Generation, err)
		}
	}

	if !p.Config.Neat.NoFitnessTermination && p.BestNetwork != nil &&
		p.BestNetwork.Fitness >= p.Config.Neat.FitnessThreshold {
		return p.BestNetwork, nil
	}

	if err := p.CompleteGeneration(); err != nil {
		return nil, err
	}
	return nil, nil
}

// Run calls RunGeneration until the fitness threshold is met or maxGenerations have run.
// A non-positive maxGenerations runs until the threshold is met.
func (p *Population) Run(fitnessFunc FitnessFunc, maxGenerations int) (*Network, error) {
	for i := 0; maxGenerations <= 0 || i < maxGenerations; i++ {
		winner, err := p.RunGeneration(fitnessFunc)
		if err != nil {
			return p.BestNetwork, err
		}
		if winner != nil {
			return winner, nil
		}
	}
	return p.BestNetwork, nil
}

// currentBest returns the fittest network of the current generation, lowest ID on ties.
func (p *Population) currentBest() *Network {
	var best *Network
	for _, id := range p.NetworkIDs() {
		n := p.Networks[id]
		if best == nil || fitnessOf(n) > fitnessOf(best) {
			best = n
		}
	}
	return best
}

// Stats summarizes the current generation.
func (p *Population) Stats() GenerationStats {
	fitnesses := make([]float64, 0, len(p.Networks))
	for _, id := range p.NetworkIDs() {
		fitnesses = append(fitnesses, fitnessOf(p.Networks[id]))
	}
	nonEmpty := 0
	for _, sp := range p.Species {
		if len(sp.Members) > 0 {
			nonEmpty++
		}
	}

	stats := GenerationStats{
		RunID:                  p.RunID,
		Generation:             p.Generation,
		PopulationSize:         len(p.Networks),
		SpeciesCount:           nonEmpty,
		CompatibilityThreshold: p.CompatibilityThreshold,
		Innovations:            p.Tracker.Len(),
		MeanFitness:            Mean(fitnesses),
		StdevFitness:           Stdev(fitnesses),
		BestNetworkID:          -1,
	}
	if best := p.currentBest(); best != nil {
		stats.BestFitness = fitnessOf(best)
		stats.BestNetworkID = best.ID
		stats.BestGenes = best.GeneCount()
		stats.BestHidden = len(best.HiddenIDs())
	}
	if p.BestNetwork != nil {
		stats.AllTimeBestFitness = fitnessOf(p.BestNetwork)
	}
	return stats
}
