package neat

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// Reproduction creates new networks, either from the neuron templates or through
// elitism, crossover and mutation of the current species.
type Reproduction struct {
	Config        *ReproductionConfig
	NextNetworkID int
	Ancestors     map[int][]int // network ID -> parent network IDs
	Stagnation    *Stagnation
}

// NewReproduction creates a new reproduction manager.
func NewReproduction(config *ReproductionConfig, stagnation *Stagnation) *Reproduction {
	return &Reproduction{
		Config:        config,
		NextNetworkID: 0,
		Ancestors:     make(map[int][]int),
		Stagnation:    stagnation,
	}
}

// getNextID gets the next available network ID and increments the internal counter.
func (r *Reproduction) getNextID() int {
	id := r.NextNetworkID
	r.NextNetworkID++
	return id
}

// CreateNewPopulation creates popSize unconnected networks from the neuron templates.
func (r *Reproduction) CreateNewPopulation(inputs, actions []Neuron, popSize int, allowUseless bool) (map[int]*Network, error) {
	networks := make(map[int]*Network, popSize)
	for i := 0; i < popSize; i++ {
		id := r.getNextID()
		n, err := NewNetwork(id, inputs, actions)
		if err != nil {
			return nil, err
		}
		n.AllowUselessHidden = allowUseless
		networks[id] = n
		r.Ancestors[id] = []int{}
	}
	return networks, nil
}

// Crossover builds a child of two networks. Genes present in both parents are copied from a
// parent chosen at random; genes present in one parent are inherited only from the fitter
// parent, with parent1 winning ties. A gene that was disabled in the parent it came from is
// re-enabled with probability EnableProb; only that parent's flag counts, so a matching gene
// copied from a parent where it is enabled stays enabled even if the other parent disabled it.
// The child holds the hidden neurons its genes refer to.
func (r *Reproduction) Crossover(id int, parent1, parent2 *Network, rng *rand.Rand) (*Network, error) {
	inputs, actions := parent1.templates()
	if err := matchTemplates(parent2, inputs, actions); err != nil {
		return nil, err
	}
	child, err := NewNetwork(id, inputs, actions)
	if err != nil {
		return nil, err
	}
	child.SpeciesID = parent1.SpeciesID
	child.AllowUselessHidden = true

	fitter := parent1
	if fitnessOf(parent2) > fitnessOf(parent1) {
		fitter = parent2
	}

	matching, disjoint := MatchingAndDisjoint(parent1, parent2)
	genes := make(map[int]*Network, len(matching)+len(disjoint))
	for _, innov := range matching {
		if rng.IntN(2) == 0 {
			genes[innov] = parent1
		} else {
			genes[innov] = parent2
		}
	}
	for _, innov := range disjoint {
		if _, ok := fitter.Connection(innov); ok {
			genes[innov] = fitter
		}
	}

	innovs := make([]int, 0, len(genes))
	for innov := range genes {
		innovs = append(innovs, innov)
	}
	slices.Sort(innovs)

	for _, innov := range innovs {
		donor := genes[innov]
		gene, _ := donor.Connection(innov)
		if !gene.Activated && rng.Float64() < r.Config.EnableProb {
			gene.Activated = true
		}
		for _, nid := range []int{gene.SourceID, gene.TargetID} {
			if _, ok := child.Neurons[nid]; ok {
				continue
			}
			if err := child.AddHiddenNeuron(nid, donor.Neurons[nid].Function); err != nil {
				return nil, err
			}
		}
		if err := child.addGene(gene); err != nil && !errors.Is(err, ErrStructuralConflict) {
			return nil, fmt.Errorf("crossover of %d and %d: %w", parent1.ID, parent2.ID, err)
		}
	}

	child.AllowUselessHidden = parent1.AllowUselessHidden
	if err := child.RecalculateStructure(!child.AllowUselessHidden); err != nil {
		return nil, err
	}
	r.Ancestors[id] = []int{parent1.ID, parent2.ID}
	return child, nil
}

// Reproduce creates the next generation from the given species, which must be ordered by ID
// and whose members must all carry a fitness. best is the fittest network of the generation;
// while it belongs to one of the species it is carried over unchanged even if its species
// earns no elite, and it seeds the population when no species earns offspring. At most
// popSize elites are kept, fittest first.
func (r *Reproduction) Reproduce(species []*Species, best *Network, popSize int, adjusted bool,
	mutator *Mutator, rng *rand.Rand) (map[int]*Network, error) {

	r.Ancestors = make(map[int][]int, popSize)
	info := r.Stagnation.Update(species)

	var eligible []*Species
	for _, si := range info {
		if !si.IsStagnant {
			eligible = append(eligible, si.Species)
		}
	}
	if len(eligible) == 0 {
		// Every species is stagnant: only the best few keep reproducing.
		for i := 0; i < len(info) && i < r.Stagnation.Config.SpeciesElitism; i++ {
			eligible = append(eligible, info[i].Species)
		}
	}
	slices.SortFunc(eligible, func(a, b *Species) int { return a.ID - b.ID })

	elites := r.selectElites(species, eligible, best, popSize)

	for _, sp := range species {
		sp.RemoveWorstMembers(r.Config.RemoveWorstFraction)
		sp.RefreshRepresentative(rng)
	}

	weights := make([]float64, len(eligible))
	for i, sp := range eligible {
		weights[i] = sp.AverageFitness(adjusted)
	}
	spawn := computeSpawnAmounts(weights, popSize-len(elites))

	newPopulation := make(map[int]*Network, popSize)
	for _, elite := range elites {
		id := r.getNextID()
		newPopulation[id] = elite.Clone(id)
		r.Ancestors[id] = []int{elite.ID}
	}

	for i, sp := range eligible {
		for j := 0; j < spawn[i]; j++ {
			id := r.getNextID()
			var child *Network
			if rng.Float64() < r.Config.CrossoverProb {
				parent1, parent2 := sp.RandomByFitness(rng), sp.RandomByFitness(rng)
				var err error
				child, err = r.Crossover(id, parent1, parent2, rng)
				if err != nil {
					return nil, err
				}
			} else {
				parent := sp.RandomByFitness(rng)
				child = parent.Clone(id)
				r.Ancestors[id] = []int{parent.ID}
			}
			if err := mutator.Mutate(child); err != nil {
				return nil, err
			}
			newPopulation[id] = child
		}
	}

	if len(newPopulation) == 0 && best != nil {
		for i := 0; i < popSize; i++ {
			id := r.getNextID()
			child := best.Clone(id)
			child.SpeciesID = NoSpecies
			if err := mutator.Mutate(child); err != nil {
				return nil, err
			}
			newPopulation[id] = child
			r.Ancestors[id] = []int{best.ID}
		}
	}

	return newPopulation, nil
}

// selectElites picks the best member of every eligible species holding more than
// EliteMinMembers networks, plus best when it is a member of species and not already picked.
// Sizes are taken before culling. The result never exceeds popSize; when it has to be cut the
// fittest elites are kept.
func (r *Reproduction) selectElites(species, eligible []*Species, best *Network, popSize int) []*Network {
	var elites []*Network
	for _, sp := range eligible {
		if len(sp.Members) > r.Config.EliteMinMembers {
			elites = append(elites, sp.Best())
		}
	}
	if best != nil && !slices.Contains(elites, best) &&
		slices.ContainsFunc(species, func(sp *Species) bool { return sp.Members[best.ID] == best }) {
		elites = append(elites, best)
	}
	if len(elites) > max(popSize, 0) {
		slices.SortStableFunc(elites, func(a, b *Network) int {
			switch fa, fb := fitnessOf(a), fitnessOf(b); {
			case fa > fb:
				return -1
			case fa < fb:
				return 1
			}
			return 0
		})
		elites = elites[:max(popSize, 0)]
	}
	return elites
}

// computeSpawnAmounts splits slots across species in proportion to their weights using
// largest remainders, so the result always sums to slots. NaN and negative weights count as
// zero; if every weight is zero the slots are shared evenly.
func computeSpawnAmounts(weights []float64, slots int) []int {
	spawn := make([]int, len(weights))
	if len(weights) == 0 || slots <= 0 {
		return spawn
	}

	clean := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || w < 0 {
			w = 0
		}
		clean[i] = w
		total += w
	}
	if total == 0 || math.IsInf(total, 0) {
		for i := range spawn {
			spawn[i] = slots / len(spawn)
			if i < slots%len(spawn) {
				spawn[i]++
			}
		}
		return spawn
	}

	type remainder struct {
		idx  int
		frac float64
	}
	rems := make([]remainder, len(clean))
	assigned := 0
	for i, w := range clean {
		exact := w / total * float64(slots)
		spawn[i] = int(math.Floor(exact))
		assigned += spawn[i]
		rems[i] = remainder{idx: i, frac: exact - math.Floor(exact)}
	}
	slices.SortStableFunc(rems, func(a, b remainder) int {
		switch {
		case a.frac > b.frac:
			return -1
		case a.frac < b.frac:
			return 1
		}
		return 0
	})
	for i := 0; assigned < slots; i++ {
		spawn[rems[i%len(rems)].idx]++
		assigned++
	}
	return spawn
}

// templates returns copies of the input/bias and action neurons of n in ascending ID order.
func (n *Network) templates() (inputs, actions []Neuron) {
	for _, id := range n.InputIDs() {
		src := n.Neurons[id]
		inputs = append(inputs, NewNeuron(id, src.Type, src.Function))
	}
	for _, id := range n.ActionIDs() {
		src := n.Neurons[id]
		actions = append(actions, NewNeuron(id, src.Type, src.Function))
	}
	return inputs, actions
}

// matchTemplates checks that n has exactly the given input/bias and action neuron IDs.
func matchTemplates(n *Network, inputs, actions []Neuron) error {
	want := func(tmpl []Neuron) []int {
		ids := make([]int, len(tmpl))
		for i, t := range tmpl {
			ids[i] = t.ID
		}
		slices.Sort(ids)
		return ids
	}
	if !slices.Equal(n.InputIDs(), want(inputs)) || !slices.Equal(n.ActionIDs(), want(actions)) {
		return fmt.Errorf("network %d: %w", n.ID, ErrTemplateMismatch)
	}
	return nil
}
