package neat

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// MutateOptions holds the probability of every mutation operator. Each operator is rolled
// independently, so the probabilities need not sum to anything.
type MutateOptions struct {
	AddConnection    float64
	RemoveConnection float64
	AddNeuron        float64
	RemoveNeuron     float64
	RandomFunction   float64

	// Per-connection chances.
	AdjustWeight     float64
	ToggleConnection float64

	// WeightReplace is the chance that an adjusted weight is drawn anew instead of perturbed.
	WeightReplace float64
	// WeightAdjustPower bounds the perturbation applied to a weight.
	WeightAdjustPower float64

	// HiddenFunctions is the pool new or re-rolled hidden neurons draw their function from.
	HiddenFunctions []ActivationFunction
	// DefaultFunction is used for new hidden neurons unless RandomDefaultFunction is set.
	DefaultFunction       ActivationFunction
	RandomDefaultFunction bool

	// MaxAttempts bounds randomized picks such as choosing two distinct neurons.
	MaxAttempts int
}

// DefaultMutateOptions returns the operator probabilities used by the XOR benchmark.
func DefaultMutateOptions() MutateOptions {
	return MutateOptions{
		AddConnection:         0.3,
		RemoveConnection:      0.05,
		AddNeuron:             0.1,
		RemoveNeuron:          0.02,
		RandomFunction:        0.05,
		AdjustWeight:          0.8,
		ToggleConnection:      0.01,
		WeightReplace:         0.1,
		WeightAdjustPower:     0.5,
		HiddenFunctions:       append([]ActivationFunction(nil), AllActivationFunctions...),
		DefaultFunction:       Sigmoid,
		RandomDefaultFunction: true,
		MaxAttempts:           10,
	}
}

// Mutator applies randomized structural and weight changes to networks of one population.
type Mutator struct {
	Options MutateOptions
	Tracker *InnovationTracker

	rng *rand.Rand
}

// NewMutator creates a mutator drawing randomness from rng and gene identities from tracker.
func NewMutator(opts MutateOptions, tracker *InnovationTracker, rng *rand.Rand) *Mutator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Mutator{Options: opts, Tracker: tracker, rng: rng}
}

func (m *Mutator) roll(p float64) bool {
	return m.rng.Float64() < p
}

func (m *Mutator) pick(ids []int) int {
	return ids[m.rng.IntN(len(ids))]
}

func (m *Mutator) randomFunction() (ActivationFunction, bool) {
	pool := m.Options.HiddenFunctions
	if len(pool) == 0 {
		return m.Options.DefaultFunction, false
	}
	return pool[m.rng.IntN(len(pool))], true
}

// absorb drops the errors a mutation operator is allowed to produce.
func absorb(err error) error {
	if errors.Is(err, ErrStructuralConflict) || errors.Is(err, ErrRetryExhausted) {
		return nil
	}
	return err
}

// Mutate rolls every operator once against n, then prunes useless hidden neurons unless
// n.AllowUselessHidden is set, and recomputes the layering.
func (m *Mutator) Mutate(n *Network) error {
	ops := []struct {
		name   string
		chance float64
		apply  func(*Network) error
	}{
		{"add connection", m.Options.AddConnection, m.addConnection},
		{"remove connection", m.Options.RemoveConnection, m.removeConnection},
		{"add neuron", m.Options.AddNeuron, m.addNeuron},
		{"remove neuron", m.Options.RemoveNeuron, m.removeNeuron},
		{"random function", m.Options.RandomFunction, m.randomizeFunction},
	}
	for _, op := range ops {
		if !m.roll(op.chance) {
			continue
		}
		if err := absorb(op.apply(n)); err != nil {
			return fmt.Errorf("mutation %q on network %d: %w", op.name, n.ID, err)
		}
	}

	if err := m.mutateConnections(n); err != nil {
		return fmt.Errorf("connection mutation on network %d: %w", n.ID, err)
	}
	return n.RecalculateStructure(!n.AllowUselessHidden)
}

func (m *Mutator) addConnection(n *Network) error {
	hidden := n.HiddenIDs()
	starts := append(n.InputIDs(), hidden...)
	ends := append(n.ActionIDs(), hidden...)
	if len(starts) == 0 || len(ends) == 0 {
		return fmt.Errorf("no candidate neurons: %w", ErrRetryExhausted)
	}

	var source, target int
	err := retry(m.Options.MaxAttempts, func() error {
		source, target = m.pick(starts), m.pick(ends)
		if source == target {
			return errRejected
		}
		return nil
	})
	if err != nil {
		return err
	}
	if n.HasConnection(source, target) {
		return fmt.Errorf("edge %d->%d exists: %w", source, target, ErrStructuralConflict)
	}
	innov := m.Tracker.NewInnovation(source, target)
	return n.AddConnection(innov, source, target, randomWeight(m.rng, MaxWeight))
}

func (m *Mutator) removeConnection(n *Network) error {
	innovs := n.InnovationIDs()
	if len(innovs) == 0 {
		return nil
	}
	return n.RemoveConnection(m.pick(innovs))
}

func (m *Mutator) addNeuron(n *Network) error {
	var enabled []int
	for _, innov := range n.InnovationIDs() {
		if c, ok := n.Connections[innov]; ok && c.Activated {
			enabled = append(enabled, innov)
		}
	}
	if len(enabled) == 0 {
		return nil
	}
	fn := m.Options.DefaultFunction
	if m.Options.RandomDefaultFunction {
		fn, _ = m.randomFunction()
	}
	_, err := n.SplitConnection(m.pick(enabled), m.Tracker, fn)
	return err
}

func (m *Mutator) removeNeuron(n *Network) error {
	hidden := n.HiddenIDs()
	if len(hidden) == 0 {
		return nil
	}
	return n.RemoveNeuron(m.pick(hidden))
}

func (m *Mutator) randomizeFunction(n *Network) error {
	hidden := n.HiddenIDs()
	if len(hidden) == 0 {
		return nil
	}
	fn, ok := m.randomFunction()
	if !ok {
		return nil
	}
	return n.SetFunction(m.pick(hidden), fn)
}

func (m *Mutator) mutateConnections(n *Network) error {
	for _, innov := range n.InnovationIDs() {
		if m.roll(m.Options.AdjustWeight) {
			c, _ := n.Connection(innov)
			w := c.Weight + randomWeight(m.rng, m.Options.WeightAdjustPower)
			if m.roll(m.Options.WeightReplace) {
				w = randomWeight(m.rng, MaxWeight)
			}
			if err := n.SetWeight(innov, w); err != nil {
				return err
			}
		}
		if m.roll(m.Options.ToggleConnection) {
			c, _ := n.Connection(innov)
			if err := n.SetActivated(innov, !c.Activated); err != nil {
				return err
			}
		}
	}
	return nil
}
