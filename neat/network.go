package neat

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph/simple"
)

// NoSpecies marks a network that has not been assigned to a species.
const NoSpecies = -1

// Network is both the genome and the phenotype of one individual: a set of neurons joined by
// feed-forward and recurrent connections, keyed by innovation ID. The two connection maps are
// disjoint. Feed-forward connections never form a cycle and define the layering; recurrent
// connections read the previous output of their source.
type Network struct {
	ID        int
	SpeciesID int
	Fitness   float64

	// AllowUselessHidden keeps hidden neurons that lost their inputs or outputs when the
	// structure is recalculated.
	AllowUselessHidden bool

	Neurons              map[int]*Neuron
	Connections          map[int]Connection
	RecurrentConnections map[int]Connection

	graph  *simple.DirectedGraph
	layers [][]int
}

// NewNetwork creates a network holding only the given input/bias and action neurons.
func NewNetwork(id int, inputs, actions []Neuron) (*Network, error) {
	n := &Network{
		ID:                   id,
		SpeciesID:            NoSpecies,
		Neurons:              make(map[int]*Neuron, len(inputs)+len(actions)),
		Connections:          make(map[int]Connection),
		RecurrentConnections: make(map[int]Connection),
	}
	for _, tmpl := range inputs {
		if !tmpl.Type.isSource() {
			return nil, fmt.Errorf("input template neuron %d has type %s: %w", tmpl.ID, tmpl.Type, ErrTemplateMismatch)
		}
		if err := n.addTemplateNeuron(tmpl); err != nil {
			return nil, err
		}
	}
	for _, tmpl := range actions {
		if tmpl.Type != Action {
			return nil, fmt.Errorf("action template neuron %d has type %s: %w", tmpl.ID, tmpl.Type, ErrTemplateMismatch)
		}
		if err := n.addTemplateNeuron(tmpl); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Network) addTemplateNeuron(tmpl Neuron) error {
	if _, exists := n.Neurons[tmpl.ID]; exists {
		return fmt.Errorf("duplicate neuron ID %d: %w", tmpl.ID, ErrTemplateMismatch)
	}
	neuron := NewNeuron(tmpl.ID, tmpl.Type, tmpl.Function)
	n.Neurons[tmpl.ID] = &neuron
	return nil
}

// Clone returns a deep copy of the network under a new ID. Fitness is reset.
func (n *Network) Clone(id int) *Network {
	c := &Network{
		ID:                   id,
		SpeciesID:            n.SpeciesID,
		AllowUselessHidden:   n.AllowUselessHidden,
		Neurons:              make(map[int]*Neuron, len(n.Neurons)),
		Connections:          make(map[int]Connection, len(n.Connections)),
		RecurrentConnections: make(map[int]Connection, len(n.RecurrentConnections)),
	}
	for nid, neuron := range n.Neurons {
		c.Neurons[nid] = neuron.clone()
	}
	for innov, conn := range n.Connections {
		c.Connections[innov] = conn
	}
	for innov, conn := range n.RecurrentConnections {
		c.RecurrentConnections[innov] = conn
	}
	return c
}

// String returns a short description of the network.
func (n *Network) String() string {
	return fmt.Sprintf("Network(id=%d, species=%d, fitness=%.4f, neurons=%d, connections=%d+%d)",
		n.ID, n.SpeciesID, n.Fitness, len(n.Neurons), len(n.Connections), len(n.RecurrentConnections))
}

func (n *Network) idsOf(match func(NeuronType) bool) []int {
	var ids []int
	for id, neuron := range n.Neurons {
		if match(neuron.Type) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// InputIDs returns the IDs of the input and bias neurons in ascending order.
func (n *Network) InputIDs() []int {
	return n.idsOf(NeuronType.isSource)
}

// HiddenIDs returns the IDs of the hidden neurons in ascending order.
func (n *Network) HiddenIDs() []int {
	return n.idsOf(func(t NeuronType) bool { return t == Hidden })
}

// ActionIDs returns the IDs of the action neurons in ascending order.
func (n *Network) ActionIDs() []int {
	return n.idsOf(func(t NeuronType) bool { return t == Action })
}

// Neuron returns the neuron with the given ID.
func (n *Network) Neuron(id int) (*Neuron, error) {
	neuron, ok := n.Neurons[id]
	if !ok {
		return nil, fmt.Errorf("neuron %d in network %d: %w", id, n.ID, ErrNotFound)
	}
	return neuron, nil
}

// Connection returns the gene with the given innovation ID from either connection map.
func (n *Network) Connection(innovationID int) (Connection, bool) {
	if c, ok := n.Connections[innovationID]; ok {
		return c, true
	}
	c, ok := n.RecurrentConnections[innovationID]
	return c, ok
}

// IsRecurrent reports whether the gene is stored in the recurrent map.
func (n *Network) IsRecurrent(innovationID int) bool {
	_, ok := n.RecurrentConnections[innovationID]
	return ok
}

// HasConnection reports whether an edge source->target exists in either map.
func (n *Network) HasConnection(sourceID, targetID int) bool {
	source, ok := n.Neurons[sourceID]
	if !ok {
		return false
	}
	for _, innov := range source.Outgoing {
		if c, ok := n.Connection(innov); ok && c.TargetID == targetID {
			return true
		}
	}
	return false
}

// GeneCount returns the number of connection genes, feed-forward and recurrent.
func (n *Network) GeneCount() int {
	return len(n.Connections) + len(n.RecurrentConnections)
}

// InnovationIDs returns every innovation ID held by the network in ascending order.
func (n *Network) InnovationIDs() []int {
	ids := make([]int, 0, n.GeneCount())
	for innov := range n.Connections {
		ids = append(ids, innov)
	}
	for innov := range n.RecurrentConnections {
		ids = append(ids, innov)
	}
	slices.Sort(ids)
	return ids
}

// AddConnection inserts an enabled connection. It is stored as feed-forward or recurrent
// according to CheckRecurrent. Duplicated edges or innovations yield ErrStructuralConflict.
func (n *Network) AddConnection(innovationID, sourceID, targetID int, weight float64) error {
	return n.addGene(Connection{
		InnovationID: innovationID,
		SourceID:     sourceID,
		TargetID:     targetID,
		Weight:       weight,
		Activated:    true,
	})
}

// addGene inserts c as is, keeping its Activated flag.
func (n *Network) addGene(c Connection) error {
	if _, exists := n.Connection(c.InnovationID); exists {
		return fmt.Errorf("innovation %d already in network %d: %w", c.InnovationID, n.ID, ErrStructuralConflict)
	}
	if n.HasConnection(c.SourceID, c.TargetID) {
		return fmt.Errorf("edge %d->%d already in network %d: %w", c.SourceID, c.TargetID, n.ID, ErrStructuralConflict)
	}
	recurrent, err := n.CheckRecurrent(c.SourceID, c.TargetID)
	if err != nil {
		return err
	}

	c.Weight = clampWeight(c.Weight)
	if recurrent {
		n.RecurrentConnections[c.InnovationID] = c
	} else {
		n.Connections[c.InnovationID] = c
		n.invalidate()
	}
	source, target := n.Neurons[c.SourceID], n.Neurons[c.TargetID]
	source.Outgoing = append(source.Outgoing, c.InnovationID)
	target.Incoming = append(target.Incoming, c.InnovationID)
	return nil
}

// RemoveConnection deletes a gene from whichever map holds it. Neurons left without
// connections stay until the structure is recalculated.
func (n *Network) RemoveConnection(innovationID int) error {
	c, ok := n.Connection(innovationID)
	if !ok {
		return fmt.Errorf("connection %d in network %d: %w", innovationID, n.ID, ErrNotFound)
	}
	if _, ff := n.Connections[innovationID]; ff {
		delete(n.Connections, innovationID)
		n.invalidate()
	} else {
		delete(n.RecurrentConnections, innovationID)
	}
	if source, ok := n.Neurons[c.SourceID]; ok {
		source.Outgoing = removeID(source.Outgoing, innovationID)
	}
	if target, ok := n.Neurons[c.TargetID]; ok {
		target.Incoming = removeID(target.Incoming, innovationID)
	}
	return nil
}

// UpdateConnection replaces the stored gene that has the same innovation ID as c.
// Only the weight and the Activated flag may differ from the stored gene.
func (n *Network) UpdateConnection(c Connection) error {
	old, ok := n.Connection(c.InnovationID)
	if !ok {
		return fmt.Errorf("connection %d in network %d: %w", c.InnovationID, n.ID, ErrNotFound)
	}
	if old.SourceID != c.SourceID || old.TargetID != c.TargetID {
		return fmt.Errorf("connection %d cannot move from %d->%d to %d->%d: %w",
			c.InnovationID, old.SourceID, old.TargetID, c.SourceID, c.TargetID, ErrStructuralConflict)
	}
	c.Weight = clampWeight(c.Weight)
	if _, ff := n.Connections[c.InnovationID]; ff {
		n.Connections[c.InnovationID] = c
	} else {
		n.RecurrentConnections[c.InnovationID] = c
	}
	return nil
}

// SetWeight changes the weight of a gene, clamped to [-MaxWeight, MaxWeight].
func (n *Network) SetWeight(innovationID int, weight float64) error {
	c, ok := n.Connection(innovationID)
	if !ok {
		return fmt.Errorf("connection %d in network %d: %w", innovationID, n.ID, ErrNotFound)
	}
	c.Weight = weight
	return n.UpdateConnection(c)
}

// SetActivated enables or disables a gene.
func (n *Network) SetActivated(innovationID int, activated bool) error {
	c, ok := n.Connection(innovationID)
	if !ok {
		return fmt.Errorf("connection %d in network %d: %w", innovationID, n.ID, ErrNotFound)
	}
	c.Activated = activated
	return n.UpdateConnection(c)
}

// AddHiddenNeuron inserts an unconnected hidden neuron.
func (n *Network) AddHiddenNeuron(id int, fn ActivationFunction) error {
	if _, exists := n.Neurons[id]; exists {
		return fmt.Errorf("neuron %d already in network %d: %w", id, n.ID, ErrStructuralConflict)
	}
	neuron := NewNeuron(id, Hidden, fn)
	n.Neurons[id] = &neuron
	n.invalidate()
	return nil
}

// SplitConnection grows the network by one hidden neuron placed on an enabled feed-forward
// connection. The connection is disabled and replaced by source->new, which inherits its
// weight, and new->target with weight 1. It returns the new neuron's ID.
func (n *Network) SplitConnection(innovationID int, tracker *InnovationTracker, fn ActivationFunction) (int, error) {
	c, ok := n.Connections[innovationID]
	if !ok {
		if n.IsRecurrent(innovationID) {
			return 0, fmt.Errorf("connection %d is recurrent: %w", innovationID, ErrStructuralConflict)
		}
		return 0, fmt.Errorf("connection %d in network %d: %w", innovationID, n.ID, ErrNotFound)
	}
	if !c.Activated {
		return 0, fmt.Errorf("connection %d is disabled: %w", innovationID, ErrStructuralConflict)
	}

	id := tracker.NewNeuronID()
	if err := n.AddHiddenNeuron(id, fn); err != nil {
		return 0, err
	}
	c.Activated = false
	n.Connections[innovationID] = c

	if err := n.AddConnection(tracker.NewInnovation(c.SourceID, id), c.SourceID, id, c.Weight); err != nil {
		return 0, err
	}
	if err := n.AddConnection(tracker.NewInnovation(id, c.TargetID), id, c.TargetID, 1.0); err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveNeuron deletes a hidden neuron together with every connection touching it.
func (n *Network) RemoveNeuron(id int) error {
	neuron, ok := n.Neurons[id]
	if !ok {
		return fmt.Errorf("neuron %d in network %d: %w", id, n.ID, ErrNotFound)
	}
	if neuron.Type != Hidden {
		return fmt.Errorf("cannot remove %s neuron %d: %w", neuron.Type, id, ErrStructuralConflict)
	}
	touching := append(slices.Clone(neuron.Incoming), neuron.Outgoing...)
	for _, innov := range touching {
		if _, ok := n.Connection(innov); !ok {
			continue // self-loops appear in both lists
		}
		if err := n.RemoveConnection(innov); err != nil {
			return err
		}
	}
	delete(n.Neurons, id)
	n.invalidate()
	return nil
}

// SetFunction changes the activation function of a hidden neuron.
func (n *Network) SetFunction(id int, fn ActivationFunction) error {
	neuron, ok := n.Neurons[id]
	if !ok {
		return fmt.Errorf("neuron %d in network %d: %w", id, n.ID, ErrNotFound)
	}
	if neuron.Type != Hidden {
		return fmt.Errorf("cannot change function of %s neuron %d: %w", neuron.Type, id, ErrStructuralConflict)
	}
	if !fn.Valid() {
		return fmt.Errorf("invalid activation function %d", int(fn))
	}
	neuron.Function = fn
	return nil
}

// UselessHidden returns the hidden neurons that have no enabled incoming or no enabled
// outgoing connection. Self-loops do not count.
func (n *Network) UselessHidden() []int {
	var useless []int
	for _, id := range n.HiddenIDs() {
		neuron := n.Neurons[id]
		if !n.hasEnabled(neuron.Incoming, id) || !n.hasEnabled(neuron.Outgoing, id) {
			useless = append(useless, id)
		}
	}
	return useless
}

func (n *Network) hasEnabled(innovs []int, self int) bool {
	for _, innov := range innovs {
		c, ok := n.Connection(innov)
		if ok && c.Activated && c.SourceID != c.TargetID {
			return true
		}
	}
	return false
}

// RecalculateStructure optionally prunes useless hidden neurons until none remain, then
// recomputes the layering.
func (n *Network) RecalculateStructure(removeUseless bool) error {
	if removeUseless {
		for {
			useless := n.UselessHidden()
			if len(useless) == 0 {
				break
			}
			for _, id := range useless {
				if err := n.RemoveNeuron(id); err != nil {
					return err
				}
			}
		}
	}
	n.invalidate()
	_, err := n.Layers()
	return err
}

// Evaluate runs one evaluation cycle. inputs are written to the input and bias neurons in
// ascending ID order; the result holds one value per action neuron in ascending ID order.
// Recurrent connections contribute their source's output from the previous call.
func (n *Network) Evaluate(inputs []float64) ([]float64, error) {
	inputIDs := n.InputIDs()
	if len(inputs) != len(inputIDs) {
		return nil, fmt.Errorf("network %d expects %d inputs, got %d", n.ID, len(inputIDs), len(inputs))
	}
	layers, err := n.Layers()
	if err != nil {
		return nil, err
	}

	for _, neuron := range n.Neurons {
		neuron.ResetState()
	}

	for _, layer := range layers {
		for _, id := range layer {
			target := n.Neurons[id]
			for _, innov := range target.Incoming {
				if c, ok := n.RecurrentConnections[innov]; ok && c.Activated {
					target.accumulate(n.Neurons[c.SourceID].LastValue * c.Weight)
				}
			}
		}
	}

	for i, id := range inputIDs {
		neuron := n.Neurons[id]
		neuron.Value = inputs[i]
		neuron.Activated = true
	}

	for _, layer := range layers {
		for _, id := range layer {
			neuron := n.Neurons[id]
			if neuron.Type.isSource() {
				continue
			}
			for _, innov := range neuron.Incoming {
				if c, ok := n.Connections[innov]; ok && c.Activated {
					neuron.accumulate(n.Neurons[c.SourceID].Value * c.Weight)
				}
			}
			neuron.Activate()
		}
	}

	actionIDs := n.ActionIDs()
	outputs := make([]float64, len(actionIDs))
	for i, id := range actionIDs {
		outputs[i] = n.Neurons[id].Value
	}
	return outputs, nil
}

// ResetState clears every neuron's output and recurrent memory.
func (n *Network) ResetState() {
	for _, neuron := range n.Neurons {
		neuron.Clear()
	}
}
