package neat

import "fmt"

// NeuronType is the role of a neuron inside a network. It never changes after creation.
type NeuronType int

const (
	Input NeuronType = iota
	Bias
	Hidden
	Action
)

// String returns a readable name for the neuron type.
func (t NeuronType) String() string {
	switch t {
	case Input:
		return "input"
	case Bias:
		return "bias"
	case Hidden:
		return "hidden"
	case Action:
		return "action"
	}
	return fmt.Sprintf("NeuronType(%d)", int(t))
}

// isSource reports whether the neuron is fed by the caller rather than by connections.
func (t NeuronType) isSource() bool {
	return t == Input || t == Bias
}

// Neuron is a node of a network together with its evaluation state.
// Incoming and Outgoing hold the innovation IDs of every connection touching the neuron,
// feed-forward and recurrent alike.
type Neuron struct {
	ID       int
	Type     NeuronType
	Function ActivationFunction

	Incoming []int
	Outgoing []int

	Value     float64
	LastValue float64
	Activated bool

	inputs []float64
}

// NewNeuron creates a neuron without connections or state.
func NewNeuron(id int, typ NeuronType, fn ActivationFunction) Neuron {
	return Neuron{ID: id, Type: typ, Function: fn}
}

// String returns a short description of the neuron.
func (n *Neuron) String() string {
	return fmt.Sprintf("Neuron(id=%d, type=%s, fn=%s, value=%.3f)", n.ID, n.Type, n.Function, n.Value)
}

// accumulate adds one weighted input for the current evaluation pass.
func (n *Neuron) accumulate(v float64) {
	n.inputs = append(n.inputs, v)
}

// Activate applies the activation function to the accumulated inputs.
func (n *Neuron) Activate() {
	n.Value = n.Function.Apply(n.inputs, n.LastValue)
	n.Activated = true
}

// ResetState starts a new evaluation pass: the current output becomes LastValue and the accumulator is cleared.
func (n *Neuron) ResetState() {
	n.LastValue = n.Value
	n.inputs = n.inputs[:0]
	n.Activated = false
}

// Clear wipes all evaluation state, including the memory used by recurrent connections.
func (n *Neuron) Clear() {
	n.Value = 0
	n.LastValue = 0
	n.inputs = nil
	n.Activated = false
}

// clone returns a deep copy sharing no slices with n.
func (n *Neuron) clone() *Neuron {
	c := *n
	c.Incoming = append([]int(nil), n.Incoming...)
	c.Outgoing = append([]int(nil), n.Outgoing...)
	c.inputs = nil
	return &c
}

func removeID(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
