package neat

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// feedForwardGraph returns the directed graph spanned by every feed-forward connection,
// enabled or not. Recurrent connections are not part of it.
func (n *Network) feedForwardGraph() *simple.DirectedGraph {
	if n.graph != nil {
		return n.graph
	}
	g := simple.NewDirectedGraph()
	for id := range n.Neurons {
		g.AddNode(simple.Node(id))
	}
	for _, c := range n.Connections {
		g.SetEdge(simple.Edge{F: simple.Node(c.SourceID), T: simple.Node(c.TargetID)})
	}
	n.graph = g
	return g
}

// CheckRecurrent reports whether a connection source->target has to be stored as recurrent,
// i.e. whether accepting it as feed-forward would close a cycle.
func (n *Network) CheckRecurrent(sourceID, targetID int) (bool, error) {
	source, ok := n.Neurons[sourceID]
	if !ok {
		return false, fmt.Errorf("source neuron %d: %w", sourceID, ErrNotFound)
	}
	target, ok := n.Neurons[targetID]
	if !ok {
		return false, fmt.Errorf("target neuron %d: %w", targetID, ErrNotFound)
	}
	if target.Type.isSource() {
		return false, fmt.Errorf("connection into %s neuron %d: %w", target.Type, targetID, ErrStructuralConflict)
	}

	switch {
	case sourceID == targetID:
		return true, nil
	case source.Type == Action:
		// Actions never feed forward; anything leaving them reads the previous cycle.
		return true, nil
	case target.Type == Action:
		return false, nil
	case source.Type.isSource():
		return false, nil
	}

	g := n.feedForwardGraph()
	return topo.PathExistsIn(g, g.Node(int64(targetID)), g.Node(int64(sourceID))), nil
}

// Layers returns the neuron IDs grouped by layer, layer 1 first. Each group is sorted by ID.
// Input and bias neurons form layer 1, every other neuron sits one layer above its deepest
// feed-forward source, and all action neurons share the final layer.
func (n *Network) Layers() ([][]int, error) {
	if n.layers != nil {
		return n.layers, nil
	}

	g := n.feedForwardGraph()
	order, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		slices.SortFunc(nodes, func(a, b graph.Node) int { return int(a.ID() - b.ID()) })
	})
	if err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) {
			return nil, fmt.Errorf("network %d has %d feed-forward cycle(s): %w", n.ID, len(cycles), ErrCycle)
		}
		return nil, fmt.Errorf("network %d: %w", n.ID, err)
	}

	layerOf := make(map[int]int, len(order))
	deepest := 1
	for _, node := range order {
		id := int(node.ID())
		neuron := n.Neurons[id]
		if neuron.Type.isSource() {
			layerOf[id] = 1
			continue
		}
		l := 1
		preds := g.To(node.ID())
		for preds.Next() {
			if pl := layerOf[int(preds.Node().ID())]; pl > l {
				l = pl
			}
		}
		layerOf[id] = l + 1
		if neuron.Type != Action && l+1 > deepest {
			deepest = l + 1
		}
	}

	final := deepest + 1
	layers := make([][]int, final)
	for _, node := range order {
		id := int(node.ID())
		l := layerOf[id]
		if n.Neurons[id].Type == Action {
			l = final
		}
		layers[l-1] = append(layers[l-1], id)
	}
	for _, layer := range layers {
		slices.Sort(layer)
	}

	n.layers = layers
	return layers, nil
}

// Layer returns the 1-based layer of a neuron.
func (n *Network) Layer(neuronID int) (int, error) {
	layers, err := n.Layers()
	if err != nil {
		return 0, err
	}
	for i, layer := range layers {
		if _, found := slices.BinarySearch(layer, neuronID); found {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("neuron %d: %w", neuronID, ErrNotFound)
}

// invalidate drops the cached feed-forward graph and layering.
func (n *Network) invalidate() {
	n.graph = nil
	n.layers = nil
}
