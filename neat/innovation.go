package neat

// InnovationTracker issues stable identities for structural changes within one population.
// The same (source, target) pair always maps to the same innovation ID for the lifetime of
// the tracker, and neuron IDs are never reused.
type InnovationTracker struct {
	Innovations    map[ConnectionKey]int
	NextInnovation int
	NextNeuronID   int
}

// NewInnovationTracker creates a tracker whose first hidden neuron receives nextNeuronID.
func NewInnovationTracker(nextNeuronID int) *InnovationTracker {
	return &InnovationTracker{
		Innovations:  make(map[ConnectionKey]int),
		NextNeuronID: nextNeuronID,
	}
}

// NewInnovation returns the innovation ID for the edge source->target, allocating one on first request.
func (t *InnovationTracker) NewInnovation(sourceID, targetID int) int {
	key := ConnectionKey{SourceID: sourceID, TargetID: targetID}
	if id, ok := t.Innovations[key]; ok {
		return id
	}
	id := t.NextInnovation
	t.Innovations[key] = id
	t.NextInnovation++
	return id
}

// Lookup returns the innovation ID of an edge without allocating one.
func (t *InnovationTracker) Lookup(sourceID, targetID int) (int, bool) {
	id, ok := t.Innovations[ConnectionKey{SourceID: sourceID, TargetID: targetID}]
	return id, ok
}

// NewNeuronID returns a fresh neuron ID.
func (t *InnovationTracker) NewNeuronID() int {
	id := t.NextNeuronID
	t.NextNeuronID++
	return id
}

// Len returns the number of innovations issued so far.
func (t *InnovationTracker) Len() int {
	return len(t.Innovations)
}
