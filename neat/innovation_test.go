package neat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInnovationTracker(t *testing.T) {
	tracker := NewInnovationTracker(5)

	first := tracker.NewInnovation(0, 4)
	assert.Equal(t, first, tracker.NewInnovation(0, 4), "same edge keeps its ID")

	second := tracker.NewInnovation(1, 4)
	reversed := tracker.NewInnovation(4, 1)
	assert.Greater(t, second, first)
	assert.Greater(t, reversed, second, "direction is part of the edge")
	assert.Equal(t, 3, tracker.Len())

	id, ok := tracker.Lookup(1, 4)
	assert.True(t, ok)
	assert.Equal(t, second, id)
	_, ok = tracker.Lookup(2, 4)
	assert.False(t, ok)
	assert.Equal(t, 3, tracker.Len(), "lookup does not allocate")

	assert.Equal(t, 5, tracker.NewNeuronID())
	assert.Equal(t, 6, tracker.NewNeuronID())
}
