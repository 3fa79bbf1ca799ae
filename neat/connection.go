package neat

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// MaxWeight bounds the absolute value of every connection weight.
const MaxWeight = 4.0

// Connection is a weighted edge between two neurons. Two connections with the same
// InnovationID are the same gene, wherever they appear in the population.
// Connections are values: change one through the owning Network.
type Connection struct {
	InnovationID int
	SourceID     int
	TargetID     int
	Weight       float64
	Activated    bool
}

// ConnectionKey identifies a structural edge by its endpoints.
type ConnectionKey struct {
	SourceID int
	TargetID int
}

// Key returns the endpoints of the connection.
func (c Connection) Key() ConnectionKey {
	return ConnectionKey{SourceID: c.SourceID, TargetID: c.TargetID}
}

// String returns a string representation of the Connection.
func (c Connection) String() string {
	return fmt.Sprintf("Connection(#%d: %d->%d, weight=%.3f, activated=%t)",
		c.InnovationID, c.SourceID, c.TargetID, c.Weight, c.Activated)
}

// clampWeight keeps w inside [-MaxWeight, MaxWeight].
func clampWeight(w float64) float64 {
	if math.IsNaN(w) {
		return 0
	}
	return clamp(w, -MaxWeight, MaxWeight)
}

// randomWeight returns a weight in (-magnitude, magnitude) with a random sign.
func randomWeight(rng *rand.Rand, magnitude float64) float64 {
	w := rng.Float64() * magnitude
	if rng.IntN(2) == 0 {
		return -w
	}
	return w
}
