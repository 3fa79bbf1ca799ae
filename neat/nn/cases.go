package nn

import (
	"fmt"
	"math"
	"slices"

	"github.com/baldhumanity/neat-expanded/neat"
)

// Case is one labelled example: the values written to the input neurons and the values the
// action neurons should produce.
type Case struct {
	Inputs   []float64
	Expected []float64
}

// MeanAbsoluteScore returns a ScoreFunc giving 1 minus the mean absolute error over every
// output of every case. Recurrent state is cleared before the first case, so cases are seen
// in order as one episode. A NaN output scores 0.
func MeanAbsoluteScore(cases []Case) ScoreFunc {
	return func(n *neat.Network) (float64, error) {
		if len(cases) == 0 {
			return 0, nil
		}
		n.ResetState()

		total, count := 0.0, 0
		for i, c := range cases {
			outputs, err := n.Evaluate(c.Inputs)
			if err != nil {
				return 0, err
			}
			if len(outputs) != len(c.Expected) {
				return 0, fmt.Errorf("case %d expects %d outputs, network has %d", i, len(c.Expected), len(outputs))
			}
			for j, out := range outputs {
				if math.IsNaN(out) {
					return 0, nil
				}
				total += math.Abs(out - c.Expected[j])
				count++
			}
		}
		if count == 0 {
			return 0, nil
		}
		return math.Max(0, 1-total/float64(count)), nil
	}
}

// XORCases returns the 2^inputs cases of the parity function over inputs binary inputs. When
// bias is set a constant 1 is appended to every input vector.
func XORCases(inputs int, bias bool) []Case {
	cases := make([]Case, 0, 1<<inputs)
	for mask := 0; mask < 1<<inputs; mask++ {
		in := make([]float64, 0, inputs+1)
		parity := 0
		for bit := inputs - 1; bit >= 0; bit-- {
			v := (mask >> bit) & 1
			parity ^= v
			in = append(in, float64(v))
		}
		if bias {
			in = append(in, 1)
		}
		cases = append(cases, Case{Inputs: in, Expected: []float64{float64(parity)}})
	}
	return cases
}

func sortedIDs(networks map[int]*neat.Network) []int {
	ids := make([]int, 0, len(networks))
	for id := range networks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
