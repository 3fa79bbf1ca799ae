package neat

import (
	"fmt"
	"math"
	"strings"
)

// ActivationFunction identifies the transfer function of a neuron.
type ActivationFunction int

const (
	Identity ActivationFunction = iota
	Sigmoid
	Tanh
	ReLU
	SELU
	GELU
	Swish
	Latch
	Abs
	Gaussian
	Multiply
	BinaryStep
)

const (
	seluLambda = 1.0507009873554804934193349852946
	seluAlpha  = 1.6732632423543772848170429916717
)

// AllActivationFunctions lists every supported function in declaration order.
var AllActivationFunctions = []ActivationFunction{
	Identity, Sigmoid, Tanh, ReLU, SELU, GELU, Swish, Latch, Abs, Gaussian, Multiply, BinaryStep,
}

// ActivationFunctions maps configuration names to activation functions.
var ActivationFunctions = map[string]ActivationFunction{
	"identity":   Identity,
	"sigmoid":    Sigmoid,
	"tanh":       Tanh,
	"relu":       ReLU,
	"selu":       SELU,
	"gelu":       GELU,
	"swish":      Swish,
	"latch":      Latch,
	"abs":        Abs,
	"gaussian":   Gaussian,
	"mult":       Multiply,
	"binarystep": BinaryStep,
}

// activationRange is the closed interval a function's output is clamped into.
type activationRange struct {
	min, max float64
}

var activationRanges = [...]activationRange{
	Identity:   {-math.MaxFloat64, math.MaxFloat64},
	Sigmoid:    {0, 1},
	Tanh:       {-1, 1},
	ReLU:       {0, math.MaxFloat64},
	SELU:       {-1.758, math.MaxFloat64},
	GELU:       {-0.17, math.MaxFloat64},
	Swish:      {-0.278, math.MaxFloat64},
	Latch:      {0, 1},
	Abs:        {0, math.MaxFloat64},
	Gaussian:   {0, 1},
	Multiply:   {-math.MaxFloat64, math.MaxFloat64},
	BinaryStep: {0, 1},
}

// ParseActivationFunction looks up an activation function by its configuration name.
func ParseActivationFunction(name string) (ActivationFunction, error) {
	if fn, ok := ActivationFunctions[strings.ToLower(strings.TrimSpace(name))]; ok {
		return fn, nil
	}
	return Identity, fmt.Errorf("unknown activation function: %s", name)
}

// String returns the configuration name of the function.
func (f ActivationFunction) String() string {
	for name, fn := range ActivationFunctions {
		if fn == f {
			return name
		}
	}
	return fmt.Sprintf("ActivationFunction(%d)", int(f))
}

// Valid reports whether f is one of the known functions.
func (f ActivationFunction) Valid() bool {
	return f >= Identity && f <= BinaryStep
}

// Apply computes the function over the weighted inputs of a neuron.
// last is the neuron's previous output, used by Latch.
// The result is always finite: NaN becomes 0 and infinities are clamped to the function's range.
func (f ActivationFunction) Apply(inputs []float64, last float64) float64 {
	if f == Multiply {
		return sanitize(product(inputs), activationRanges[f])
	}

	x := 0.0
	for _, in := range inputs {
		x += in
	}

	var y float64
	switch f {
	case Sigmoid:
		y = 1.0 / (1.0 + math.Exp(-x))
	case Tanh:
		y = math.Tanh(x)
	case ReLU:
		y = math.Max(0, x)
	case SELU:
		if x > 0 {
			y = seluLambda * x
		} else {
			y = seluLambda * seluAlpha * (math.Exp(x) - 1)
		}
	case GELU:
		y = 0.5 * x * (1 + math.Tanh(math.Sqrt(2/math.Pi)*(x+0.044715*x*x*x)))
	case Swish:
		y = x / (1.0 + math.Exp(-x))
	case Latch:
		switch {
		case x >= 1:
			y = 1
		case x <= 0:
			y = 0
		default:
			y = last
		}
	case Abs:
		y = math.Abs(x)
	case Gaussian:
		y = math.Exp(-x * x)
	case BinaryStep:
		if x < 0 {
			y = 0
		} else {
			y = 1
		}
	default:
		y = x
	}
	return sanitize(y, activationRanges[f])
}

func product(inputs []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	p := 1.0
	for _, in := range inputs {
		p *= in
	}
	return p
}

func sanitize(y float64, r activationRange) float64 {
	if math.IsNaN(y) {
		return 0
	}
	return clamp(y, r.min, r.max)
}
