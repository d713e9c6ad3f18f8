package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lulzzz/self-driving-pi-car/internal/config"
)

// DefaultActivation is used for every hidden layer when the run does not
// name activations explicitly.
const DefaultActivation = config.ReLU

func activate(a config.Activation, m *mat.Dense) {
	raw := m.RawMatrix().Data
	switch a {
	case config.ReLU:
		for i, v := range raw {
			if v < 0 {
				raw[i] = 0
			}
		}
	case config.Sigmoid:
		for i, v := range raw {
			raw[i] = 1 / (1 + math.Exp(-v))
		}
	case config.Tanh:
		for i, v := range raw {
			raw[i] = math.Tanh(v)
		}
	}
}

// scaleByDeriv multiplies grad elementwise by the activation derivative,
// evaluated from the activated outputs.
func scaleByDeriv(a config.Activation, out, grad *mat.Dense) {
	outRaw := out.RawMatrix().Data
	gradRaw := grad.RawMatrix().Data
	switch a {
	case config.ReLU:
		for i, y := range outRaw {
			if y <= 0 {
				gradRaw[i] = 0
			}
		}
	case config.Sigmoid:
		for i, y := range outRaw {
			gradRaw[i] *= y * (1 - y)
		}
	case config.Tanh:
		for i, y := range outRaw {
			gradRaw[i] *= 1 - y*y
		}
	}
}
