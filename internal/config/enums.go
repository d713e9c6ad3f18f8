package config

import "github.com/pkg/errors"

// Activation identifies the nonlinearity applied after a hidden layer.
// Names are resolved to values once, at wiring time, so an unknown name
// surfaces before any training work begins.
type Activation int

const (
	ReLU Activation = iota
	Sigmoid
	Tanh
)

var activationNames = map[Activation]string{
	ReLU:    "relu",
	Sigmoid: "sigmoid",
	Tanh:    "tanh",
}

func (a Activation) String() string {
	if s, ok := activationNames[a]; ok {
		return s
	}
	return "unknown"
}

// ParseActivation resolves an activation name from the command surface.
func ParseActivation(name string) (Activation, error) {
	for a, s := range activationNames {
		if s == name {
			return a, nil
		}
	}
	return 0, errors.Errorf("config: unknown activation %q", name)
}

// Optimizer identifies the parameter update algorithm for a run.
type Optimizer int

const (
	GradientDescent Optimizer = iota
	Adadelta
	Adagrad
	Adam
	Ftrl
	ProximalGradientDescent
	ProximalAdagrad
	RMSProp
)

var optimizerNames = map[Optimizer]string{
	GradientDescent:         "GradientDescent",
	Adadelta:                "Adadelta",
	Adagrad:                 "Adagrad",
	Adam:                    "Adam",
	Ftrl:                    "Ftrl",
	ProximalGradientDescent: "ProximalGradientDescent",
	ProximalAdagrad:         "ProximalAdagrad",
	RMSProp:                 "RMSProp",
}

func (o Optimizer) String() string {
	if s, ok := optimizerNames[o]; ok {
		return s
	}
	return "unknown"
}

// ParseOptimizer resolves an optimizer name from the command surface.
func ParseOptimizer(name string) (Optimizer, error) {
	for o, s := range optimizerNames {
		if s == name {
			return o, nil
		}
	}
	return 0, errors.Errorf("config: unknown optimizer %q", name)
}
