// Package config holds the validated hyperparameter bundle shared by the
// data, network and trainer components. A Config is built once by New and
// treated as read-only afterward; every other package reads it by pointer.
package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// NumClasses is the size of the steering label space: left, right, up.
const NumClasses = 3

// Config captures the knobs for a single training run.
type Config struct {
	Height   int
	Width    int
	Channels int

	// Architecture lists the output width of every layer, hidden layers
	// first. The final entry is the classifier width and must equal
	// NumClasses.
	Architecture []int

	// Activations holds one activation per hidden layer. Nil means the
	// default activation for every hidden layer.
	Activations []Activation

	BatchSize    int
	Epochs       int
	NumSteps     int
	SaveStep     int
	LearningRate float64
	Optimizer    Optimizer

	// Seed feeds every PRNG in the run so results are reproducible.
	Seed int64
}

// New validates cfg and returns it frozen.
func New(cfg Config) (*Config, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"height", c.Height},
		{"width", c.Width},
		{"channels", c.Channels},
		{"batch_size", c.BatchSize},
		{"epochs", c.Epochs},
		{"num_steps", c.NumSteps},
		{"save_step", c.SaveStep},
	} {
		if f.value <= 0 {
			return errors.Errorf("config: %s must be > 0 (got %d)", f.name, f.value)
		}
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("config: learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if len(c.Architecture) == 0 {
		return errors.New("config: architecture is empty")
	}
	for i, width := range c.Architecture {
		if width <= 0 {
			return errors.Errorf("config: architecture[%d] must be > 0 (got %d)", i, width)
		}
	}
	if last := c.Architecture[len(c.Architecture)-1]; last != NumClasses {
		return errors.Errorf("config: final layer width %d does not match the %d-class label space", last, NumClasses)
	}
	if c.Activations != nil && len(c.Activations) != len(c.Architecture)-1 {
		return errors.Errorf("config: %d activations for %d hidden layers",
			len(c.Activations), len(c.Architecture)-1)
	}
	return nil
}

// InputSize is the flattened width of one image sample.
func (c *Config) InputSize() int {
	return c.Height * c.Width * c.Channels
}

// Status returns a human-readable dump of every field, printed before a
// run starts so it can be reproduced.
func (c *Config) Status() string {
	var b strings.Builder
	fmt.Fprintf(&b, "height = %d\n", c.Height)
	fmt.Fprintf(&b, "width = %d\n", c.Width)
	fmt.Fprintf(&b, "channels = %d\n", c.Channels)
	fmt.Fprintf(&b, "architecture = %v\n", c.Architecture)
	if c.Activations == nil {
		fmt.Fprintf(&b, "activations = default\n")
	} else {
		names := make([]string, len(c.Activations))
		for i, a := range c.Activations {
			names[i] = a.String()
		}
		fmt.Fprintf(&b, "activations = [%s]\n", strings.Join(names, " "))
	}
	fmt.Fprintf(&b, "batch_size = %d\n", c.BatchSize)
	fmt.Fprintf(&b, "epochs = %d\n", c.Epochs)
	fmt.Fprintf(&b, "num_steps = %d\n", c.NumSteps)
	fmt.Fprintf(&b, "save_step = %d\n", c.SaveStep)
	fmt.Fprintf(&b, "learning_rate = %g\n", c.LearningRate)
	fmt.Fprintf(&b, "optimizer = %s\n", c.Optimizer)
	fmt.Fprintf(&b, "seed = %d", c.Seed)
	return b.String()
}
