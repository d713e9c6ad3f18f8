// Package nn implements the fully-connected classifier network and the
// optimizer update rules that adjust it.
package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/lulzzz/self-driving-pi-car/internal/config"
)

// Param is one named parameter tensor with its gradient from the most
// recent Backward call. Value and Grad alias the network's own storage,
// so optimizer updates and checkpoint restores act on the live weights.
type Param struct {
	Name  string
	Value []float64
	Grad  []float64
}

type layer struct {
	weight *mat.Dense // in x out
	bias   []float64
	act    config.Activation
	hidden bool

	gradW *mat.Dense
	gradB []float64

	in  *mat.Dense // input to the last Forward
	out *mat.Dense // activated output of the last Forward
}

// Network is a stack of fully-connected layers. Hidden layers apply
// their configured activation; the final layer is linear and emits raw
// logits for the trainer's loss.
type Network struct {
	cfg    *config.Config
	layers []*layer
}

// New builds the layer stack described by cfg.Architecture. The input
// width of the first layer is the flattened image size.
func New(cfg *config.Config) (*Network, error) {
	if len(cfg.Architecture) == 0 {
		return nil, errors.New("nn: architecture is empty")
	}
	if cfg.Activations != nil && len(cfg.Activations) != len(cfg.Architecture)-1 {
		return nil, errors.Errorf("nn: %d activations for %d hidden layers",
			len(cfg.Activations), len(cfg.Architecture)-1)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	net := &Network{cfg: cfg}
	in := cfg.InputSize()
	for i, out := range cfg.Architecture {
		l := &layer{
			weight: mat.NewDense(in, out, nil),
			bias:   make([]float64, out),
			gradW:  mat.NewDense(in, out, nil),
			gradB:  make([]float64, out),
			hidden: i < len(cfg.Architecture)-1,
		}
		if l.hidden {
			l.act = DefaultActivation
			if cfg.Activations != nil {
				l.act = cfg.Activations[i]
			}
		}
		scale := math.Sqrt(1 / float64(in))
		raw := l.weight.RawMatrix().Data
		for j := range raw {
			raw[j] = (rng.Float64()*2 - 1) * scale
		}
		net.layers = append(net.layers, l)
		in = out
	}
	return net, nil
}

// NumLayers reports the depth of the stack.
func (n *Network) NumLayers() int {
	return len(n.layers)
}

// Forward runs the batch through the stack and returns the logits, one
// row per sample. It has no side effects beyond caching the layer
// outputs Backward needs.
func (n *Network) Forward(x *mat.Dense) *mat.Dense {
	cur := x
	for _, l := range n.layers {
		y := &mat.Dense{}
		y.Mul(cur, l.weight)
		raw := y.RawMatrix()
		for r := 0; r < raw.Rows; r++ {
			row := raw.Data[r*raw.Stride : r*raw.Stride+raw.Cols]
			for c := range row {
				row[c] += l.bias[c]
			}
		}
		if l.hidden {
			activate(l.act, y)
		}
		l.in, l.out = cur, y
		cur = y
	}
	return cur
}

// Backward propagates the loss gradient with respect to the logits down
// the stack, leaving parameter gradients in place for the optimizer. It
// must follow a Forward on the same batch.
func (n *Network) Backward(dLogits *mat.Dense) {
	dz := mat.DenseCopyOf(dLogits)
	for i := len(n.layers) - 1; i >= 0; i-- {
		l := n.layers[i]
		l.gradW.Mul(l.in.T(), dz)

		raw := dz.RawMatrix()
		for c := 0; c < raw.Cols; c++ {
			sum := 0.0
			for r := 0; r < raw.Rows; r++ {
				sum += raw.Data[r*raw.Stride+c]
			}
			l.gradB[c] = sum
		}

		if i == 0 {
			break
		}
		prev := n.layers[i-1]
		dy := &mat.Dense{}
		dy.Mul(dz, l.weight.T())
		scaleByDeriv(prev.act, prev.out, dy)
		dz = dy
	}
}

// Params exposes the parameter tensors in a stable order for the
// optimizer and for checkpointing.
func (n *Network) Params() []Param {
	params := make([]Param, 0, 2*len(n.layers))
	for i, l := range n.layers {
		params = append(params,
			Param{
				Name:  layerName(i, "weight"),
				Value: l.weight.RawMatrix().Data,
				Grad:  l.gradW.RawMatrix().Data,
			},
			Param{
				Name:  layerName(i, "bias"),
				Value: l.bias,
				Grad:  l.gradB,
			},
		)
	}
	return params
}

func layerName(i int, kind string) string {
	return fmt.Sprintf("layer%d/%s", i, kind)
}
