// Package trainer drives the epoch/step training loop: it feeds batches
// into the network, owns the loss, applies the optimizer, and persists
// checkpoints at the configured cadence.
package trainer

import (
	"log"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/lulzzz/self-driving-pi-car/internal/checkpoint"
	"github.com/lulzzz/self-driving-pi-car/internal/config"
	"github.com/lulzzz/self-driving-pi-car/internal/data"
	"github.com/lulzzz/self-driving-pi-car/internal/metrics"
	"github.com/lulzzz/self-driving-pi-car/internal/nn"
)

const defaultLogEvery = 50

// Model is the numeric capability the trainer drives. The production
// implementation is *nn.Network; tests inject fakes.
type Model interface {
	// Forward returns logits, one row per batch sample.
	Forward(x *mat.Dense) *mat.Dense
	// Backward propagates the loss gradient wrt the logits, leaving
	// parameter gradients in place.
	Backward(dLogits *mat.Dense)
	// Params exposes the parameter tensors in a stable order.
	Params() []nn.Param
}

type state int

const (
	stateIdle state = iota
	stateFitting
	stateFitted
)

// Trainer runs one training run. Instances are single use: a second Fit
// on the same Trainer is an error, because parameter and checkpoint
// state would silently build on the previous run.
type Trainer struct {
	cfg   *config.Config
	model Model
	data  *data.Holder
	opt   nn.Optimizer
	store *checkpoint.Store

	state      state
	globalStep int
	logEvery   int
}

// New wires a trainer from its collaborators. The optimizer is built
// here, once, from the config's resolved algorithm.
func New(cfg *config.Config, model Model, holder *data.Holder, store *checkpoint.Store) *Trainer {
	return &Trainer{
		cfg:      cfg,
		model:    model,
		data:     holder,
		opt:      nn.NewOptimizer(cfg.Optimizer, cfg.LearningRate),
		store:    store,
		logEvery: defaultLogEvery,
	}
}

// GlobalStep reports the number of completed training steps across all
// epochs of this run.
func (t *Trainer) GlobalStep() int {
	return t.globalStep
}

// Fit runs cfg.Epochs x cfg.NumSteps training steps sequentially, one
// blocking step at a time. Parameters are checkpointed at every global
// step that is a multiple of cfg.SaveStep. With verbose set, train
// loss/accuracy is logged periodically and validation accuracy at every
// epoch boundary.
func (t *Trainer) Fit(verbose bool) error {
	if t.state != stateIdle {
		return errors.New("trainer: Fit called on a used trainer; build a new one for a fresh run")
	}
	t.state = stateFitting

	var window metrics.Window
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		for step := 1; step <= t.cfg.NumSteps; step++ {
			start := time.Now()
			batch, err := t.data.NextBatch(data.Train)
			if err != nil {
				return errors.Wrapf(err, "trainer: step %d", t.globalStep+1)
			}

			logits := t.model.Forward(batch.Images)
			loss, dLogits := softmaxLoss(logits, batch.Labels)
			t.model.Backward(dLogits)
			t.opt.Apply(t.model.Params())
			t.globalStep++

			if t.globalStep%t.cfg.SaveStep == 0 {
				if err := t.store.Save(t.globalStep, snapshotTensors(t.model.Params())); err != nil {
					return errors.Wrapf(err, "trainer: checkpoint at step %d", t.globalStep)
				}
			}

			if verbose {
				window.Record(t.cfg.BatchSize, countCorrect(logits, batch.Labels), time.Since(start), loss)
				if t.globalStep%t.logEvery == 0 {
					snap := window.Snapshot()
					log.Printf("step=%d loss=%.4f accuracy=%.4f images_per_sec=%.1f",
						t.globalStep, snap.AvgLoss, snap.Accuracy, snap.ImagesPerSec)
				}
			}
		}

		if verbose {
			acc, err := t.validationAccuracy()
			if err != nil {
				return errors.Wrapf(err, "trainer: validation after epoch %d", epoch)
			}
			log.Printf("epoch=%d/%d step=%d valid_accuracy=%.4f",
				epoch, t.cfg.Epochs, t.globalStep, acc)
		}
	}

	t.state = stateFitted
	return nil
}

// Predict returns the argmax class per sample. It runs a plain forward
// pass with no gradient or optimizer side effects, so fixed parameters
// and fixed input always produce the same classes. Predict is only valid
// once Fit has started.
func (t *Trainer) Predict(images *mat.Dense) ([]int, error) {
	if t.state == stateIdle {
		return nil, errors.New("trainer: Predict before Fit")
	}
	return argmax(t.model.Forward(images)), nil
}

func (t *Trainer) validationAccuracy() (float64, error) {
	samples, err := t.data.ReadAll(data.Valid)
	if err != nil {
		return 0, err
	}
	images, labels := data.Matrix(samples)
	preds, err := t.Predict(images)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i, p := range preds {
		if p == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

func countCorrect(logits *mat.Dense, labels []int) int {
	correct := 0
	for i, p := range argmax(logits) {
		if p == labels[i] {
			correct++
		}
	}
	return correct
}

func snapshotTensors(params []nn.Param) map[string][]float64 {
	tensors := make(map[string][]float64, len(params))
	for _, p := range params {
		tensors[p.Name] = append([]float64(nil), p.Value...)
	}
	return tensors
}
