// Package data feeds training with batched, shuffled sample streams
// decoded from the per-split record files.
package data

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/lulzzz/self-driving-pi-car/internal/config"
	"github.com/lulzzz/self-driving-pi-car/internal/records"
)

// Split names one of the three disjoint record sources.
type Split int

const (
	Train Split = iota
	Valid
	Test
)

func (s Split) String() string {
	switch s {
	case Train:
		return "train"
	case Valid:
		return "valid"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// Batch is one minibatch of flattened images and their labels. Images
// are scaled to [0,1] and shaped [batch_size, height*width*channels].
type Batch struct {
	Images *mat.Dense
	Labels []int
}

// Holder binds the three split sources to restartable batch streams.
// Each split is loaded lazily on first access; within one pass samples
// are drawn without replacement in a seeded shuffled order, and an
// exhausted split reshuffles and wraps transparently so the step loop
// never sees an epoch boundary.
type Holder struct {
	cfg    *config.Config
	paths  [3]string
	rng    *rand.Rand
	splits [3]*splitState
}

type splitState struct {
	samples []records.Sample
	order   []int
	pos     int
}

// NewHolder binds cfg to the three record paths. No file is touched
// until its split is first read.
func NewHolder(cfg *config.Config, trainPath, validPath, testPath string) *Holder {
	return &Holder{
		cfg:   cfg,
		paths: [3]string{trainPath, validPath, testPath},
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Path returns the record file backing the split.
func (h *Holder) Path(split Split) string {
	return h.paths[split]
}

func (h *Holder) load(split Split) (*splitState, error) {
	if st := h.splits[split]; st != nil {
		return st, nil
	}
	samples, err := records.ReadAll(h.paths[split], h.cfg.InputSize())
	if err != nil {
		return nil, errors.Wrapf(err, "data: load %s split", split)
	}
	if len(samples) == 0 {
		return nil, errors.Errorf("data: %s split %s holds no samples", split, h.paths[split])
	}
	st := &splitState{samples: samples}
	st.reshuffle(h.rng)
	h.splits[split] = st
	return st, nil
}

func (st *splitState) reshuffle(rng *rand.Rand) {
	if st.order == nil {
		st.order = make([]int, len(st.samples))
		for i := range st.order {
			st.order[i] = i
		}
	}
	rng.Shuffle(len(st.order), func(i, j int) {
		st.order[i], st.order[j] = st.order[j], st.order[i]
	})
	st.pos = 0
}

// NextBatch returns exactly cfg.BatchSize samples from the split.
func (h *Holder) NextBatch(split Split) (Batch, error) {
	st, err := h.load(split)
	if err != nil {
		return Batch{}, err
	}
	picked := make([]records.Sample, 0, h.cfg.BatchSize)
	for len(picked) < h.cfg.BatchSize {
		if st.pos == len(st.order) {
			st.reshuffle(h.rng)
		}
		picked = append(picked, st.samples[st.order[st.pos]])
		st.pos++
	}
	images, labels := Matrix(picked)
	return Batch{Images: images, Labels: labels}, nil
}

// ReadAll returns every sample of the split in file order, outside the
// batching protocol. Full-split evaluation (the confusion matrix) uses
// this so no sample is skipped or repeated.
func (h *Holder) ReadAll(split Split) ([]records.Sample, error) {
	st, err := h.load(split)
	if err != nil {
		return nil, err
	}
	return st.samples, nil
}

// Matrix flattens samples into a [len(samples), imageSize] matrix scaled
// to [0,1], plus the label vector.
func Matrix(samples []records.Sample) (*mat.Dense, []int) {
	rows := len(samples)
	cols := len(samples[0].Image)
	raw := make([]float64, rows*cols)
	labels := make([]int, rows)
	for i, s := range samples {
		labels[i] = s.Label
		row := raw[i*cols : (i+1)*cols]
		for j, px := range s.Image {
			row[j] = float64(px) / 255
		}
	}
	return mat.NewDense(rows, cols, raw), labels
}
