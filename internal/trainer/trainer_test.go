package trainer

import (
	"path/filepath"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/lulzzz/self-driving-pi-car/internal/checkpoint"
	"github.com/lulzzz/self-driving-pi-car/internal/config"
	"github.com/lulzzz/self-driving-pi-car/internal/data"
	"github.com/lulzzz/self-driving-pi-car/internal/nn"
	"github.com/lulzzz/self-driving-pi-car/internal/records"
)

func scenarioConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New(config.Config{
		Height:       4,
		Width:        5,
		Channels:     1,
		Architecture: []int{8, 3},
		Activations:  []config.Activation{config.ReLU},
		BatchSize:    32,
		Epochs:       1,
		NumSteps:     10,
		SaveStep:     5,
		LearningRate: 0.02,
		Optimizer:    config.GradientDescent,
		Seed:         42,
	})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return cfg
}

func mustRecords(t *testing.T, path string, imageSize, count int) {
	t.Helper()
	w, err := records.Create(path)
	if err != nil {
		t.Fatalf("records.Create: %v", err)
	}
	for i := 0; i < count; i++ {
		img := make([]byte, imageSize)
		for j := range img {
			img[j] = byte((i*31 + j*7) % 256)
		}
		if err := w.Append(img, i%3); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func newRun(t *testing.T, cfg *config.Config) (*data.Holder, *checkpoint.Store) {
	t.Helper()
	dir := t.TempDir()
	train := filepath.Join(dir, "bin_train.tfrecords")
	valid := filepath.Join(dir, "bin_valid.tfrecords")
	test := filepath.Join(dir, "bin_test.tfrecords")
	for _, path := range []string{train, valid, test} {
		mustRecords(t, path, cfg.InputSize(), 40)
	}
	store := checkpoint.NewStore(filepath.Join(dir, "checkpoints"))
	if err := store.Reset(); err != nil {
		t.Fatalf("store.Reset: %v", err)
	}
	return data.NewHolder(cfg, train, valid, test), store
}

func TestFitScenario(t *testing.T) {
	cfg := scenarioConfig(t)
	holder, store := newRun(t, cfg)
	net, err := nn.New(cfg)
	if err != nil {
		t.Fatalf("nn.New: %v", err)
	}

	tr := New(cfg, net, holder, store)
	if err := tr.Fit(false); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := tr.GlobalStep(); got != 10 {
		t.Fatalf("GlobalStep=%d want 10", got)
	}
	if got := store.Steps(); !reflect.DeepEqual(got, []int{5, 10}) {
		t.Fatalf("checkpoint steps %v, want [5 10]", got)
	}

	samples, err := holder.ReadAll(data.Valid)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	images, _ := data.Matrix(samples[:32])
	preds, err := tr.Predict(images)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != 32 {
		t.Fatalf("got %d predictions, want 32", len(preds))
	}
	for i, p := range preds {
		if p < 0 || p >= config.NumClasses {
			t.Fatalf("prediction %d = %d outside class range", i, p)
		}
	}
}

func TestFitTwiceFails(t *testing.T) {
	cfg := scenarioConfig(t)
	holder, store := newRun(t, cfg)
	net, err := nn.New(cfg)
	if err != nil {
		t.Fatalf("nn.New: %v", err)
	}
	tr := New(cfg, net, holder, store)
	if err := tr.Fit(false); err != nil {
		t.Fatalf("first Fit: %v", err)
	}
	if err := tr.Fit(false); err == nil {
		t.Fatal("expected second Fit to fail")
	}
}

func TestNoCheckpointWhenSaveStepExceedsTotalSteps(t *testing.T) {
	base := scenarioConfig(t)
	cfg, err := config.New(config.Config{
		Height: base.Height, Width: base.Width, Channels: base.Channels,
		Architecture: base.Architecture, Activations: base.Activations,
		BatchSize: base.BatchSize, Epochs: 1, NumSteps: 10, SaveStep: 50,
		LearningRate: base.LearningRate, Optimizer: base.Optimizer, Seed: base.Seed,
	})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	holder, store := newRun(t, cfg)
	net, err := nn.New(cfg)
	if err != nil {
		t.Fatalf("nn.New: %v", err)
	}
	tr := New(cfg, net, holder, store)
	if err := tr.Fit(false); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := store.Steps(); len(got) != 0 {
		t.Fatalf("expected no checkpoints, got %v", got)
	}
}

func TestPredictBeforeFitFails(t *testing.T) {
	cfg := scenarioConfig(t)
	holder, store := newRun(t, cfg)
	net, err := nn.New(cfg)
	if err != nil {
		t.Fatalf("nn.New: %v", err)
	}
	tr := New(cfg, net, holder, store)
	if _, err := tr.Predict(mat.NewDense(1, cfg.InputSize(), nil)); err == nil {
		t.Fatal("expected Predict before Fit to fail")
	}
}

func TestPredictDeterministic(t *testing.T) {
	cfg := scenarioConfig(t)
	holder, store := newRun(t, cfg)
	net, err := nn.New(cfg)
	if err != nil {
		t.Fatalf("nn.New: %v", err)
	}
	tr := New(cfg, net, holder, store)
	if err := tr.Fit(false); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	samples, err := holder.ReadAll(data.Valid)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	images, _ := data.Matrix(samples)
	first, err := tr.Predict(images)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	second, err := tr.Predict(images)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("Predict is not deterministic for fixed parameters")
	}
}

func TestFitReproducibleForFixedSeed(t *testing.T) {
	run := func() float64 {
		cfg := scenarioConfig(t)
		holder, store := newRun(t, cfg)
		net, err := nn.New(cfg)
		if err != nil {
			t.Fatalf("nn.New: %v", err)
		}
		tr := New(cfg, net, holder, store)
		if err := tr.Fit(false); err != nil {
			t.Fatalf("Fit: %v", err)
		}
		acc, err := tr.validationAccuracy()
		if err != nil {
			t.Fatalf("validationAccuracy: %v", err)
		}
		return acc
	}
	if acc1, acc2 := run(), run(); acc1 != acc2 {
		t.Fatalf("same seed produced different validation accuracy: %g vs %g", acc1, acc2)
	}
}

// stubModel stands in for the numeric engine so loop behavior can be
// asserted without real training.
type stubModel struct {
	forwardCalls int
	value        []float64
	grad         []float64
}

func (m *stubModel) Forward(x *mat.Dense) *mat.Dense {
	m.forwardCalls++
	rows, _ := x.Dims()
	logits := mat.NewDense(rows, config.NumClasses, nil)
	for i := 0; i < rows; i++ {
		logits.Set(i, 0, x.At(i, 0))
		logits.Set(i, 1, 0.5)
		logits.Set(i, 2, -0.5)
	}
	return logits
}

func (m *stubModel) Backward(dLogits *mat.Dense) {}

func (m *stubModel) Params() []nn.Param {
	return []nn.Param{{Name: "stub/weight", Value: m.value, Grad: m.grad}}
}

func TestFitDrivesModelOncePerStep(t *testing.T) {
	cfg := scenarioConfig(t)
	holder, store := newRun(t, cfg)
	stub := &stubModel{value: []float64{1, 2}, grad: []float64{0, 0}}

	tr := New(cfg, stub, holder, store)
	if err := tr.Fit(false); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if want := cfg.Epochs * cfg.NumSteps; stub.forwardCalls != want {
		t.Fatalf("forward called %d times, want %d", stub.forwardCalls, want)
	}

	snap, err := store.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if snap.Step != 10 {
		t.Fatalf("latest checkpoint step %d, want 10", snap.Step)
	}
	if _, ok := snap.Tensors["stub/weight"]; !ok {
		t.Fatal("checkpoint missing stub tensor")
	}
}
