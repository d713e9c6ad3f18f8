// Command train runs one training job over a preprocessed record set and
// writes parameter checkpoints, optionally reporting a confusion matrix
// over the validation split.
package main

import (
	"flag"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lulzzz/self-driving-pi-car/internal/checkpoint"
	"github.com/lulzzz/self-driving-pi-car/internal/config"
	"github.com/lulzzz/self-driving-pi-car/internal/data"
	"github.com/lulzzz/self-driving-pi-car/internal/metrics"
	"github.com/lulzzz/self-driving-pi-car/internal/nn"
	"github.com/lulzzz/self-driving-pi-car/internal/trainer"
)

const checkpointDir = "checkpoints"

func main() {
	modeName := flag.String("mode", "bin", "data mode: pure, flip, aug, bin, gray, green")
	height := flag.Int("height", 90, "image height")
	width := flag.Int("width", 160, "image width")
	architecture := flag.String("architecture", "3", "comma-separated layer widths, ending with 3")
	activations := flag.String("activations", "", "comma-separated activations: relu, sigmoid, tanh")
	batchSize := flag.Int("batch_size", 32, "batch size")
	epochs := flag.Int("epochs", 5, "epochs for training")
	numSteps := flag.Int("num_steps", 1000, "steps per epoch")
	saveStep := flag.Int("save_step", 100, "checkpoint every N global steps")
	learningRate := flag.Float64("learning_rate", 0.02, "learning rate")
	optimizerName := flag.String("optimizer", "GradientDescent",
		"optimizer: GradientDescent, Adadelta, Adagrad, Adam, Ftrl, ProximalGradientDescent, ProximalAdagrad, RMSProp")
	verbose := flag.Bool("verbose", false, "log training progress and write the confusion matrix")
	name := flag.String("name", "Confusion_Matrix", "base name for the confusion matrix plot")
	move := flag.Bool("move", false, "move checkpoints to the parent directory after training")
	seed := flag.Int64("seed", 42, "PRNG seed")

	flag.Parse()

	mode, err := config.ParseMode(*modeName)
	if err != nil {
		log.Fatalf("invalid mode: %v", err)
	}
	arch, err := parseInts(*architecture)
	if err != nil {
		log.Fatalf("invalid architecture: %v", err)
	}
	acts, err := parseActivations(*activations)
	if err != nil {
		log.Fatalf("invalid activations: %v", err)
	}
	optimizer, err := config.ParseOptimizer(*optimizerName)
	if err != nil {
		log.Fatalf("invalid optimizer: %v", err)
	}

	cfg, err := config.New(config.Config{
		Height:       *height,
		Width:        *width,
		Channels:     mode.Channels(),
		Architecture: arch,
		Activations:  acts,
		BatchSize:    *batchSize,
		Epochs:       *epochs,
		NumSteps:     *numSteps,
		SaveStep:     *saveStep,
		LearningRate: *learningRate,
		Optimizer:    optimizer,
		Seed:         *seed,
	})
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if err := config.CheckMode(mode, cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	store := checkpoint.NewStore(checkpointDir)
	if err := store.Reset(); err != nil {
		log.Fatalf("reset checkpoints: %v", err)
	}

	trainPath, validPath, testPath := mode.RecordNames()
	holder := data.NewHolder(cfg, trainPath, validPath, testPath)

	network, err := nn.New(cfg)
	if err != nil {
		log.Fatalf("build network: %v", err)
	}
	tr := trainer.New(cfg, network, holder, store)

	log.Printf("training in the %s data", mode)
	log.Printf("params:\n%s", cfg.Status())

	if err := tr.Fit(*verbose); err != nil {
		log.Fatalf("training failed: %v", err)
	}

	if *verbose {
		if err := reportConfusion(tr, holder, *name+".png"); err != nil {
			log.Fatalf("confusion matrix: %v", err)
		}
	}

	if *move {
		dst := filepath.Join("..", checkpointDir)
		if err := store.MoveTo(dst); err != nil {
			log.Fatalf("move checkpoints: %v", err)
		}
		log.Printf("checkpoints moved to %s", dst)
	}
}

func reportConfusion(tr *trainer.Trainer, holder *data.Holder, path string) error {
	samples, err := holder.ReadAll(data.Valid)
	if err != nil {
		return err
	}
	images, labels := data.Matrix(samples)
	preds, err := tr.Predict(images)
	if err != nil {
		return err
	}
	confusion, err := metrics.FromPredictions(preds, labels)
	if err != nil {
		return err
	}
	if err := metrics.Plot(confusion, metrics.Commands, path); err != nil {
		return err
	}
	log.Printf("valid_accuracy=%.4f plot=%s", confusion.Accuracy(), path)
	return nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, field := range splitList(s) {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseActivations(s string) ([]config.Activation, error) {
	fields := splitList(s)
	if len(fields) == 0 {
		return nil, nil
	}
	out := make([]config.Activation, len(fields))
	for i, field := range fields {
		a, err := config.ParseActivation(field)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	}) {
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}
