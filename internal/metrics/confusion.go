// Package metrics holds the evaluation artifacts of a training run: the
// confusion matrix, its rendered plot, and the rolling loss/accuracy
// window used for verbose logging.
package metrics

import (
	"github.com/pkg/errors"

	"github.com/lulzzz/self-driving-pi-car/internal/config"
)

// Commands names the steering classes in label order.
var Commands = []string{"left", "right", "up"}

// Confusion is a count matrix of predicted versus true class.
type Confusion struct {
	counts  [][]int
	classes int
	total   int
}

// NewConfusion returns an empty matrix over the given class count.
func NewConfusion(classes int) *Confusion {
	counts := make([][]int, classes)
	for i := range counts {
		counts[i] = make([]int, classes)
	}
	return &Confusion{counts: counts, classes: classes}
}

// FromPredictions tallies the predicted/true pairs of one evaluation set.
func FromPredictions(pred, truth []int) (*Confusion, error) {
	if len(pred) != len(truth) {
		return nil, errors.Errorf("metrics: %d predictions for %d labels", len(pred), len(truth))
	}
	c := NewConfusion(config.NumClasses)
	for i := range pred {
		if err := c.Add(pred[i], truth[i]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add records one predicted/true pair.
func (c *Confusion) Add(pred, truth int) error {
	if pred < 0 || pred >= c.classes || truth < 0 || truth >= c.classes {
		return errors.Errorf("metrics: pair (%d, %d) outside %d classes", pred, truth, c.classes)
	}
	c.counts[truth][pred]++
	c.total++
	return nil
}

// Count returns how many samples of true class truth were predicted as
// pred.
func (c *Confusion) Count(pred, truth int) int {
	return c.counts[truth][pred]
}

// Classes reports the matrix dimension.
func (c *Confusion) Classes() int {
	return c.classes
}

// Accuracy is the fraction of diagonal entries.
func (c *Confusion) Accuracy() float64 {
	if c.total == 0 {
		return 0
	}
	diag := 0
	for i := 0; i < c.classes; i++ {
		diag += c.counts[i][i]
	}
	return float64(diag) / float64(c.total)
}
