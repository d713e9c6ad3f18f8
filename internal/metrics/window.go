package metrics

import "time"

// Window accumulates loss and accuracy across training steps between two
// verbose log lines.
type Window struct {
	samples  int
	correct  int
	elapsed  time.Duration
	steps    int
	lossSum  float64
	lastLoss float64
}

// Record adds one step's measurements to the window.
func (w *Window) Record(batchSize, correct int, stepTime time.Duration, loss float64) {
	w.samples += batchSize
	w.correct += correct
	w.elapsed += stepTime
	w.steps++
	w.lossSum += loss
	w.lastLoss = loss
}

// Snapshot returns the aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{LastLoss: w.lastLoss}
	if w.steps > 0 {
		snap.AvgLoss = w.lossSum / float64(w.steps)
	}
	if w.samples > 0 {
		snap.Accuracy = float64(w.correct) / float64(w.samples)
	}
	if w.elapsed > 0 {
		snap.ImagesPerSec = float64(w.samples) / w.elapsed.Seconds()
	}

	*w = Window{}
	return snap
}

// Snapshot represents loggable training metrics.
type Snapshot struct {
	AvgLoss      float64
	LastLoss     float64
	Accuracy     float64
	ImagesPerSec float64
}
