package metrics

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfusionCountsAndAccuracy(t *testing.T) {
	pred := []int{0, 0, 1, 2, 2, 1}
	truth := []int{0, 1, 1, 2, 0, 1}
	c, err := FromPredictions(pred, truth)
	if err != nil {
		t.Fatalf("FromPredictions: %v", err)
	}
	if got := c.Count(0, 1); got != 1 {
		t.Fatalf("Count(pred=0, truth=1)=%d want 1", got)
	}
	if got := c.Count(1, 1); got != 2 {
		t.Fatalf("Count(pred=1, truth=1)=%d want 2", got)
	}
	// 4 of 6 on the diagonal
	if acc := c.Accuracy(); math.Abs(acc-4.0/6.0) > 1e-12 {
		t.Fatalf("Accuracy=%g want %g", acc, 4.0/6.0)
	}
}

func TestFromPredictionsLengthMismatch(t *testing.T) {
	if _, err := FromPredictions([]int{0, 1}, []int{0}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestConfusionRejectsOutOfRange(t *testing.T) {
	c := NewConfusion(3)
	if err := c.Add(3, 0); err == nil {
		t.Fatal("expected error for out-of-range prediction")
	}
	if err := c.Add(0, -1); err == nil {
		t.Fatal("expected error for out-of-range label")
	}
}

func TestPlotWritesImage(t *testing.T) {
	c := NewConfusion(3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for n := 0; n <= i+j; n++ {
				if err := c.Add(i, j); err != nil {
					t.Fatalf("Add: %v", err)
				}
			}
		}
	}
	path := filepath.Join(t.TempDir(), "Confusion_Matrix.png")
	if err := Plot(c, Commands, path); err != nil {
		t.Fatalf("Plot: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("plot file is empty")
	}
}

func TestPlotRejectsWrongClassCount(t *testing.T) {
	c := NewConfusion(3)
	if err := Plot(c, []string{"left", "right"}, filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Fatal("expected class count error")
	}
}

func TestWindowSnapshotAggregatesAndResets(t *testing.T) {
	var w Window
	w.Record(32, 16, 10*time.Millisecond, 1.2)
	w.Record(32, 32, 10*time.Millisecond, 0.8)

	snap := w.Snapshot()
	if math.Abs(snap.AvgLoss-1.0) > 1e-12 {
		t.Fatalf("AvgLoss=%g want 1.0", snap.AvgLoss)
	}
	if math.Abs(snap.Accuracy-0.75) > 1e-12 {
		t.Fatalf("Accuracy=%g want 0.75", snap.Accuracy)
	}
	if snap.LastLoss != 0.8 {
		t.Fatalf("LastLoss=%g want 0.8", snap.LastLoss)
	}
	if snap.ImagesPerSec <= 0 {
		t.Fatalf("ImagesPerSec=%g", snap.ImagesPerSec)
	}

	empty := w.Snapshot()
	if empty.AvgLoss != 0 || empty.Accuracy != 0 {
		t.Fatal("window was not reset")
	}
}
