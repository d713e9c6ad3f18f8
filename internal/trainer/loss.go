package trainer

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// softmaxLoss computes mean cross-entropy of the logits against the true
// labels, and the gradient with respect to the logits. The loss belongs
// to the trainer, not the network: the network's final layer is linear.
func softmaxLoss(logits *mat.Dense, labels []int) (float64, *mat.Dense) {
	rows, cols := logits.Dims()
	grad := mat.NewDense(rows, cols, nil)
	loss := 0.0
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, logits)
		max := floats.Max(row)
		sum := 0.0
		for j, v := range row {
			row[j] = math.Exp(v - max)
			sum += row[j]
		}
		floats.Scale(1/sum, row)

		loss += -math.Log(math.Max(row[labels[i]], 1e-12))

		row[labels[i]] -= 1
		floats.Scale(1/float64(rows), row)
		grad.SetRow(i, row)
	}
	return loss / float64(rows), grad
}

// argmax returns the predicted class per logits row.
func argmax(logits *mat.Dense) []int {
	rows, cols := logits.Dims()
	out := make([]int, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, logits)
		out[i] = floats.MaxIdx(row)
	}
	return out
}
