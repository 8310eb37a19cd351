package inference

import (
	"errors"
	"fmt"
	"math"
)

// Tensor is a dense float tensor of shape (batch, steps, channels). The
// adapter always builds (1, F, 1): one sample, one step per feature, one
// channel.
type Tensor struct {
	Shape [3]int
	Data  []float64
}

// NewTensor lays values out as a (1, len(values), 1) tensor.
func NewTensor(values []float64) (Tensor, error) {
	if len(values) == 0 {
		return Tensor{}, errors.New("tensor needs at least one value")
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Tensor{}, fmt.Errorf("value %d is not finite: %v", i, v)
		}
	}
	data := make([]float64, len(values))
	copy(data, values)
	return Tensor{Shape: [3]int{1, len(values), 1}, Data: data}, nil
}

// Features returns the number of feature steps (the F in (1, F, 1)).
func (t Tensor) Features() int { return t.Shape[1] }

// Nested returns the tensor as nested slices, e.g. [[[v1], [v2], ...]].
func (t Tensor) Nested() [][][]float64 {
	out := make([][][]float64, t.Shape[0])
	i := 0
	for b := range out {
		out[b] = make([][]float64, t.Shape[1])
		for s := range out[b] {
			out[b][s] = make([]float64, t.Shape[2])
			for c := range out[b][s] {
				out[b][s][c] = t.Data[i]
				i++
			}
		}
	}
	return out
}
