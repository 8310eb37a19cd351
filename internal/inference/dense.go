package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Layer is one fully connected layer of a DenseModel.
// Weights is indexed [output][input].
type Layer struct {
	Activation string      `json:"activation"`
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
}

// DenseModel is a feed-forward network exported from a training pipeline as
// JSON. It flattens the input tensor and runs the layers in order.
type DenseModel struct {
	Name   string  `json:"name"`
	Inputs int     `json:"inputs"`
	Layers []Layer `json:"layers"`

	acts []func(float64) float64
}

// LoadDenseModel reads and validates a model artifact from path.
func LoadDenseModel(path string) (*DenseModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var m DenseModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model artifact %s: %w", path, err)
	}
	if err := m.init(); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", path, err)
	}
	return &m, nil
}

// init checks layer dimensions chain together and resolves activations.
func (m *DenseModel) init() error {
	if m.Inputs <= 0 {
		return fmt.Errorf("inputs must be positive, got %d", m.Inputs)
	}
	if len(m.Layers) == 0 {
		return fmt.Errorf("model has no layers")
	}

	m.acts = make([]func(float64) float64, len(m.Layers))
	width := m.Inputs
	for i, l := range m.Layers {
		if len(l.Weights) == 0 {
			return fmt.Errorf("layer %d: no units", i)
		}
		if len(l.Bias) != len(l.Weights) {
			return fmt.Errorf("layer %d: %d bias terms for %d units", i, len(l.Bias), len(l.Weights))
		}
		for u, row := range l.Weights {
			if len(row) != width {
				return fmt.Errorf("layer %d unit %d: %d weights, expected %d", i, u, len(row), width)
			}
		}
		act, ok := activations[l.Activation]
		if !ok {
			return fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		m.acts[i] = act
		width = len(l.Weights)
	}
	return nil
}

// Predict implements Predictor.
func (m *DenseModel) Predict(_ context.Context, in Tensor) ([]float64, error) {
	if len(in.Data) != m.Inputs {
		return nil, fmt.Errorf("model %q expects %d inputs, tensor has %d", m.Name, m.Inputs, len(in.Data))
	}

	x := in.Data
	for i, l := range m.Layers {
		out := make([]float64, len(l.Weights))
		for u, row := range l.Weights {
			sum := l.Bias[u]
			for j, w := range row {
				sum += w * x[j]
			}
			out[u] = m.acts[i](sum)
		}
		x = out
	}
	return x, nil
}

var activations = map[string]func(float64) float64{
	"linear":  func(v float64) float64 { return v },
	"":        func(v float64) float64 { return v },
	"relu":    func(v float64) float64 { return math.Max(0, v) },
	"sigmoid": func(v float64) float64 { return 1 / (1 + math.Exp(-v)) },
	"tanh":    math.Tanh,
}
