package inference

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const tinyModel = `{
  "name": "tiny",
  "inputs": 2,
  "layers": [
    {"activation": "relu", "weights": [[1, 0], [0, 1]], "bias": [0, -1]},
    {"activation": "sigmoid", "weights": [[2, 3]], "bias": [-1]}
  ]
}`

func TestLoadDenseModel_forwardPass(t *testing.T) {
	m, err := LoadDenseModel(writeArtifact(t, tinyModel))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	in, _ := NewTensor([]float64{0.5, 0.25})
	out, err := m.Predict(context.Background(), in)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	// hidden = relu([0.5, 0.25-1]) = [0.5, 0]; out = sigmoid(2*0.5 + 0 - 1) = 0.5
	if len(out) != 1 || math.Abs(out[0]-0.5) > 1e-12 {
		t.Errorf("expected [0.5], got %v", out)
	}
}

func TestDenseModel_inputSizeMismatch(t *testing.T) {
	m, err := LoadDenseModel(writeArtifact(t, tinyModel))
	if err != nil {
		t.Fatal(err)
	}
	in, _ := NewTensor([]float64{1, 2, 3})
	if _, err := m.Predict(context.Background(), in); err == nil {
		t.Error("expected error for wrong input size")
	}
}

func TestLoadDenseModel_rejectsBadArtifacts(t *testing.T) {
	cases := map[string]string{
		"no layers":      `{"name":"x","inputs":2,"layers":[]}`,
		"bad width":      `{"name":"x","inputs":2,"layers":[{"activation":"relu","weights":[[1,2,3]],"bias":[0]}]}`,
		"bias mismatch":  `{"name":"x","inputs":1,"layers":[{"activation":"relu","weights":[[1]],"bias":[0,1]}]}`,
		"bad activation": `{"name":"x","inputs":1,"layers":[{"activation":"swish","weights":[[1]],"bias":[0]}]}`,
		"not json":       `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadDenseModel(writeArtifact(t, body)); err == nil {
				t.Error("expected load error")
			}
		})
	}
}

func TestLoad_missingArtifact(t *testing.T) {
	_, err := Load(ModelConfig{Path: filepath.Join(t.TempDir(), "missing.json")})
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist in chain, got %v", err)
	}
}

func TestLoad_nothingConfigured(t *testing.T) {
	if _, err := Load(ModelConfig{}); !errors.Is(err, ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got %v", err)
	}
}

func TestLoad_servingURLWins(t *testing.T) {
	p, err := Load(ModelConfig{Path: "ignored.json", ServingURL: "http://models:8501/", Name: "syn"})
	if err != nil {
		t.Fatal(err)
	}
	sc, ok := p.(*ServingClient)
	if !ok {
		t.Fatalf("expected *ServingClient, got %T", p)
	}
	if got := sc.StatusURL(); got != "http://models:8501/v1/models/syn" {
		t.Errorf("unexpected status URL %s", got)
	}
}

func TestBundledArtifactLoads(t *testing.T) {
	m, err := LoadDenseModel(filepath.Join("..", "..", "models", "traffic_dense.json"))
	if err != nil {
		t.Fatalf("bundled artifact: %v", err)
	}
	if m.Inputs != 9 {
		t.Errorf("expected 9 inputs, got %d", m.Inputs)
	}
}
