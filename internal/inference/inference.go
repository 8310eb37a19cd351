// Package inference adapts a normalised feature record to an externally
// trained binary classifier and turns its score into a verdict.
//
// The classifier itself is opaque: anything that satisfies Predictor can be
// plugged in. Two backends ship with the package:
//   - DenseModel: a feed-forward network loaded from a JSON artifact.
//   - ServingClient: a TensorFlow-Serving compatible REST endpoint.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jmerrifield20/TrafficSentry/internal/features"
)

// AnomalyThreshold is the fixed score cutoff. Scores strictly above it are
// classified as anomalous.
const AnomalyThreshold = 0.5

// Verdict labels.
const (
	LabelAnomaly = "Anomaly"
	LabelNormal  = "Normal"
)

// Predictor is the narrow capability the adapter needs from a model.
// Predict receives a (1, F, 1) tensor and returns one or more scores; only
// the first is used.
type Predictor interface {
	Predict(ctx context.Context, in Tensor) ([]float64, error)
}

// Verdict is the classification of one record.
type Verdict struct {
	// Score is the model confidence in [0, 1].
	Score float64 `json:"score"`

	// Anomaly is true when Score > AnomalyThreshold.
	Anomaly bool `json:"anomaly"`

	// Label is "Anomaly" or "Normal".
	Label string `json:"label"`
}

// Error reports a failed inference. The caller must surface it instead of a
// verdict.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "inference " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// ErrNoScore is returned when the model produces no output.
var ErrNoScore = errors.New("model returned no score")

// Adapter reshapes records into tensors and thresholds model output.
type Adapter struct {
	predictor Predictor
}

// NewAdapter creates an Adapter backed by p.
func NewAdapter(p Predictor) *Adapter {
	return &Adapter{predictor: p}
}

// Classify runs a single forward pass over rec. Field order in rec is the
// order values are written into the tensor.
func (a *Adapter) Classify(ctx context.Context, rec features.Record) (*Verdict, error) {
	if len(rec) == 0 {
		return nil, &Error{Op: "reshape", Err: errors.New("empty record")}
	}
	in, err := NewTensor(rec.Values())
	if err != nil {
		return nil, &Error{Op: "reshape", Err: err}
	}

	scores, err := a.predictor.Predict(ctx, in)
	if err != nil {
		return nil, &Error{Op: "predict", Err: err}
	}
	if len(scores) == 0 {
		return nil, &Error{Op: "predict", Err: ErrNoScore}
	}

	score := scores[0]
	if math.IsNaN(score) || score < 0 || score > 1 {
		return nil, &Error{Op: "predict", Err: fmt.Errorf("score %v outside [0, 1]", score)}
	}
	return NewVerdict(score), nil
}

// NewVerdict thresholds score at AnomalyThreshold.
func NewVerdict(score float64) *Verdict {
	v := &Verdict{Score: score, Anomaly: score > AnomalyThreshold, Label: LabelNormal}
	if v.Anomaly {
		v.Label = LabelAnomaly
	}
	return v
}
