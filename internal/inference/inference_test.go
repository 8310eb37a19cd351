package inference

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jmerrifield20/TrafficSentry/internal/features"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubPredictor struct {
	scores []float64
	err    error
	calls  int
	got    Tensor
}

func (s *stubPredictor) Predict(_ context.Context, in Tensor) ([]float64, error) {
	s.calls++
	s.got = in
	return s.scores, s.err
}

func sampleRecord() features.Record {
	return features.Record{
		{Name: features.SourceIP, Value: 0.000127001},
		{Name: features.SourcePort, Value: 0.0763},
		{Name: features.Protocol, Value: 0.6},
	}
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestClassify_shapeAndOrder(t *testing.T) {
	p := &stubPredictor{scores: []float64{0.2}}
	a := NewAdapter(p)

	if _, err := a.Classify(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if p.got.Shape != [3]int{1, 3, 1} {
		t.Errorf("expected shape (1,3,1), got %v", p.got.Shape)
	}
	want := sampleRecord().Values()
	for i, v := range p.got.Data {
		if v != want[i] {
			t.Errorf("tensor[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestClassify_threshold(t *testing.T) {
	cases := []struct {
		score   float64
		anomaly bool
		label   string
	}{
		{0.0, false, LabelNormal},
		{0.5, false, LabelNormal},
		{0.5000001, true, LabelAnomaly},
		{0.97, true, LabelAnomaly},
	}
	for _, tc := range cases {
		a := NewAdapter(&stubPredictor{scores: []float64{tc.score, 0.99}})
		v, err := a.Classify(context.Background(), sampleRecord())
		if err != nil {
			t.Fatalf("score %v: %v", tc.score, err)
		}
		if v.Anomaly != tc.anomaly || v.Label != tc.label {
			t.Errorf("score %v: got anomaly=%v label=%s", tc.score, v.Anomaly, v.Label)
		}
		if v.Score != tc.score {
			t.Errorf("expected first score %v to be used, got %v", tc.score, v.Score)
		}
	}
}

func TestClassify_predictErrorIsInferenceError(t *testing.T) {
	p := &stubPredictor{err: errors.New("boom")}
	_, err := NewAdapter(p).Classify(context.Background(), sampleRecord())

	var ie *Error
	if !errors.As(err, &ie) {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}
	if ie.Op != "predict" {
		t.Errorf("expected op predict, got %s", ie.Op)
	}
	if p.calls != 1 {
		t.Errorf("expected exactly one predict call, got %d", p.calls)
	}
}

func TestClassify_rejectsBadOutput(t *testing.T) {
	for _, scores := range [][]float64{nil, {math.NaN()}, {1.5}, {-0.1}} {
		_, err := NewAdapter(&stubPredictor{scores: scores}).Classify(context.Background(), sampleRecord())
		var ie *Error
		if !errors.As(err, &ie) {
			t.Errorf("scores %v: expected *Error, got %v", scores, err)
		}
	}
}

func TestClassify_rejectsNonFiniteInput(t *testing.T) {
	p := &stubPredictor{scores: []float64{0.1}}
	rec := features.Record{{Name: features.Duration, Value: math.Inf(1)}}
	_, err := NewAdapter(p).Classify(context.Background(), rec)

	var ie *Error
	if !errors.As(err, &ie) || ie.Op != "reshape" {
		t.Fatalf("expected reshape error, got %v", err)
	}
	if p.calls != 0 {
		t.Error("predictor should not be called for a malformed tensor")
	}
}

func TestTensor_Nested(t *testing.T) {
	tn, err := NewTensor([]float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	n := tn.Nested()
	if len(n) != 1 || len(n[0]) != 3 || len(n[0][0]) != 1 {
		t.Fatalf("unexpected nested shape: %v", n)
	}
	if n[0][2][0] != 3 {
		t.Errorf("expected last value 3, got %v", n[0][2][0])
	}
}
