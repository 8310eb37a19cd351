package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type recordingSender struct {
	calls int
	to    string
	subj  string
	body  string
	err   error
}

func (r *recordingSender) Send(_ context.Context, to, subject, body string) error {
	r.calls++
	r.to, r.subj, r.body = to, subject, body
	return r.err
}

func TestSend_missingFieldsSkipsTransport(t *testing.T) {
	cases := []struct{ subject, recipient, body string }{
		{"", "ops@example.com", "<p>x</p>"},
		{"s", "", "<p>x</p>"},
		{"s", "ops@example.com", ""},
	}
	for _, tc := range cases {
		s := &recordingSender{}
		n := New(s, zap.NewNop())

		notice := n.Send(context.Background(), tc.subject, tc.recipient, tc.body)
		if s.calls != 0 {
			t.Errorf("%+v: transport called %d times", tc, s.calls)
		}
		if notice.Level != LevelWarning || notice.Message != MsgFieldsRequired {
			t.Errorf("%+v: unexpected notice %+v", tc, notice)
		}
	}
}

func TestSend_transportFailureIsWarning(t *testing.T) {
	s := &recordingSender{err: errors.New("connection refused")}
	notice := New(s, zap.NewNop()).Send(context.Background(), "s", "ops@example.com", "<p>x</p>")

	if s.calls != 1 {
		t.Fatalf("expected one attempt, got %d", s.calls)
	}
	if notice.Level != LevelWarning {
		t.Errorf("expected warning, got %s", notice.Level)
	}
	if !strings.Contains(notice.Message, "connection refused") {
		t.Errorf("expected transport error in message, got %q", notice.Message)
	}
}

func TestSend_success(t *testing.T) {
	s := &recordingSender{}
	notice := New(s, zap.NewNop()).Send(context.Background(), Subject("web-1"), "ops@example.com", "<p>x</p>")

	if notice.Level != LevelSuccess || notice.Message != MsgSent {
		t.Errorf("unexpected notice %+v", notice)
	}
	if s.to != "ops@example.com" || s.subj != "Traffic verdict for web-1" {
		t.Errorf("unexpected delivery to=%s subject=%s", s.to, s.subj)
	}
}

func TestVerdictBody(t *testing.T) {
	body, err := VerdictBody("Normal", 0.125, "abc")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"classified as: Normal", "confidence is 0.125000", "evaluation abc"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestVerdictBody_escapesLabel(t *testing.T) {
	body, err := VerdictBody("<script>", 0.9, "")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(body, "<script>") {
		t.Errorf("label was not escaped:\n%s", body)
	}
	if strings.Contains(body, "evaluation") {
		t.Errorf("empty id should be omitted:\n%s", body)
	}
}
