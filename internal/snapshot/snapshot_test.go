package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmerrifield20/TrafficSentry/internal/features"
)

func TestWrite_twoLineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normalized_data.csv")
	sink := NewCSVSink(path)

	rec := features.Record{
		{Name: features.SourceIP, Value: 0.000127001},
		{Name: features.Protocol, Value: 0.6},
	}
	if err := sink.Write(rec); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "SourceIP,Protocol\n0.000127001,0.6\n"
	if string(data) != want {
		t.Errorf("got %q, want %q", data, want)
	}
}

func TestWrite_overwritesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normalized_data.csv")
	sink := NewCSVSink(path)

	first := features.Record{{Name: features.SourcePort, Value: 0.1}, {Name: features.Duration, Value: 0.01}}
	second := features.Record{{Name: features.SourcePort, Value: 0.9}, {Name: features.Duration, Value: 0.02}}

	if err := sink.Write(first); err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(second); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}

	got, err := sink.Read()
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got.Get(features.SourcePort); v != 0.9 {
		t.Errorf("expected second record (0.9), got %v", v)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the snapshot file, found %d entries", len(entries))
	}
}

func TestRead_empty(t *testing.T) {
	sink := NewCSVSink(filepath.Join(t.TempDir(), "missing.csv"))
	if _, err := sink.Read(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestWrite_missingDirectory(t *testing.T) {
	sink := NewCSVSink(filepath.Join(t.TempDir(), "nope", "snap.csv"))
	if err := sink.Write(features.Record{{Name: "x", Value: 1}}); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}
