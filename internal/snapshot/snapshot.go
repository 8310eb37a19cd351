// Package snapshot keeps the most recent normalised record in a two-line CSV
// file. It is not a history: every write replaces the previous content.
package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/jmerrifield20/TrafficSentry/internal/features"
)

// ErrEmpty is returned by Read when no snapshot has been written yet.
var ErrEmpty = errors.New("no snapshot written")

// Writer persists a record snapshot.
type Writer interface {
	Write(rec features.Record) error
}

// CSVSink writes a header row of field names and a data row of values.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// NewCSVSink creates a sink that writes to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Path returns the snapshot file path.
func (s *CSVSink) Path() string { return s.path }

// Write replaces the snapshot with rec. The file is written next to its
// destination and renamed into place, so readers never see a partial file.
func (s *CSVSink) Write(rec features.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	w := csv.NewWriter(tmp)
	values := make([]string, len(rec))
	for i, v := range rec.Values() {
		values[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	if err := w.Write(rec.Names()); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot header: %w", err)
	}
	if err := w.Write(values); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Read returns the record currently on disk.
func (s *CSVSink) Read() (features.Record, error) {
	return ReadFile(s.path)
}

// ReadFile parses a snapshot file.
func ReadFile(path string) (features.Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if len(rows) != 2 {
		return nil, fmt.Errorf("parse snapshot: expected 2 rows, got %d", len(rows))
	}

	rec := make(features.Record, len(rows[0]))
	for i, name := range rows[0] {
		v, err := strconv.ParseFloat(rows[1][i], 64)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot field %q: %w", name, err)
		}
		rec[i] = features.Field{Name: name, Value: v}
	}
	return rec, nil
}
