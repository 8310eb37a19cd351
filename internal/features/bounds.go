package features

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidBound is returned when a bound is degenerate (max <= min)
	// or not finite. Such a bound would divide by zero during scaling.
	ErrInvalidBound = errors.New("invalid feature bound")

	// ErrUnknownField is returned when a record carries a field that has no
	// entry in the bounds table.
	ErrUnknownField = errors.New("feature has no bound")
)

// Bound is the (min, max) range used to rescale one feature.
type Bound struct {
	Min float64 `json:"min" mapstructure:"min"`
	Max float64 `json:"max" mapstructure:"max"`
}

// Scale maps v linearly so that Min → 0 and Max → 1. Values outside the
// range are not clamped.
func (b Bound) Scale(v float64) float64 {
	return (v - b.Min) / (b.Max - b.Min)
}

func (b Bound) validate() error {
	if math.IsNaN(b.Min) || math.IsInf(b.Min, 0) || math.IsNaN(b.Max) || math.IsInf(b.Max, 0) {
		return fmt.Errorf("%w: limits must be finite (min=%v max=%v)", ErrInvalidBound, b.Min, b.Max)
	}
	if b.Max <= b.Min {
		return fmt.Errorf("%w: max must exceed min (min=%v max=%v)", ErrInvalidBound, b.Min, b.Max)
	}
	return nil
}

// NamedBound pairs a feature name with its bound.
type NamedBound struct {
	Name string `json:"name"`
	Bound
}

// Bounds is the read-only bounds table. Build it with NewBounds; it is safe
// for concurrent use because nothing mutates it after construction.
type Bounds struct {
	entries []NamedBound
	byName  map[string]Bound
}

// NewBounds validates and builds a bounds table. Every bound must satisfy
// max > min with finite limits, and names must be unique and non-empty.
func NewBounds(entries ...NamedBound) (*Bounds, error) {
	b := &Bounds{
		entries: make([]NamedBound, 0, len(entries)),
		byName:  make(map[string]Bound, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: empty feature name", ErrInvalidBound)
		}
		if _, dup := b.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate feature %q", ErrInvalidBound, e.Name)
		}
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("feature %q: %w", e.Name, err)
		}
		b.entries = append(b.entries, e)
		b.byName[e.Name] = e.Bound
	}
	return b, nil
}

// DefaultBounds returns the bounds table the bundled classifier was trained
// against.
func DefaultBounds() *Bounds {
	b, err := NewBounds(DefaultEntries()...)
	if err != nil {
		panic(err)
	}
	return b
}

// DefaultEntries returns a fresh copy of the default bounds, in tensor order.
func DefaultEntries() []NamedBound {
	return []NamedBound{
		{Name: SourceIP, Bound: Bound{Min: 0, Max: 1_000_000_000}},
		{Name: SourcePort, Bound: Bound{Min: 0, Max: 65535}},
		{Name: DestinationPort, Bound: Bound{Min: 0, Max: 65535}},
		{Name: Protocol, Bound: Bound{Min: 0, Max: 10}},
		{Name: BytesSent, Bound: Bound{Min: 0, Max: 10000}},
		{Name: BytesReceived, Bound: Bound{Min: 0, Max: 10000}},
		{Name: PacketsSent, Bound: Bound{Min: 0, Max: 100}},
		{Name: PacketsReceived, Bound: Bound{Min: 0, Max: 100}},
		{Name: Duration, Bound: Bound{Min: 0, Max: 100}},
	}
}

// Lookup returns the bound for name.
func (b *Bounds) Lookup(name string) (Bound, bool) {
	bound, ok := b.byName[name]
	return bound, ok
}

// Entries returns a copy of the table in declaration order.
func (b *Bounds) Entries() []NamedBound {
	out := make([]NamedBound, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of features in the table.
func (b *Bounds) Len() int { return len(b.entries) }

// Normalize rescales every field of rec with its bound. The result has the
// same names in the same order; rec is not modified.
func (b *Bounds) Normalize(rec Record) (Record, error) {
	out := make(Record, len(rec))
	for i, f := range rec {
		bound, ok := b.byName[f.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, f.Name)
		}
		out[i] = Field{Name: f.Name, Value: bound.Scale(f.Value)}
	}
	return out, nil
}
