// Package features holds the per-request feature record and the static
// min/max bounds table used to rescale it before inference.
package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Canonical feature names, in the order the classifier was trained on.
const (
	SourceIP        = "SourceIP"
	SourcePort      = "SourcePort"
	DestinationPort = "DestinationPort"
	Protocol        = "Protocol"
	BytesSent       = "BytesSent"
	BytesReceived   = "BytesReceived"
	PacketsSent     = "PacketsSent"
	PacketsReceived = "PacketsReceived"
	Duration        = "Duration"
)

// Order lists the feature names in tensor order.
var Order = []string{
	SourceIP,
	SourcePort,
	DestinationPort,
	Protocol,
	BytesSent,
	BytesReceived,
	PacketsSent,
	PacketsReceived,
	Duration,
}

// Field is a single named value in a Record.
type Field struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Record is an ordered set of named numeric fields. Order is significant:
// it is the order values are laid out in the model input tensor.
type Record []Field

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Values returns the field values in order.
func (r Record) Values() []float64 {
	vals := make([]float64, len(r))
	for i, f := range r {
		vals[i] = f.Value
	}
	return vals
}

// Get returns the value of the named field.
func (r Record) Get(name string) (float64, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// MarshalJSON encodes the record as a JSON object whose keys keep record order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
			return nil, fmt.Errorf("field %q: unsupported value %v", f.Name, f.Value)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(f.Value, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
