package domain

import (
	"fmt"
	"strings"
)

// LampKey identifies a lamp configuration: the instrument sample ID combined
// with the free-text note the operator attached to the run.
//
// Keys compare structurally. Case and whitespace are significant and the
// empty key {"", ""} is a valid, distinct configuration.
type LampKey struct {
	ID   string
	Note string
}

// LampKeySeparator joins ID and Note in the textual form of a LampKey.
const LampKeySeparator = '|'

const lampKeyEscape = '\\'

// String returns the textual form "ID|Note" accepted by ParseLampKey.
// Separators and backslashes inside ID or Note are escaped with a
// backslash, so every key survives a round trip.
func (k LampKey) String() string {
	var b strings.Builder
	writeEscaped(&b, k.ID)
	b.WriteByte(LampKeySeparator)
	writeEscaped(&b, k.Note)
	return b.String()
}

func writeEscaped(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == LampKeySeparator || s[i] == lampKeyEscape {
			b.WriteByte(lampKeyEscape)
		}
		b.WriteByte(s[i])
	}
}

// Label returns the human-readable form used in reports.
func (k LampKey) Label() string {
	if k.Note == "" {
		return k.ID
	}
	return k.ID + " / " + k.Note
}

// ParseLampKey parses "ID|Note". Text without a separator is an ID with an
// empty note. A backslash takes the next character literally. Only the
// first unescaped separator splits; later ones belong to the note.
func ParseLampKey(s string) LampKey {
	var (
		key     LampKey
		b       strings.Builder
		escaped bool
		split   bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == lampKeyEscape:
			escaped = true
		case c == LampKeySeparator && !split:
			key.ID = b.String()
			b.Reset()
			split = true
		default:
			b.WriteByte(c)
		}
	}
	if escaped {
		b.WriteByte(lampKeyEscape)
	}
	if split {
		key.Note = b.String()
	} else {
		key.ID = b.String()
	}
	return key
}

// MarshalText encodes the key in its "ID|Note" form, for JSON and YAML
// values as well as map keys.
func (k LampKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *LampKey) UnmarshalText(text []byte) error {
	*k = ParseLampKey(string(text))
	return nil
}

// Measurement is one data row from one worksheet of an instrument export.
type Measurement struct {
	// Product is the worksheet (product) the row was read from. Never empty.
	Product string `json:"product" yaml:"product"`

	// SequenceNo is the instrument's ordinal for the row within its worksheet.
	SequenceNo int `json:"sequence_no" yaml:"sequence_no"`

	SampleID string `json:"sample_id" yaml:"sample_id"`
	Note     string `json:"note" yaml:"note"`
	Method   string `json:"method" yaml:"method"`

	// Unit is the sensor serial reported for the row, when the export has one.
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// Parameters maps each numeric column name to its reading. Columns that
	// were blank or non-numeric are present as Missing.
	Parameters map[string]Value `json:"parameters" yaml:"parameters"`

	// Row is the 1-based position of the row inside its worksheet table.
	Row int `json:"row" yaml:"row"`
}

// Lamp returns the configuration the measurement was taken under.
func (m Measurement) Lamp() LampKey {
	return LampKey{ID: m.SampleID, Note: m.Note}
}

// Value returns the reading for parameter, Missing if the column is absent.
func (m Measurement) Value(parameter string) Value {
	return m.Parameters[parameter]
}

// String is used in log output and test failures.
func (m Measurement) String() string {
	return fmt.Sprintf("%s#%d[%s]", m.Product, m.SequenceNo, m.Lamp())
}
