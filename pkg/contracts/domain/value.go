package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is a single parameter reading. It is either a finite number or
// Missing; there is no sentinel float for "no reading".
//
// The zero Value is Missing.
type Value struct {
	number  float64
	present bool
}

// Number returns a present Value. NaN and infinities cannot be represented
// as readings and yield Missing instead.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{number: f, present: true}
}

// Missing returns the absent Value.
func Missing() Value {
	return Value{}
}

// Float64 returns the numeric reading and whether it is present.
func (v Value) Float64() (float64, bool) {
	return v.number, v.present
}

// IsMissing reports whether the Value carries no reading.
func (v Value) IsMissing() bool {
	return !v.present
}

// OrElse returns the reading, or fallback when Missing.
func (v Value) OrElse(fallback float64) float64 {
	if !v.present {
		return fallback
	}
	return v.number
}

// String formats the reading with the shortest exact representation, or ""
// when Missing.
func (v Value) String() string {
	if !v.present {
		return ""
	}
	return strconv.FormatFloat(v.number, 'f', -1, 64)
}

// MarshalJSON encodes a reading as a JSON number and Missing as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.present {
		return []byte("null"), nil
	}
	return json.Marshal(v.number)
}

// UnmarshalJSON accepts a JSON number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Missing()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}

// MarshalYAML encodes Missing as null for gopkg.in/yaml.v2.
func (v Value) MarshalYAML() (interface{}, error) {
	if !v.present {
		return nil, nil
	}
	return v.number, nil
}
