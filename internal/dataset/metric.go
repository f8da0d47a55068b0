package dataset

import (
	"encoding/json"
	"math"
)

// Metric is an optional ratio in [0,1]. The zero value is undefined.
type Metric struct {
	value   float64
	defined bool
}

// Defined returns a metric holding v clamped into [0,1]. NaN and infinities
// yield an undefined metric.
func Defined(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{}
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return Metric{value: v, defined: true}
}

// Undefined returns a metric without a value
func Undefined() Metric {
	return Metric{}
}

// Ratio returns num/den, or undefined when den is zero
func Ratio(num, den int) Metric {
	if den <= 0 {
		return Metric{}
	}
	return Defined(float64(num) / float64(den))
}

// Get returns the value and whether it is defined
func (m Metric) Get() (float64, bool) {
	return m.value, m.defined
}

// IsDefined reports whether the metric carries a value
func (m Metric) IsDefined() bool {
	return m.defined
}

// Above reports whether the metric is defined and strictly greater than t
func (m Metric) Above(t float64) bool {
	return m.defined && m.value > t
}

// IsZero makes undefined metrics disappear under the omitzero tag
func (m Metric) IsZero() bool {
	return !m.defined
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*m = Metric{}
		return nil
	}
	*m = Defined(*v)
	return nil
}
