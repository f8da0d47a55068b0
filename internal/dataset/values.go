package dataset

import (
	"encoding/json"
	"strconv"
	"strings"
)

// AsFloat converts a decoded numeric value to float64
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// IsIntegral reports whether v is a whole number
func IsIntegral(v any) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case json.Number:
		_, err := strconv.ParseInt(n.String(), 10, 64)
		return err == nil
	case float64:
		return n == float64(int64(n))
	}
	return false
}

// IsFractional reports whether v is a number written as a floating point value
func IsFractional(v any) bool {
	switch n := v.(type) {
	case float32, float64:
		return true
	case json.Number:
		return strings.ContainsAny(n.String(), ".eE")
	}
	return false
}
