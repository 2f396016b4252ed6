package jsonutil

import (
	"fmt"
)

// StringValue converts a decoded JSON value to a string, handling clients
// that send numbers or booleans where a string is expected (a port of 5432
// vs "5432"). Returns empty string for nil.
func StringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
