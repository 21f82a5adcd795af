package classify

import "strings"

// ParseFlexibleBool interprets the heterogeneous truthy encodings found
// in telemetry metadata. Accepted true forms: native bool, "true" in
// any casing, "1", and the numeric value 1.
func ParseFlexibleBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(x, "true") || x == "1"
	case float64:
		return x == 1
	case int:
		return x == 1
	case int64:
		return x == 1
	default:
		return false
	}
}

// flagSet reports whether the named metadata flag is present and truthy.
func flagSet(metadata map[string]any, name string) bool {
	v, ok := metadata[name]
	return ok && ParseFlexibleBool(v)
}
