package scoring

// ResolveMetric walks a dotted source path ("valuation.pe_ttm") through
// nested map data and returns the numeric leaf, or nil when any path segment
// is missing, a non-map is hit before the final segment, or the leaf is not
// numeric. Missing data is normal here, never an error.
func ResolveMetric(data map[string]interface{}, source string) *float64 {
	if data == nil || source == "" {
		return nil
	}

	var current interface{} = data
	for _, part := range splitPath(source) {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok {
			return nil
		}
	}
	return asFloat(current)
}

func splitPath(source string) []string {
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i < len(source); i++ {
		if source[i] == '.' {
			parts = append(parts, source[start:i])
			start = i + 1
		}
	}
	return append(parts, source[start:])
}

// asFloat coerces the numeric types produced by JSON and YAML decoding.
// Booleans are deliberately excluded: a flag is not a metric value.
func asFloat(v interface{}) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case uint64:
		f := float64(n)
		return &f
	}
	return nil
}
