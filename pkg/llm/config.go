package llm

import "time"

// ConfigString reads a non-empty string from a factory config map.
func ConfigString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// ConfigDuration reads a positive duration from a factory config map.
func ConfigDuration(m map[string]any, key string) time.Duration {
	switch v := m[key].(type) {
	case time.Duration:
		if v > 0 {
			return v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// ConfigInt reads an int from a factory config map. ok is false when absent.
func ConfigInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
