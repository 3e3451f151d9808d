package biz

import (
	"strconv"
	"strings"
	"unicode"
)

// Helpers for reading decoded JSON payloads. Numbers arrive as float64.

func object(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func str(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func boolean(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// intValue reports the integer under key, accepting numbers and numeric strings.
func intValue(m map[string]interface{}, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

func intPtr(m map[string]interface{}, key string) *int {
	n, ok := intValue(m, key)
	if !ok {
		return nil
	}
	return &n
}

// listOf returns the objects under key, or the object itself as a single
// element when the upstream sends one.
func listOf(m map[string]interface{}, key string) []map[string]interface{} {
	var out []map[string]interface{}
	switch v := m[key].(type) {
	case []interface{}:
		for _, item := range v {
			if obj, ok := object(item); ok {
				out = append(out, obj)
			}
		}
	case map[string]interface{}:
		out = append(out, v)
	}
	return out
}

// slugify lowercases s and joins its alphanumeric runs with hyphens.
func slugify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pending = false
			continue
		}
		pending = true
	}
	return b.String()
}
