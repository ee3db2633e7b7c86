package store

import (
	"fmt"
	"strconv"
	"time"
)

// Field decoders tolerate the representations produced by every backend:
// native Firestore values, and the JSON forms (float64 numbers, RFC 3339
// strings) returned by the redis and postgres backends.

// String reads a string field, "" when missing.
func String(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Bool reads a boolean field, false when missing.
func Bool(fields map[string]any, key string) bool {
	switch v := fields[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Ints reads a list of integers. Non-numeric entries are skipped.
func Ints(fields map[string]any, key string) []int {
	var out []int
	switch v := fields[key].(type) {
	case []int:
		out = append(out, v...)
	case []int64:
		for _, n := range v {
			out = append(out, int(n))
		}
	case []any:
		for _, item := range v {
			if n, ok := toInt(item); ok {
				out = append(out, n)
			}
		}
	}
	return out
}

// Time reads a timestamp field, the zero time when missing or unparsable.
func Time(fields map[string]any, key string) time.Time {
	switch v := fields[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}

// Matches evaluates the query filters against fields in memory. Backends
// without native filtering use it; values compare by their string form.
func Matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		got := String(fields, f.Field)
		switch f.Op {
		case OpEqual:
			if got != fmt.Sprint(f.Value) {
				return false
			}
		case OpIn:
			found := false
			for _, v := range f.Values {
				if got == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}
