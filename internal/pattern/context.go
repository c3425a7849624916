package pattern

import (
	"encoding/json"
	"strconv"
)

// Context carries caller-supplied facts about the environment being
// diagnosed: framework-detection flags, the project type, a list of in-use
// ports, and similar. It is produced by an external project inspector; the
// engine only reads it.
//
// Values are restricted to what survives a JSON round trip: booleans,
// strings, numbers, and lists thereof.
type Context map[string]any

// Bool reports whether key is present with a true boolean value.
func (c Context) Bool(key string) bool {
	v, ok := c[key].(bool)
	return ok && v
}

// String returns the string value for key, or "" when absent.
func (c Context) String(key string) string {
	v, _ := c[key].(string)
	return v
}

// Ints collects the integer values stored under key, tolerating the
// representations JSON decoding produces (float64, string, or typed slices).
func (c Context) Ints(key string) []int {
	raw, ok := c[key]
	if !ok {
		return nil
	}

	var out []int
	appendVal := func(v any) {
		switch n := v.(type) {
		case int:
			out = append(out, n)
		case int64:
			out = append(out, int(n))
		case float64:
			out = append(out, int(n))
		case json.Number:
			if i, err := n.Int64(); err == nil {
				out = append(out, int(i))
			}
		case string:
			if i, err := strconv.Atoi(n); err == nil {
				out = append(out, i)
			}
		}
	}

	switch vs := raw.(type) {
	case []any:
		for _, v := range vs {
			appendVal(v)
		}
	case []int:
		out = append(out, vs...)
	case []float64:
		for _, v := range vs {
			out = append(out, int(v))
		}
	case []string:
		for _, v := range vs {
			appendVal(v)
		}
	default:
		appendVal(raw)
	}
	return out
}

// Snapshot serializes the context for storage alongside an application
// record. Returns "" for an empty context.
func (c Context) Snapshot() (string, error) {
	if len(c) == 0 {
		return "", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
