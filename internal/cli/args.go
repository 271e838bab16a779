package cli

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseValue reads a command-line value as JSON when it is valid JSON and
// as a plain string otherwise, so name=ada and name='"ada"' agree.
// Integral numbers become int64.
func parseValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return normalize(v)
}

func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f // Rejected later as an unsupported field value
	case []any:
		for i := range val {
			val[i] = normalize(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalize(val[k])
		}
		return val
	default:
		return v
	}
}

// parseAssignments turns key=value arguments into field values.
func parseAssignments(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("field %q assigned twice", key)
		}
		fields[key] = parseValue(raw)
	}
	return fields, nil
}

// parseSort reads "field" or "field:desc".
func parseSort(spec string) (field string, ascending bool, err error) {
	field, dir, _ := strings.Cut(spec, ":")
	switch strings.ToLower(dir) {
	case "", "asc":
		ascending = true
	case "desc":
	default:
		return "", false, fmt.Errorf("sort %q: direction must be asc or desc", spec)
	}
	if field == "" {
		return "", false, fmt.Errorf("sort %q: missing field", spec)
	}
	return field, ascending, nil
}
