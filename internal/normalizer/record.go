// Package normalizer converts loosely shaped backend rows into canonical
// domain records. Field lookups try the camelCase name first, then its
// snake_case form, then any legacy aliases, and finally fall back to a zero
// value. Nothing in this package returns an error.
package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Record is a raw backend row.
type Record map[string]interface{}

// Records converts decoded rows into Records.
func Records(rows []map[string]interface{}) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = Record(row)
	}
	return out
}

// Lookup returns the first present, non-empty value among camel, its
// snake_case form and aliases. Aliases may use dot paths into nested objects.
func (r Record) Lookup(camel string, aliases ...string) (interface{}, bool) {
	for _, key := range candidates(camel, aliases) {
		v, ok := r.path(key)
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// String returns the field as trimmed text.
func (r Record) String(camel string, aliases ...string) string {
	v, ok := r.Lookup(camel, aliases...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Float returns the field as a finite number, 0 when absent or unparsable.
func (r Record) Float(camel string, aliases ...string) float64 {
	v, ok := r.Lookup(camel, aliases...)
	if !ok {
		return 0
	}
	return ToFloat(v)
}

// Int returns the field truncated to an integer.
func (r Record) Int(camel string, aliases ...string) int {
	return int(r.Float(camel, aliases...))
}

// Bool returns the field as a boolean. Strings "true", "yes", "1" and "t" are true.
func (r Record) Bool(camel string, aliases ...string) bool {
	v, ok := r.Lookup(camel, aliases...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1", "t", "y":
			return true
		}
		return false
	default:
		return ToFloat(v) != 0
	}
}

// Date returns the field as a YYYY-MM-DD string or "" when it is not a date.
func (r Record) Date(camel string, aliases ...string) string {
	return NormalizeDate(r.String(camel, aliases...))
}

// ToFloat converts JSON scalars to a finite float.
func ToFloat(v interface{}) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if t {
			f = 1
		}
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// NormalizeDate reduces a date or timestamp to YYYY-MM-DD. Timestamps keep
// the calendar date they were written with; no timezone shift is applied.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) >= 10 {
		if d, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return d.Format("2006-01-02")
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// ParseDate parses a normalized date. ok is false for empty or malformed input.
func ParseDate(raw string) (time.Time, bool) {
	norm := NormalizeDate(raw)
	if norm == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", norm)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (r Record) path(key string) (interface{}, bool) {
	if !strings.Contains(key, ".") {
		v, ok := r[key]
		return v, ok
	}
	parts := strings.Split(key, ".")
	var cur interface{} = map[string]interface{}(r)
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func candidates(camel string, aliases []string) []string {
	keys := make([]string, 0, len(aliases)+2)
	keys = append(keys, camel)
	if snake := toSnake(camel); snake != camel {
		keys = append(keys, snake)
	}
	return append(keys, aliases...)
}

func toSnake(camel string) string {
	var b strings.Builder
	for i, r := range camel {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
