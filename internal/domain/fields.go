package domain

import (
	"strconv"
	"time"
)

// Document field helpers shared by the entity converters. Store drivers hand
// back open-schema maps; these normalize the loose typing found in legacy
// documents (ints as strings, floats from JSON decoding) without dropping
// anything.

func stringField(doc map[string]any, key, def string) string {
	v, ok := doc[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case float64:
		return strconv.FormatInt(int64(s), 10)
	default:
		return def
	}
}

// int64Field normalizes the telegram_id representations seen in legacy data:
// int64, int, float64 (JSON), and decimal strings.
func int64Field(doc map[string]any, key string, def int64) int64 {
	v, ok := doc[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
			return parsed
		}
		return def
	default:
		return def
	}
}

func boolField(doc map[string]any, key string, def bool) bool {
	v, ok := doc[key]
	if !ok || v == nil {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
		return def
	default:
		return def
	}
}

// stringSliceField reads a list field, tolerating both []string and the
// []any shape JSON decoding produces.
func stringSliceField(doc map[string]any, key string) []string {
	v, ok := doc[key]
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func timeField(doc map[string]any, key string) time.Time {
	v, ok := doc[key]
	if !ok || v == nil {
		return time.Time{}
	}
	switch ts := v.(type) {
	case time.Time:
		return ts
	case string:
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			return parsed
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

// extraFields returns a copy of doc without the listed known keys.
func extraFields(doc map[string]any, known ...string) map[string]any {
	knownSet := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownSet[k] = struct{}{}
	}
	extra := make(map[string]any)
	for k, v := range doc {
		if _, ok := knownSet[k]; !ok {
			extra[k] = v
		}
	}
	return extra
}

func cloneExtra(extra map[string]any) map[string]any {
	doc := make(map[string]any, len(extra)+8)
	for k, v := range extra {
		doc[k] = v
	}
	return doc
}

func putTime(doc map[string]any, key string, t time.Time) {
	if !t.IsZero() {
		doc[key] = t.UTC().Format(time.RFC3339)
	}
}
