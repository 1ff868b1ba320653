// Package record defines the opaque attribute-map shape that records from
// the external on-disk store arrive in. Store schemas are not declared
// anywhere the reader controls, so every record is a string-keyed map of
// dynamically typed values until an entity extractor in package entity
// gives it a shape.
package record

import (
	"bytes"
	"encoding/json"
)

// Map is one record as decoded from an object store: an opaque,
// string-keyed attribute map. Unknown keys are preserved verbatim so
// callers that need pass-through fields never have to re-read the source
// database.
type Map map[string]any

// String returns the value at key as a string, or "" if absent or not a
// string.
func (m Map) String(key string) string {
	v, _ := m[key].(string)
	return v
}

// StringPtr returns a pointer to the string at key, or nil if the key is
// absent, null, or not a string. Used for optional fields (dueDate,
// targetDate, ...) where the spec distinguishes "missing" from "empty".
func (m Map) StringPtr(key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// Bool returns the value at key as a bool, or false if absent or not a
// bool.
func (m Map) Bool(key string) bool {
	v, _ := m[key].(bool)
	return v
}

// Int returns the value at key as an int. Numbers decoded by FromJSON
// arrive as json.Number, and those from plain encoding/json decoding as
// float64; other numeric types are coerced defensively since the source
// schema is not declared.
func (m Map) Int(key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		i, _ := v.Int64()
		return int(i)
	default:
		return 0
	}
}

// IntPtr returns a pointer to the int at key, or nil if the key is absent
// or null.
func (m Map) IntPtr(key string) *int {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	i := m.Int(key)
	return &i
}

// Has reports whether key is present in the map at all (including a
// present-but-null value), which is what the classifier predicates in
// package classify require: several entities are disambiguated by the
// absence of a key, not by its emptiness.
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// StringSlice returns the value at key as a []string, tolerating both
// []string and []any containing strings (the shape JSON decoding produces).
func (m Map) StringSlice(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Map returns the value at key as a nested Map, or nil if absent or not a
// map-shaped value. Used for currentProgress on Cycle/Milestone.
func (m Map) Map(key string) Map {
	switch v := m[key].(type) {
	case Map:
		return v
	case map[string]any:
		return Map(v)
	default:
		return nil
	}
}

// Clone returns a shallow copy, safe to retain as a Raw sidecar independent
// of the source decode buffer.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FromJSON decodes a single JSON object into a Map. It is the bridge used
// by internal/diskstore (and tests) to turn a stored JSON blob back into
// the attribute-map shape the rest of the system consumes; the real
// production client's on-disk codec is out of scope and is represented
// only by the DBHandle interface in package detect.
func FromJSON(data []byte) (Map, error) {
	var m Map
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
