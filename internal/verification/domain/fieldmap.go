package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FieldMap is an insertion-ordered map of extracted document fields.
// Values are usually strings; collaborator output may carry any JSON value.
type FieldMap struct {
	keys   []string
	values map[string]any
}

// NewFieldMap returns an empty FieldMap
func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string]any)}
}

// Set stores value under key, keeping the original position of an existing key
func (m *FieldMap) Set(key string, value any) *FieldMap {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Get returns the value for key
func (m *FieldMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// String returns the value for key when it is a string
func (m *FieldMap) String(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Has reports whether key is present
func (m *FieldMap) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key
func (m *FieldMap) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order
func (m *FieldMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of fields
func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns a shallow copy
func (m *FieldMap) Clone() *FieldMap {
	out := NewFieldMap()
	for _, k := range m.Keys() {
		out.Set(k, m.values[k])
	}
	return out
}

// MarshalJSON encodes the map as a JSON object in insertion order
func (m *FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving its key order
func (m *FieldMap) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = make(map[string]any)

	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("field map: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("field map: expected key, got %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("field map: value for %s: %w", key, err)
		}
		m.Set(key, value)
	}

	_, err = dec.Token()
	return err
}

// ParseFieldMap decodes a JSON object into a FieldMap
func ParseFieldMap(data []byte) (*FieldMap, error) {
	m := NewFieldMap()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// FormatValue renders a field value for reports
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		b, _ := json.Marshal(val)
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
