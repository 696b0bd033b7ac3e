package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is a JSON object that keeps the key order it was read with.
// Values are held as raw JSON so fields the tool does not know about
// survive a load/save cycle untouched.
type Object struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]json.RawMessage)}
}

// Keys returns the field names in order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.keys) }

// Has reports whether the field is present.
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Get returns the raw JSON value of a field.
func (o *Object) Get(key string) (json.RawMessage, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Set stores a raw JSON value. New keys are appended after existing ones;
// existing keys keep their position.
func (o *Object) Set(key string, raw json.RawMessage) {
	if o.values == nil {
		o.values = make(map[string]json.RawMessage)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = raw
}

// SetValue encodes v and stores it under key.
func (o *Object) SetValue(key string, v any) error {
	raw, err := encodeValue(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	o.Set(key, raw)
	return nil
}

// Delete removes a field.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// String returns a string field, or "" when the field is absent or not a string.
func (o *Object) String(key string) string {
	s, _ := o.LookupString(key)
	return s
}

// LookupString returns a string field and whether it was present as a string.
func (o *Object) LookupString(key string) (string, bool) {
	raw, ok := o.values[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Strings returns a string array field. Non-string elements are skipped.
func (o *Object) Strings(key string) []string {
	raw, ok := o.values[key]
	if !ok {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Number returns a numeric field.
func (o *Object) Number(key string) (float64, bool) {
	raw, ok := o.values[key]
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	c := &Object{
		keys:   make([]string, len(o.keys)),
		values: make(map[string]json.RawMessage, len(o.values)),
	}
	copy(c.keys, o.keys)
	for k, v := range o.values {
		c.values[k] = append(json.RawMessage(nil), v...)
	}
	return c
}

// UnmarshalJSON decodes a JSON object, preserving key order.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	t, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected {, got %v", t)
	}

	o.keys = nil
	o.values = make(map[string]json.RawMessage)

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %T", kt)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decoding %q: %w", key, err)
		}
		o.Set(key, raw)
	}

	// Closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON encodes the object compactly in key order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := o.writeTo(&buf, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeTo appends the compact encoding of o to buf. override, when non-nil,
// supplies the encoding for specific keys (used for nested typed values).
func (o *Object) writeTo(buf *bytes.Buffer, override map[string]func(*bytes.Buffer) error) error {
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, k)
		buf.WriteByte(':')
		if fn, ok := override[k]; ok {
			if err := fn(buf); err != nil {
				return fmt.Errorf("field %q: %w", k, err)
			}
			continue
		}
		if err := json.Compact(buf, o.values[k]); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeValue marshals v without HTML escaping.
func encodeValue(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func writeString(buf *bytes.Buffer, s string) {
	raw, err := encodeValue(s)
	if err != nil {
		// Strings always encode.
		buf.WriteString(`""`)
		return
	}
	buf.Write(raw)
}
