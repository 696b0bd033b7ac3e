package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxInlineArray is the longest array body (in characters, as laid out by
// the indenter) that gets collapsed onto one line.
const maxInlineArray = 200

// multilineArray matches an indented array with no nested arrays.
var multilineArray = regexp.MustCompile(`(?s)\[\s*\n\s*([^\[\]]*?)\s*\n\s*\]`)

// Marshal produces the canonical catalog encoding: 2-space indentation,
// original key order, no HTML escaping, and short scalar arrays (tags,
// models) collapsed onto a single line.
func Marshal(c Catalog) ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('[')
	for i, cat := range c {
		if i > 0 {
			compact.WriteByte(',')
		}
		if err := cat.writeTo(&compact); err != nil {
			return nil, fmt.Errorf("category #%d (%s): %w", i+1, cat.ModuleName(), err)
		}
	}
	compact.WriteByte(']')

	return Indent(compact.Bytes())
}

// Indent pretty-prints any JSON document using the catalog conventions.
func Indent(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, fmt.Errorf("indenting JSON: %w", err)
	}
	formatted := multilineArray.ReplaceAllFunc(out.Bytes(), collapseArray)
	return append(formatted, '\n'), nil
}

func collapseArray(match []byte) []byte {
	sub := multilineArray.FindSubmatch(match)
	if sub == nil {
		return match
	}
	body := sub[1]
	if utf8.RuneCount(body) >= maxInlineArray {
		return match
	}

	src := make([]byte, 0, len(body)+2)
	src = append(src, '[')
	src = append(src, body...)
	src = append(src, ']')

	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return match
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			raw, err := encodeValue(v)
			if err != nil {
				return match
			}
			parts = append(parts, string(raw))
		case json.Number:
			parts = append(parts, v.String())
		case bool:
			parts = append(parts, fmt.Sprint(v))
		case nil:
			parts = append(parts, "null")
		default:
			return match
		}
	}
	return []byte("[" + strings.Join(parts, ", ") + "]")
}
