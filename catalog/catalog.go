// Package catalog reads and writes workflow template catalogs.
//
// A catalog is a JSON array of categories, each holding an ordered list of
// templates:
//
//	[
//	  {
//	    "moduleName": "default",
//	    "type": "image",
//	    "category": "GENERATION TYPE",
//	    "title": "Image",
//	    "templates": [
//	      { "name": "sprite_sheet", "title": "Sprite sheet", "tags": ["image", "batch"] }
//	    ]
//	  }
//	]
//
// The English master lives in index.json; every locale has its own
// index.<lang>.json with the same shape. Field order and unknown fields are
// preserved so files stay diff-friendly.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/minios-linux/tmplsync/fileutil"
)

// ErrNotArray is returned when a catalog file is valid JSON but not an array.
var ErrNotArray = errors.New("catalog is not a JSON array")

// Field names used by the tool.
const (
	FieldName        = "name"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldTags        = "tags"
	FieldSize        = "size"
	FieldVRAM        = "vram"
	FieldUsage       = "usage"

	FieldMediaType        = "mediaType"
	FieldMediaSubtype     = "mediaSubtype"
	FieldThumbnailVariant = "thumbnailVariant"
	FieldModels           = "models"
	FieldDate             = "date"

	FieldModuleName = "moduleName"
	FieldType       = "type"
	FieldCategory   = "category"
	FieldIcon       = "icon"
	FieldEssential  = "isEssential"
	FieldTemplates  = "templates"
)

// Template is a single workflow template entry.
type Template struct {
	Object
}

// NewTemplate returns an empty template with the given name.
func NewTemplate(name string) *Template {
	t := &Template{Object: *NewObject()}
	_ = t.SetValue(FieldName, name)
	return t
}

// Name returns the template's unique key.
func (t *Template) Name() string { return t.String(FieldName) }

// Title returns the display title.
func (t *Template) Title() string { return t.String(FieldTitle) }

// Description returns the description.
func (t *Template) Description() string { return t.String(FieldDescription) }

// Tags returns the tag list.
func (t *Template) Tags() []string { return t.Strings(FieldTags) }

// Clone returns a deep copy.
func (t *Template) Clone() *Template {
	return &Template{Object: *t.Object.Clone()}
}

// Category groups templates under a module/type/title.
type Category struct {
	Object
	Templates []*Template
}

// ModuleName returns the category's module identifier.
func (c *Category) ModuleName() string { return c.String(FieldModuleName) }

// Type returns the category type.
func (c *Category) Type() string { return c.String(FieldType) }

// Label returns the translatable "category" field (e.g. "MODELS").
func (c *Category) Label() string { return c.String(FieldCategory) }

// Title returns the translatable category title.
func (c *Category) Title() string { return c.String(FieldTitle) }

// TemplateNames returns the set of named templates in the category.
func (c *Category) TemplateNames() map[string]struct{} {
	names := make(map[string]struct{}, len(c.Templates))
	for _, t := range c.Templates {
		if n := t.Name(); n != "" {
			names[n] = struct{}{}
		}
	}
	return names
}

// Clone returns a deep copy including templates.
func (c *Category) Clone() *Category {
	out := &Category{Object: *c.Object.Clone()}
	out.Templates = make([]*Template, len(c.Templates))
	for i, t := range c.Templates {
		out.Templates[i] = t.Clone()
	}
	return out
}

// UnmarshalJSON decodes a category and its templates.
func (c *Category) UnmarshalJSON(data []byte) error {
	if err := c.Object.UnmarshalJSON(data); err != nil {
		return err
	}
	c.Templates = nil
	raw, ok := c.Get(FieldTemplates)
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, &c.Templates); err != nil {
		return fmt.Errorf("templates of %q: %w", c.ModuleName(), err)
	}
	return nil
}

// MarshalJSON encodes the category compactly. The templates field is always
// written, appended at the end when the source had none.
func (c *Category) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.writeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Category) writeTo(buf *bytes.Buffer) error {
	if !c.Has(FieldTemplates) {
		c.Set(FieldTemplates, json.RawMessage("[]"))
	}
	return c.Object.writeTo(buf, map[string]func(*bytes.Buffer) error{
		FieldTemplates: func(b *bytes.Buffer) error {
			b.WriteByte('[')
			for i, t := range c.Templates {
				if i > 0 {
					b.WriteByte(',')
				}
				if err := t.writeTo(b, nil); err != nil {
					return fmt.Errorf("template %q: %w", t.Name(), err)
				}
			}
			b.WriteByte(']')
			return nil
		},
	})
}

// Catalog is an ordered list of categories.
type Catalog []*Category

// TemplateCount returns the number of templates across all categories.
func (c Catalog) TemplateCount() int {
	n := 0
	for _, cat := range c {
		n += len(cat.Templates)
	}
	return n
}

// Parse decodes catalog JSON.
func Parse(data []byte) (Catalog, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		if json.Valid(trimmed) {
			return nil, ErrNotArray
		}
	}
	var c Catalog
	if err := json.Unmarshal(trimmed, &c); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	for i, cat := range c {
		if cat == nil {
			return nil, fmt.Errorf("category #%d is null", i+1)
		}
		for j, t := range cat.Templates {
			if t == nil {
				return nil, fmt.Errorf("category #%d: template #%d is null", i+1, j+1)
			}
		}
	}
	return c, nil
}

// Load reads and parses a catalog file.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadOptional reads a catalog file, returning an empty catalog and false
// when the file does not exist.
func LoadOptional(path string) (Catalog, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Catalog{}, false, nil
		}
		return nil, false, fmt.Errorf("stat %s: %w", path, err)
	}
	c, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return c, true, nil
}

// Save writes the catalog in its canonical format.
func Save(path string, c Catalog) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0644)
}
