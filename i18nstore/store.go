// Package i18nstore implements the translation store (scripts/i18n.json):
// a side table of known translations for template fields, tags and
// category labels, shared by every locale catalog, plus a derived ledger of
// templates that still need translation.
//
// File layout:
//
//	{
//	  "_status": {
//	    "comment": "...",
//	    "pending_templates": {
//	      "sprite_sheet": { "missing_fields": ["title"], "missing_languages": ["fr"] }
//	    },
//	    "vram_size_update_templates": { "comment": "...", "templates": [] }
//	  },
//	  "templates":  { "sprite_sheet": { "title": { "en": "Sprite sheet", "fr": "Planche de sprites" } } },
//	  "tags":       { "image": { "fr": "Image" } },
//	  "categories": { "Image": { "fr": "Image" } }
//	}
//
// A value equal to the English source is a placeholder, not a translation.
// All mutations stay in memory until Save, which writes the whole document
// at once.
package i18nstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"

	"github.com/minios-linux/tmplsync/fileutil"
)

// FileName is the default store file name.
const FileName = "i18n.json"

// SourceLang is the language of the master catalog.
const SourceLang = "en"

const (
	pendingComment = "Pending translation tasks. Only templates with missing translations appear here."
	vramComment    = "Templates that need vram and size data management in i18n.json"
)

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Pending lists what a template is still missing.
type Pending struct {
	MissingFields    []string `json:"missing_fields"`
	MissingLanguages []string `json:"missing_languages"`
}

// VRAMSizeUpdates lists templates whose vram was derived from size.
type VRAMSizeUpdates struct {
	Comment   string   `json:"comment"`
	Templates []string `json:"templates"`
}

// Status is the derived bookkeeping section of the store.
type Status struct {
	Comment                 string             `json:"comment"`
	PendingTemplates        map[string]Pending `json:"pending_templates"`
	VRAMSizeUpdateTemplates VRAMSizeUpdates    `json:"vram_size_update_templates"`
}

// document is the on-disk shape. Field order here is the key order on disk.
type document struct {
	Status     Status                                  `json:"_status"`
	Templates  map[string]map[string]map[string]string `json:"templates"`
	Tags       map[string]map[string]string            `json:"tags"`
	Categories map[string]map[string]string            `json:"categories"`
}

// Store is the in-memory translation store.
type Store struct {
	doc   document
	path  string
	langs []string
	dirty bool

	newTags      map[string]struct{}
	newTitles    map[string]struct{}
	newFields    map[string]struct{}
	usedTags     map[string]struct{}
	usedCategory map[string]struct{}
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// New returns an empty store bound to path. langs are the locale codes that
// new tag and category entries are initialised for.
func New(path string, langs []string) *Store {
	s := &Store{
		path:         path,
		langs:        append([]string(nil), langs...),
		newTags:      make(map[string]struct{}),
		newTitles:    make(map[string]struct{}),
		newFields:    make(map[string]struct{}),
		usedTags:     make(map[string]struct{}),
		usedCategory: make(map[string]struct{}),
	}
	s.ensureStructure()
	return s
}

// Load reads the store from path. A missing file yields an empty store; a
// malformed file is an error so a bad read can never be written back over
// existing translations.
func Load(path string, langs []string) (*Store, error) {
	s := New(path, langs)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	s.ensureStructure()
	return s, nil
}

func (s *Store) ensureStructure() {
	if s.doc.Status.Comment == "" {
		s.doc.Status.Comment = pendingComment
	}
	if s.doc.Status.PendingTemplates == nil {
		s.doc.Status.PendingTemplates = make(map[string]Pending)
	}
	if s.doc.Status.VRAMSizeUpdateTemplates.Comment == "" {
		s.doc.Status.VRAMSizeUpdateTemplates.Comment = vramComment
	}
	if s.doc.Status.VRAMSizeUpdateTemplates.Templates == nil {
		s.doc.Status.VRAMSizeUpdateTemplates.Templates = []string{}
	}
	if s.doc.Templates == nil {
		s.doc.Templates = make(map[string]map[string]map[string]string)
	}
	if s.doc.Tags == nil {
		s.doc.Tags = make(map[string]map[string]string)
	}
	if s.doc.Categories == nil {
		s.doc.Categories = make(map[string]map[string]string)
	}
}

// Path returns the store file path.
func (s *Store) Path() string { return s.path }

// Dirty reports whether anything changed since load or the last Save.
func (s *Store) Dirty() bool { return s.dirty }

// Marshal encodes the store: 2-space indent, sorted keys, no HTML escaping.
func (s *Store) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&s.doc); err != nil {
		return nil, fmt.Errorf("marshaling translation store: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the whole store to disk in one go.
func (s *Store) Save() error {
	if s.path == "" {
		return fmt.Errorf("translation store path not set")
	}
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}

// ---------------------------------------------------------------------------
// Template fields
// ---------------------------------------------------------------------------

func (s *Store) field(name, field string, create bool) map[string]string {
	fields, ok := s.doc.Templates[name]
	if !ok {
		if !create {
			return nil
		}
		fields = make(map[string]map[string]string)
		s.doc.Templates[name] = fields
	}
	values, ok := fields[field]
	if !ok {
		if !create {
			return nil
		}
		values = make(map[string]string)
		fields[field] = values
	}
	return values
}

// Get returns the recorded translation of a template field. Empty values and
// values equal to the English source are placeholders and count as absent.
func (s *Store) Get(name, field, lang string) (string, bool) {
	values := s.field(name, field, false)
	if values == nil {
		return "", false
	}
	v, ok := values[lang]
	if !ok || v == "" || v == values[SourceLang] {
		return "", false
	}
	return v, true
}

// English returns the English source recorded for a template field.
func (s *Store) English(name, field string) (string, bool) {
	values := s.field(name, field, false)
	if values == nil {
		return "", false
	}
	v, ok := values[SourceLang]
	return v, ok
}

// RecordEnglish stores the current English value of a template field.
// Placeholders that mirrored the previous English value follow it, so they
// never masquerade as translations. Reports whether anything changed.
func (s *Store) RecordEnglish(name, field, value string) bool {
	values := s.field(name, field, true)
	old, had := values[SourceLang]
	if had && old == value {
		return false
	}
	values[SourceLang] = value
	if had {
		for lang, v := range values {
			if lang != SourceLang && v == old {
				values[lang] = value
			}
		}
	}
	s.dirty = true
	return true
}

// RecordTranslation stores a translation for a template field. Empty values,
// English itself and values equal to the English source are ignored.
func (s *Store) RecordTranslation(name, field, lang, value string) bool {
	if lang == SourceLang || value == "" {
		return false
	}
	values := s.field(name, field, true)
	if value == values[SourceLang] || values[lang] == value {
		return false
	}
	values[lang] = value
	s.dirty = true
	return true
}

// EnsurePlaceholder records the English value for lang when the store has
// no entry for it yet, so translators see every slot that needs filling.
func (s *Store) EnsurePlaceholder(name, field, lang string) {
	values := s.field(name, field, false)
	if values == nil {
		return
	}
	en, ok := values[SourceLang]
	if !ok {
		return
	}
	if _, ok := values[lang]; ok {
		return
	}
	values[lang] = en
	s.dirty = true
}

// ---------------------------------------------------------------------------
// Tags and category labels
// ---------------------------------------------------------------------------

// TranslateTag returns the translation of tag for lang, falling back to the
// English tag. A tag seen for the first time is registered with English for
// every known locale and reported by NewTags.
func (s *Store) TranslateTag(tag, lang string) string {
	s.usedTags[tag] = struct{}{}
	return s.translate(s.doc.Tags, s.newTags, tag, lang)
}

// TagTranslation returns a real (non-placeholder) translation of tag.
func (s *Store) TagTranslation(tag, lang string) (string, bool) {
	return lookup(s.doc.Tags, tag, lang)
}

// TranslateCategoryTitle translates a category title such as "Image".
func (s *Store) TranslateCategoryTitle(title, lang string) string {
	s.usedCategory[title] = struct{}{}
	return s.translate(s.doc.Categories, s.newTitles, title, lang)
}

// TranslateCategoryField translates a category label such as "MODELS".
func (s *Store) TranslateCategoryField(value, lang string) string {
	s.usedCategory[value] = struct{}{}
	return s.translate(s.doc.Categories, s.newFields, value, lang)
}

// CategoryTranslation returns a real translation of a category title or label.
func (s *Store) CategoryTranslation(key, lang string) (string, bool) {
	return lookup(s.doc.Categories, key, lang)
}

// HasCategory reports whether key is a known English category title or label.
func (s *Store) HasCategory(key string) bool {
	_, ok := s.doc.Categories[key]
	return ok
}

// RecordCategoryTranslation stores a category title/label translation found
// in a locale catalog. Reports whether anything changed.
func (s *Store) RecordCategoryTranslation(key, lang, value string) bool {
	if lang == SourceLang || value == "" || value == key {
		return false
	}
	entry, ok := s.doc.Categories[key]
	if !ok {
		entry = s.registerEntry(key)
		s.doc.Categories[key] = entry
	}
	if entry[lang] == value {
		return false
	}
	entry[lang] = value
	s.dirty = true
	return true
}

func (s *Store) translate(table map[string]map[string]string, events map[string]struct{}, key, lang string) string {
	entry, ok := table[key]
	if !ok {
		table[key] = s.registerEntry(key)
		events[key] = struct{}{}
		s.dirty = true
		return key
	}
	if v, ok := entry[lang]; ok {
		if v == "" {
			return key
		}
		return v
	}
	if lang != SourceLang {
		entry[lang] = key
		s.dirty = true
	}
	return key
}

func (s *Store) registerEntry(key string) map[string]string {
	entry := make(map[string]string, len(s.langs))
	for _, lang := range s.langs {
		entry[lang] = key
	}
	return entry
}

func lookup(table map[string]map[string]string, key, lang string) (string, bool) {
	v, ok := table[key][lang]
	if !ok || v == "" || v == key {
		return "", false
	}
	return v, true
}

// NewTags returns tags registered during this run, sorted.
func (s *Store) NewTags() []string { return sortedSet(s.newTags) }

// NewCategoryTitles returns category titles registered during this run.
func (s *Store) NewCategoryTitles() []string { return sortedSet(s.newTitles) }

// NewCategoryFields returns category labels registered during this run.
func (s *Store) NewCategoryFields() []string { return sortedSet(s.newFields) }

// UnusedTags returns stored tags that no template used during this run.
func (s *Store) UnusedTags() []string {
	var unused []string
	for tag := range s.doc.Tags {
		if _, ok := s.usedTags[tag]; !ok {
			unused = append(unused, tag)
		}
	}
	sort.Strings(unused)
	return unused
}

// UnusedCategories returns stored category titles/labels that no category
// used during this run.
func (s *Store) UnusedCategories() []string {
	var unused []string
	for key := range s.doc.Categories {
		if _, ok := s.usedCategory[key]; !ok {
			unused = append(unused, key)
		}
	}
	sort.Strings(unused)
	return unused
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Pending returns the pending-translation ledger.
func (s *Store) Pending() map[string]Pending {
	return s.doc.Status.PendingTemplates
}

// SetPending replaces the pending-translation ledger.
func (s *Store) SetPending(p map[string]Pending) {
	if p == nil {
		p = make(map[string]Pending)
	}
	if reflect.DeepEqual(p, s.doc.Status.PendingTemplates) {
		return
	}
	s.doc.Status.PendingTemplates = p
	s.dirty = true
}

// VRAMSizeUpdates returns the templates whose vram was derived from size.
func (s *Store) VRAMSizeUpdates() []string {
	return append([]string(nil), s.doc.Status.VRAMSizeUpdateTemplates.Templates...)
}

// MarkVRAMSizeUpdates adds names to the vram/size bookkeeping list.
func (s *Store) MarkVRAMSizeUpdates(names []string) {
	set := make(map[string]struct{})
	for _, n := range s.doc.Status.VRAMSizeUpdateTemplates.Templates {
		set[n] = struct{}{}
	}
	for _, n := range names {
		set[n] = struct{}{}
	}
	merged := sortedSet(set)
	if merged == nil {
		merged = []string{}
	}
	if reflect.DeepEqual(merged, s.doc.Status.VRAMSizeUpdateTemplates.Templates) {
		return
	}
	s.doc.Status.VRAMSizeUpdateTemplates.Templates = merged
	s.dirty = true
}

// Stats returns the number of templates, tags and category labels stored.
func (s *Store) Stats() (templates, tags, categories int) {
	return len(s.doc.Templates), len(s.doc.Tags), len(s.doc.Categories)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
