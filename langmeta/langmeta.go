// Package langmeta provides locale display metadata (native names, English
// names and emoji flags) for the status and summary tables.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes language display metadata.
type Meta struct {
	Code    string
	Name    string
	English string
	Flag    string
}

// Registry holds the curated native names and flags. Codes outside the
// registry are named through the CLDR display tables.
var Registry = map[string]Meta{
	"ar":    {Name: "العربية", Flag: "🇸🇦"},
	"de":    {Name: "Deutsch", Flag: "🇩🇪"},
	"en":    {Name: "English", Flag: "🇺🇸"},
	"es":    {Name: "Español", Flag: "🇪🇸"},
	"fa":    {Name: "فارسی", Flag: "🇮🇷"},
	"fr":    {Name: "Français", Flag: "🇫🇷"},
	"he":    {Name: "עברית", Flag: "🇮🇱"},
	"hi":    {Name: "हिन्दी", Flag: "🇮🇳"},
	"id":    {Name: "Bahasa Indonesia", Flag: "🇮🇩"},
	"it":    {Name: "Italiano", Flag: "🇮🇹"},
	"ja":    {Name: "日本語", Flag: "🇯🇵"},
	"ko":    {Name: "한국어", Flag: "🇰🇷"},
	"nl":    {Name: "Nederlands", Flag: "🇳🇱"},
	"pl":    {Name: "Polski", Flag: "🇵🇱"},
	"pt":    {Name: "Português", Flag: "🇵🇹"},
	"pt-BR": {Name: "Português (Brasil)", Flag: "🇧🇷"},
	"ru":    {Name: "Русский", Flag: "🇷🇺"},
	"sv":    {Name: "Svenska", Flag: "🇸🇪"},
	"th":    {Name: "ไทย", Flag: "🇹🇭"},
	"tr":    {Name: "Türkçe", Flag: "🇹🇷"},
	"uk":    {Name: "Українська", Flag: "🇺🇦"},
	"vi":    {Name: "Tiếng Việt", Flag: "🇻🇳"},
	"zh":    {Name: "中文", Flag: "🇨🇳"},
	"zh-CN": {Name: "简体中文", Flag: "🇨🇳"},
	"zh-TW": {Name: "繁體中文", Flag: "🇹🇼"},
}

// Canonicalize normalizes a locale code to BCP 47 form (pt_br -> pt-BR).
// Codes that do not parse are returned trimmed but otherwise unchanged.
func Canonicalize(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		return lang
	}
	return tag.String()
}

// Resolve returns best-effort metadata for a locale code, supporting
// variants like pt_BR and falling back to the base language.
func Resolve(lang string) Meta {
	canonical := Canonicalize(lang)
	m, ok := Registry[lang]
	if !ok {
		m, ok = Registry[canonical]
	}
	if !ok {
		if base, _, found := strings.Cut(canonical, "-"); found {
			m, ok = Registry[base]
		}
	}

	m.Code = lang
	tag, err := language.Parse(canonical)
	if err != nil {
		if m.Name == "" {
			m.Name = lang
		}
		return m
	}
	if m.Name == "" {
		m.Name = display.Self.Name(tag)
	}
	if m.Name == "" {
		m.Name = lang
	}
	m.English = display.English.Tags().Name(tag)
	return m
}

// Label formats a locale for table output: "🇫🇷 fr Français".
func Label(lang string) string {
	m := Resolve(lang)
	parts := make([]string, 0, 3)
	if m.Flag != "" {
		parts = append(parts, m.Flag)
	}
	parts = append(parts, lang)
	if m.Name != lang {
		parts = append(parts, m.Name)
	}
	return strings.Join(parts, " ")
}
