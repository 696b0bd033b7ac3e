// Package i18n translates tmplsync's own user-facing strings.
//
// Translations are gettext .po files embedded in the binary and loaded
// through gotext. Catalog content is never passed through here.
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// Directory structure: locales/{lang}/LC_MESSAGES/tmplsync.po
//
//go:embed all:locales
var locales embed.FS

const domain = "tmplsync"

var (
	po     *gotext.Locale
	active = "en"
)

// Init loads the translations for lang. An empty lang is detected from
// LANGUAGE, LC_ALL, LC_MESSAGES and LANG, in that order.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	active = lang

	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Language returns the language passed to or detected by Init.
func Language() string { return active }

// T translates a string, returning it unchanged when no translation exists.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates a string with plural forms.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage follows GNU gettext precedence.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		val, _, _ = strings.Cut(val, ".")
		val, _, _ = strings.Cut(val, "@")
		if val == "C" || val == "POSIX" || val == "" {
			continue
		}
		return val
	}
	return "en"
}
