// Package reconcile merges a master template into its locale counterpart.
//
// The master template drives structure and every technical field; the
// translation store supplies language-specific text; the existing locale
// template only contributes fields the master does not manage.
package reconcile

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/minios-linux/tmplsync/catalog"
)

// FallbackPolicy decides what a language field gets when the store has no
// translation for it.
type FallbackPolicy string

const (
	// PolicyEnglishFallback writes the master English value.
	PolicyEnglishFallback FallbackPolicy = "english"
	// PolicyPreserveTarget keeps the locale file's current value, if any.
	PolicyPreserveTarget FallbackPolicy = "preserve"
)

// ParsePolicy validates a policy name. The empty string selects the default.
func ParsePolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case "", PolicyEnglishFallback:
		return PolicyEnglishFallback, nil
	case PolicyPreserveTarget:
		return PolicyPreserveTarget, nil
	}
	return "", fmt.Errorf("unknown fallback policy %q (valid: english, preserve)", s)
}

// DefaultAutoSyncFields are copied from master verbatim and removed from
// locale templates when the master drops them.
var DefaultAutoSyncFields = []string{
	"models",
	"date",
	"size",
	"vram",
	"mediaType",
	"mediaSubtype",
	"tutorialUrl",
	"thumbnailVariant",
	"requiresCustomNodes",
	"usage",
	"searchRank",
	"io",
	"logos",
	"visibility",
}

// DefaultLanguageFields are translated per locale.
var DefaultLanguageFields = []string{catalog.FieldTitle, catalog.FieldDescription}

// Translator is the subset of the translation store the reconciler needs.
type Translator interface {
	Get(name, field, lang string) (string, bool)
	TranslateTag(tag, lang string) string
}

// Options configures a Reconciler.
type Options struct {
	// ForceSyncLanguageFields always writes the master English value for
	// language fields, ignoring the store.
	ForceSyncLanguageFields bool
	// AutoSyncFields are master-authoritative fields (nil = defaults).
	AutoSyncFields []string
	// LanguageFields are translated fields (nil = defaults).
	LanguageFields []string
	// Policy applies when the store has no translation.
	Policy FallbackPolicy
	// OnLog receives per-field detail messages.
	OnLog func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// Result is the outcome of reconciling one template.
type Result struct {
	Template *catalog.Template
	// VRAMFromSize is set when vram had to be derived from size.
	VRAMFromSize bool
	// Translated counts language fields filled from the store.
	Translated int
	// Changed lists fields whose value differs from the previous locale
	// template (all fields for a new template).
	Changed []string
}

// Reconciler produces locale templates from master templates.
type Reconciler struct {
	tr        Translator
	opts      Options
	autoSync  map[string]bool
	langField map[string]bool
}

// New returns a Reconciler backed by tr.
func New(tr Translator, opts Options) *Reconciler {
	if opts.AutoSyncFields == nil {
		opts.AutoSyncFields = DefaultAutoSyncFields
	}
	if opts.LanguageFields == nil {
		opts.LanguageFields = DefaultLanguageFields
	}
	if opts.Policy == "" {
		opts.Policy = PolicyEnglishFallback
	}
	r := &Reconciler{
		tr:        tr,
		opts:      opts,
		autoSync:  make(map[string]bool, len(opts.AutoSyncFields)),
		langField: make(map[string]bool, len(opts.LanguageFields)),
	}
	for _, f := range opts.AutoSyncFields {
		r.autoSync[f] = true
	}
	for _, f := range opts.LanguageFields {
		r.langField[f] = true
	}
	return r
}

// LanguageFields returns the translated fields in order.
func (r *Reconciler) LanguageFields() []string {
	return append([]string(nil), r.opts.LanguageFields...)
}

// Template reconciles master against target (nil for a new template) for
// lang:
//
//  1. start from a copy of master, so field presence and order match it;
//  2. enforce the size/vram invariant;
//  3. translate tags through the store;
//  4. language fields take the store translation when it differs from
//     English, otherwise the configured fallback;
//  5. fields only the locale template has survive unless they are
//     master-authoritative.
func (r *Reconciler) Template(master, target *catalog.Template, lang string) Result {
	name := master.Name()
	out := master.Clone()
	res := Result{Template: out}

	if catalog.NormalizeVRAM(out) == catalog.VRAMFromSize {
		res.VRAMFromSize = true
		r.opts.log("  %s: filled vram from size", name)
	}

	if master.Has(catalog.FieldTags) {
		tags := master.Tags()
		translated := make([]string, len(tags))
		for i, tag := range tags {
			translated[i] = r.tr.TranslateTag(tag, lang)
		}
		_ = out.SetValue(catalog.FieldTags, translated)
	}

	for _, field := range r.opts.LanguageFields {
		en, ok := master.LookupString(field)
		if !ok {
			continue
		}
		value := r.languageValue(name, field, en, target, lang)
		if value == en {
			continue
		}
		_ = out.SetValue(field, value)
		if tr, ok := r.tr.Get(name, field, lang); ok && tr == value {
			res.Translated++
			r.opts.log("  %s: applied %s translation", name, field)
		}
	}

	if target != nil {
		for _, key := range target.Keys() {
			if out.Has(key) || r.autoSync[key] || r.langField[key] || key == catalog.FieldTags {
				continue
			}
			raw, _ := target.Get(key)
			out.Set(key, raw)
		}
	}

	res.Changed = changedFields(out, target)
	for _, f := range res.Changed {
		if r.autoSync[f] && target != nil {
			r.opts.log("  %s: auto-synced %s", name, f)
		}
	}
	return res
}

func (r *Reconciler) languageValue(name, field, en string, target *catalog.Template, lang string) string {
	if r.opts.ForceSyncLanguageFields {
		return en
	}
	if tr, ok := r.tr.Get(name, field, lang); ok && tr != en {
		return tr
	}
	if r.opts.Policy == PolicyPreserveTarget && target != nil {
		if cur, ok := target.LookupString(field); ok && cur != "" {
			return cur
		}
	}
	return en
}

// changedFields lists the keys whose values differ between out and prev,
// in out's order followed by keys only prev had.
func changedFields(out, prev *catalog.Template) []string {
	if prev == nil {
		return out.Keys()
	}
	var changed []string
	for _, key := range out.Keys() {
		a, _ := out.Get(key)
		b, ok := prev.Get(key)
		if !ok || !jsonpatch.Equal(a, b) {
			changed = append(changed, key)
		}
	}
	for _, key := range prev.Keys() {
		if !out.Has(key) {
			changed = append(changed, key)
		}
	}
	return changed
}
