// Package syncer runs one synchronization pass: it fixes the master catalog,
// collects hand-entered translations from the locale catalogs, rebuilds
// every locale catalog from the master and the translation store, and
// refreshes the store's bookkeeping.
//
// A run reads everything up front, works in memory and writes each file
// once at the end. Re-running with unchanged inputs writes nothing.
package syncer

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"github.com/minios-linux/tmplsync/catalog"
	"github.com/minios-linux/tmplsync/fileutil"
	"github.com/minios-linux/tmplsync/i18nstore"
	"github.com/minios-linux/tmplsync/reconcile"
)

// ErrLocked is returned when another run holds the templates directory lock.
var ErrLocked = errors.New("another sync is already running for this templates directory")

// LockFileName is the advisory lock file created in the templates directory.
const LockFileName = ".tmplsync.lock"

// MasterFileName is the conventional name of the English master catalog.
const MasterFileName = "index.json"

// LocaleFile returns the catalog path for lang inside dir.
func LocaleFile(dir, lang string) string {
	return filepath.Join(dir, "index."+lang+".json")
}

// Config describes one run.
type Config struct {
	// TemplatesDir holds the master and locale catalogs.
	TemplatesDir string
	// MasterFile defaults to TemplatesDir/index.json.
	MasterFile string
	// StoreFile defaults to TemplatesDir/../scripts/i18n.json.
	StoreFile string
	// UsageFile is the optional usage CSV. Empty disables usage data.
	UsageFile string
	// Languages are the locales synchronized in this run.
	Languages []string
	// StoreLanguages are the locales tracked by the store (pending ledger,
	// placeholders, new entries). Defaults to Languages.
	StoreLanguages []string
	// MatchThreshold is the category overlap threshold (0 = default).
	MatchThreshold float64
	// Reconcile configures the per-template field rules.
	Reconcile reconcile.Options
	// DryRun computes everything and writes nothing.
	DryRun bool
	// SkipMasterFix leaves the master catalog untouched on disk and in memory.
	SkipMasterFix bool
	// OnLog receives progress messages.
	OnLog func(format string, args ...any)
}

func (c *Config) setDefaults() {
	if c.MasterFile == "" {
		c.MasterFile = filepath.Join(c.TemplatesDir, MasterFileName)
	}
	if c.StoreFile == "" {
		c.StoreFile = filepath.Join(c.TemplatesDir, "..", "scripts", i18nstore.FileName)
	}
	if c.StoreLanguages == nil {
		c.StoreLanguages = c.Languages
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = catalog.DefaultMatchThreshold
	}
}

func (c *Config) log(format string, args ...any) {
	if c.OnLog != nil {
		c.OnLog(format, args...)
	}
}

// LocaleReport summarizes what happened to one locale catalog.
type LocaleReport struct {
	Lang string
	File string
	// Created is set when the locale file did not exist before the run.
	Created bool
	// Changed is set when the new content differs from the file on disk.
	// In a dry run the file is left as is.
	Changed bool

	Added     []string
	Updated   []string
	Unchanged int
	// Removed lists templates dropped because the master no longer has them.
	Removed []string

	AddedCategories   []string
	RemovedCategories []string

	// FieldsUpdated counts changed fields across updated templates.
	FieldsUpdated int
	// Translated counts language fields filled from the store.
	Translated int
}

// SkippedFile is a locale catalog that could not be read and was left alone.
type SkippedFile struct {
	Lang string
	File string
	Err  error
}

// Report is the structured outcome of a run.
type Report struct {
	DryRun bool

	// MasterFixed lists master templates whose vram was corrected.
	MasterFixed []string
	// UsageUpdated lists master templates whose usage count changed.
	UsageUpdated []string
	// MasterChanged is set when the master catalog content changed.
	MasterChanged bool

	// Collected counts template translations copied from locale catalogs
	// into the store; CollectedCategories counts category titles and labels.
	Collected           int
	CollectedCategories int

	Locales []*LocaleReport
	Skipped []SkippedFile

	NewTags           []string
	NewCategoryTitles []string
	NewCategoryFields []string
	UnusedTags        []string
	UnusedCategories  []string

	Pending         map[string]i18nstore.Pending
	VRAMSizeUpdates []string

	// StoreChanged is set when the translation store content changed.
	StoreChanged bool
	StoreFile    string
}

// Totals sums template counts across locales.
func (r *Report) Totals() (added, updated, removed int) {
	for _, l := range r.Locales {
		added += len(l.Added)
		updated += len(l.Updated)
		removed += len(l.Removed)
	}
	return added, updated, removed
}

// PendingNames returns the pending template names, sorted.
func (r *Report) PendingNames() []string {
	names := make([]string, 0, len(r.Pending))
	for n := range r.Pending {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// run carries the state of one synchronization.
type run struct {
	cfg       Config
	store     *i18nstore.Store
	master    catalog.Catalog
	masterIdx map[string]catalog.Location
	rec       *reconcile.Reconciler
	report    *Report
	vram      map[string]struct{}
}

type locale struct {
	lang   string
	path   string
	cat    catalog.Catalog
	exists bool
}

// Run performs one synchronization described by cfg.
func Run(cfg Config) (*Report, error) {
	if cfg.TemplatesDir == "" {
		return nil, errors.New("templates directory not set")
	}
	cfg.setDefaults()

	if !cfg.DryRun {
		lock := flock.New(filepath.Join(cfg.TemplatesDir, LockFileName))
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock: %w", err)
		}
		if !ok {
			return nil, ErrLocked
		}
		defer func() { _ = lock.Unlock() }()
	}

	master, err := catalog.Load(cfg.MasterFile)
	if err != nil {
		return nil, fmt.Errorf("loading master catalog: %w", err)
	}
	store, err := i18nstore.Load(cfg.StoreFile, cfg.StoreLanguages)
	if err != nil {
		return nil, fmt.Errorf("loading translation store: %w", err)
	}

	r := &run{
		cfg:    cfg,
		store:  store,
		master: master,
		rec:    reconcile.New(store, cfg.Reconcile),
		report: &Report{DryRun: cfg.DryRun, StoreFile: cfg.StoreFile},
		vram:   make(map[string]struct{}),
	}

	if !cfg.SkipMasterFix {
		usage, err := LoadUsage(cfg.UsageFile)
		if err != nil {
			cfg.log("Usage data unavailable: %v", err)
		} else if len(usage) > 0 {
			cfg.log("Loaded usage data for %d templates", len(usage))
		}
		if err := r.fixMaster(usage); err != nil {
			return nil, err
		}
	}
	r.masterIdx = catalog.BuildIndex(r.master)

	locales := r.loadLocales()
	r.collect(locales)
	r.recordEnglish()

	for _, loc := range locales {
		if err := r.syncLocale(loc); err != nil {
			return nil, err
		}
	}

	r.finish()

	if store.Dirty() {
		r.report.StoreChanged = true
		if !cfg.DryRun {
			if err := store.Save(); err != nil {
				return nil, err
			}
			cfg.log("Saved translation store: %s", store.Path())
		}
	}
	return r.report, nil
}

// fixMaster applies the size/vram invariant and usage counts to the master
// catalog and writes it back when it changed.
func (r *run) fixMaster(usage map[string]int) error {
	changed := false
	for _, cat := range r.master {
		for _, tpl := range cat.Templates {
			name := tpl.Name()
			switch catalog.NormalizeVRAM(tpl) {
			case catalog.VRAMFromSize:
				r.vram[name] = struct{}{}
				r.report.MasterFixed = append(r.report.MasterFixed, name)
				r.cfg.log("Fixed vram for %q from size", name)
				changed = true
			case catalog.VRAMZeroed:
				r.report.MasterFixed = append(r.report.MasterFixed, name)
				r.cfg.log("Set vram to 0 for %q (size is 0)", name)
				changed = true
			}

			count, ok := usage[name]
			if !ok {
				continue
			}
			if cur, has := tpl.Number(catalog.FieldUsage); has && cur == float64(count) {
				continue
			}
			if err := tpl.SetValue(catalog.FieldUsage, count); err != nil {
				return fmt.Errorf("setting usage of %q: %w", name, err)
			}
			r.report.UsageUpdated = append(r.report.UsageUpdated, name)
			changed = true
		}
	}
	if !changed {
		return nil
	}

	changed, err := r.write(r.cfg.MasterFile, r.master)
	if err != nil {
		return err
	}
	r.report.MasterChanged = changed
	return nil
}

// recordEnglish keeps the store's English source in step with the master.
func (r *run) recordEnglish() {
	for _, cat := range r.master {
		for _, tpl := range cat.Templates {
			name := tpl.Name()
			if name == "" {
				continue
			}
			for _, field := range r.rec.LanguageFields() {
				if en, ok := tpl.LookupString(field); ok && en != "" {
					r.store.RecordEnglish(name, field, en)
				}
			}
		}
	}
}

// loadLocales reads every configured locale catalog. Unreadable files are
// reported and skipped so they are never overwritten.
func (r *run) loadLocales() []*locale {
	var out []*locale
	for _, lang := range r.cfg.Languages {
		path := LocaleFile(r.cfg.TemplatesDir, lang)
		cat, exists, err := catalog.LoadOptional(path)
		if err != nil {
			r.cfg.log("Skipping %s: %v", path, err)
			r.report.Skipped = append(r.report.Skipped, SkippedFile{Lang: lang, File: path, Err: err})
			continue
		}
		out = append(out, &locale{lang: lang, path: path, cat: cat, exists: exists})
	}
	return out
}

// collect copies translations found in locale catalogs into the store where
// the store has none yet. It runs before recordEnglish so that a locale value
// still holding the previous English text is recognized and skipped.
func (r *run) collect(locales []*locale) {
	for _, loc := range locales {
		if !loc.exists {
			continue
		}
		for _, cat := range loc.cat {
			for _, tpl := range cat.Templates {
				r.collectTemplate(tpl, loc.lang)
			}
		}
		for _, mc := range r.master {
			idx, ok := catalog.MatchCategory(mc, loc.cat, r.cfg.MatchThreshold)
			if !ok {
				continue
			}
			tc := loc.cat[idx]
			if r.collectCategory(mc.Title(), tc.Title(), loc.lang) {
				r.report.CollectedCategories++
			}
			if r.collectCategory(mc.Label(), tc.Label(), loc.lang) {
				r.report.CollectedCategories++
			}
		}
	}
	if r.report.Collected > 0 {
		r.cfg.log("Collected %d template translations from locale catalogs", r.report.Collected)
	}
	if r.report.CollectedCategories > 0 {
		r.cfg.log("Collected %d category translations from locale catalogs", r.report.CollectedCategories)
	}
}

func (r *run) collectTemplate(tpl *catalog.Template, lang string) {
	name := tpl.Name()
	loc, ok := r.masterIdx[name]
	if name == "" || !ok {
		return
	}
	for _, field := range r.rec.LanguageFields() {
		en, ok := loc.Template.LookupString(field)
		if !ok || en == "" {
			continue
		}
		value, ok := tpl.LookupString(field)
		if !ok || value == "" || value == en {
			continue
		}
		if prev, ok := r.store.English(name, field); ok && value == prev {
			continue
		}
		if _, has := r.store.Get(name, field, lang); has {
			continue
		}
		if r.store.RecordTranslation(name, field, lang, value) {
			r.report.Collected++
		}
	}
}

func (r *run) collectCategory(key, value, lang string) bool {
	if key == "" || value == "" || value == key || r.store.HasCategory(value) {
		return false
	}
	if _, has := r.store.CategoryTranslation(key, lang); has {
		return false
	}
	return r.store.RecordCategoryTranslation(key, lang, value)
}

// syncLocale rebuilds one locale catalog in master order and writes it.
func (r *run) syncLocale(loc *locale) error {
	lr := &LocaleReport{Lang: loc.lang, File: loc.path, Created: !loc.exists}
	r.report.Locales = append(r.report.Locales, lr)
	r.cfg.log("Synchronizing %s (%s)", loc.lang, filepath.Base(loc.path))

	targetIdx := catalog.BuildIndex(loc.cat)
	used := make(map[int]bool)
	out := make(catalog.Catalog, 0, len(r.master))

	for _, mc := range r.master {
		var tc *catalog.Category
		if idx, ok := catalog.MatchCategory(mc, loc.cat, r.cfg.MatchThreshold); ok && !used[idx] {
			used[idx] = true
			tc = loc.cat[idx]
		} else if loc.exists {
			lr.AddedCategories = append(lr.AddedCategories, mc.ModuleName())
		}
		oc := r.category(mc, tc, loc.lang)

		for _, mt := range mc.Templates {
			name := mt.Name()
			var target *catalog.Template
			if l, ok := targetIdx[name]; ok && name != "" {
				target = l.Template
			}
			res := r.rec.Template(mt, target, loc.lang)
			if res.VRAMFromSize {
				r.vram[name] = struct{}{}
			}
			lr.Translated += res.Translated
			switch {
			case target == nil:
				lr.Added = append(lr.Added, name)
				r.cfg.log("  added template %s", name)
			case len(res.Changed) > 0:
				lr.Updated = append(lr.Updated, name)
				lr.FieldsUpdated += len(res.Changed)
			default:
				lr.Unchanged++
			}
			oc.Templates = append(oc.Templates, res.Template)
		}
		out = append(out, oc)
	}

	for name := range targetIdx {
		if _, ok := r.masterIdx[name]; !ok {
			lr.Removed = append(lr.Removed, name)
		}
	}
	sort.Strings(lr.Removed)
	if len(lr.Removed) > 0 {
		r.cfg.log("  dropping %d template(s) no longer in the master", len(lr.Removed))
	}

	for i, tc := range loc.cat {
		if used[i] || len(tc.Templates) == 0 {
			continue
		}
		label := tc.ModuleName()
		if label == "" {
			label = fmt.Sprintf("category %d", i)
		}
		lr.RemovedCategories = append(lr.RemovedCategories, label)
	}
	if len(lr.RemovedCategories) > 0 {
		r.cfg.log("  removed categories: %v", lr.RemovedCategories)
	}

	changed, err := r.write(loc.path, out)
	if err != nil {
		return err
	}
	lr.Changed = changed
	return nil
}

// category builds the output category: the master's fields with the label
// and title translated. A hand-edited title in the matched locale category
// is kept while the store has no translation for it, unless it is itself an
// English title (a renamed category).
func (r *run) category(mc, tc *catalog.Category, lang string) *catalog.Category {
	oc := mc.Clone()
	oc.Templates = nil

	if label, ok := mc.LookupString(catalog.FieldCategory); ok && label != "" {
		_ = oc.SetValue(catalog.FieldCategory, r.store.TranslateCategoryField(label, lang))
	}
	if title, ok := mc.LookupString(catalog.FieldTitle); ok && title != "" {
		value := r.store.TranslateCategoryTitle(title, lang)
		if value == title && tc != nil {
			if cur, ok := tc.LookupString(catalog.FieldTitle); ok && cur != "" && !r.store.HasCategory(cur) {
				value = cur
			}
		}
		_ = oc.SetValue(catalog.FieldTitle, value)
	}
	return oc
}

// write marshals c and writes it to path unless the content is unchanged or
// the run is dry. Reports whether the content differs from the file.
func (r *run) write(path string, c catalog.Catalog) (bool, error) {
	data, err := catalog.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", path, err)
	}
	if fileutil.SameContent(path, data) {
		return false, nil
	}
	if r.cfg.DryRun {
		r.cfg.log("Would write %s", path)
		return true, nil
	}
	if err := fileutil.WriteFileAtomic(path, data, 0644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}

// finish recomputes the store's derived state and fills the report.
func (r *run) finish() {
	pending := make(map[string]i18nstore.Pending)
	seen := make(map[string]bool)
	for _, cat := range r.master {
		for _, tpl := range cat.Templates {
			name := tpl.Name()
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			if p, ok := r.pending(tpl); ok {
				pending[name] = p
			}
		}
	}
	r.store.SetPending(pending)

	names := make([]string, 0, len(r.vram))
	for n := range r.vram {
		if n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	r.store.MarkVRAMSizeUpdates(names)

	r.report.Pending = r.store.Pending()
	r.report.VRAMSizeUpdates = r.store.VRAMSizeUpdates()
	r.report.NewTags = r.store.NewTags()
	r.report.NewCategoryTitles = r.store.NewCategoryTitles()
	r.report.NewCategoryFields = r.store.NewCategoryFields()
	r.report.UnusedTags = r.store.UnusedTags()
	r.report.UnusedCategories = r.store.UnusedCategories()
}

// pending lists the language fields of tpl that lack a real translation in
// any tracked locale, and ensures every slot has a placeholder.
func (r *run) pending(tpl *catalog.Template) (i18nstore.Pending, bool) {
	name := tpl.Name()
	var p i18nstore.Pending
	missingLang := make(map[string]bool)

	for _, field := range r.rec.LanguageFields() {
		en, ok := tpl.LookupString(field)
		if !ok || en == "" {
			continue
		}
		missing := false
		for _, lang := range r.cfg.StoreLanguages {
			r.store.EnsurePlaceholder(name, field, lang)
			if _, ok := r.store.Get(name, field, lang); !ok {
				missing = true
				missingLang[lang] = true
			}
		}
		if missing {
			p.MissingFields = append(p.MissingFields, field)
		}
	}
	if len(p.MissingFields) == 0 {
		return p, false
	}
	for _, lang := range r.cfg.StoreLanguages {
		if missingLang[lang] {
			p.MissingLanguages = append(p.MissingLanguages, lang)
		}
	}
	return p, true
}
