// Package validate checks the master and locale catalogs against the
// catalog schema, for duplicate template names, and for structural drift
// between each locale and the master.
//
// Problems found in the catalogs are reported as Issues. Run only returns
// an error when validation itself cannot proceed.
package validate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/minios-linux/tmplsync/catalog"
	"github.com/minios-linux/tmplsync/fileutil"
	"github.com/minios-linux/tmplsync/syncer"
)

// Severity grades an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding.
type Issue struct {
	// File is the catalog (or asset) the issue was found in.
	File string
	// Template is the template name, when the issue concerns one.
	Template string
	Message  string
	Severity Severity
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(filepath.Base(i.File))
	if i.Template != "" {
		b.WriteString(" [" + i.Template + "]")
	}
	b.WriteString(": " + i.Message)
	return b.String()
}

// StructuralFields must be identical in the master and every locale.
var StructuralFields = []string{
	catalog.FieldMediaType,
	catalog.FieldMediaSubtype,
	catalog.FieldThumbnailVariant,
	catalog.FieldModels,
	catalog.FieldDate,
}

// Options configures a validation run.
type Options struct {
	TemplatesDir string
	// MasterFile defaults to TemplatesDir/index.json.
	MasterFile string
	// SchemaFile overrides the built-in catalog schema.
	SchemaFile string
	// Languages are the locale catalogs to check against the master.
	Languages []string
	// CheckFiles enables the workflow and thumbnail file checks.
	CheckFiles bool
	OnLog      func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// Report collects the files checked and the issues found.
type Report struct {
	Checked []string
	Issues  []Issue
}

// Errors returns the number of error-level issues.
func (r *Report) Errors() int { return r.count(SeverityError) }

// Warnings returns the number of warning-level issues.
func (r *Report) Warnings() int { return r.count(SeverityWarning) }

func (r *Report) count(s Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == s {
			n++
		}
	}
	return n
}

func (r *Report) add(file, template string, sev Severity, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		File:     file,
		Template: template,
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
	})
}

// Run validates the master catalog and each configured locale catalog.
func Run(opts Options) (*Report, error) {
	if opts.MasterFile == "" {
		opts.MasterFile = filepath.Join(opts.TemplatesDir, syncer.MasterFileName)
	}

	schema, err := CompileSchema(opts.SchemaFile)
	if err != nil {
		return nil, err
	}

	report := &Report{}

	opts.log("Validating %s", opts.MasterFile)
	data, err := os.ReadFile(opts.MasterFile)
	if err != nil {
		return nil, fmt.Errorf("reading master catalog: %w", err)
	}
	master := checkCatalog(report, schema, opts.MasterFile, data)
	if master == nil {
		return report, nil
	}
	if opts.CheckFiles {
		checkFiles(report, opts.TemplatesDir, master)
	}

	for _, lang := range opts.Languages {
		path := syncer.LocaleFile(opts.TemplatesDir, lang)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			report.add(path, "", SeverityWarning, "locale catalog %s does not exist; run sync to create it", lang)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		opts.log("Validating %s", path)
		locale := checkCatalog(report, schema, path, data)
		if locale == nil {
			continue
		}
		compare(report, path, master, locale)
	}
	return report, nil
}

// checkCatalog runs the per-file checks and returns the parsed catalog, or
// nil when the file is not a catalog at all.
func checkCatalog(report *Report, schema *jsonschema.Schema, path string, data []byte) catalog.Catalog {
	report.Checked = append(report.Checked, path)

	c, err := catalog.Parse(data)
	if err != nil {
		report.add(path, "", SeverityError, "cannot parse catalog: %v", err)
		return nil
	}

	failures, err := schemaFailures(schema, data)
	if err != nil {
		report.add(path, "", SeverityError, "schema validation failed: %v", err)
	}
	for _, f := range failures {
		report.add(path, templateAt(c, f.Location), SeverityError, "schema: %s: %s", f.Location, f.Message)
	}

	for _, name := range catalog.DuplicateNames(c) {
		report.add(path, name, SeverityError, "template name appears more than once")
	}
	return c
}

// compare reports templates missing from or extra in the locale and any
// structural field that differs from the master.
func compare(report *Report, path string, master, locale catalog.Catalog) {
	masterIdx := catalog.BuildIndex(master)
	localeIdx := catalog.BuildIndex(locale)

	for _, name := range sortedNames(masterIdx) {
		loc, ok := localeIdx[name]
		if !ok {
			report.add(path, name, SeverityError, "missing from locale catalog")
			continue
		}
		mt := masterIdx[name].Template
		for _, field := range StructuralFields {
			a, aok := mt.Get(field)
			b, bok := loc.Template.Get(field)
			if aok != bok || (aok && !jsonpatch.Equal(a, b)) {
				report.add(path, name, SeverityError, "%s differs from master", field)
			}
		}
	}
	for _, name := range sortedNames(localeIdx) {
		if _, ok := masterIdx[name]; !ok {
			report.add(path, name, SeverityError, "not present in master catalog")
		}
	}
}

func sortedNames(idx map[string]catalog.Location) []string {
	names := make([]string, 0, len(idx))
	for name := range idx {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ignoredFiles are never reported as orphans.
var ignoredFiles = map[string]bool{
	"README.md":  true,
	".gitignore": true,
}

// checkFiles verifies that every template has its workflow file and first
// thumbnail, and warns about files no template references.
func checkFiles(report *Report, dir string, master catalog.Catalog) {
	referenced := make(map[string]bool)
	for _, cat := range master {
		for _, t := range cat.Templates {
			name := t.Name()
			if name == "" {
				continue
			}
			referenced[name] = true

			workflow := name + ".json"
			if !fileutil.Exists(filepath.Join(dir, workflow)) {
				report.add(filepath.Join(dir, workflow), name, SeverityError, "workflow file not found")
			}
			if sub := t.String(catalog.FieldMediaSubtype); sub != "" {
				thumb := fmt.Sprintf("%s-1.%s", name, sub)
				if !fileutil.Exists(filepath.Join(dir, thumb)) {
					report.add(filepath.Join(dir, thumb), name, SeverityError, "required thumbnail not found")
				}
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		report.add(dir, "", SeverityError, "cannot list templates directory: %v", err)
		return
	}
	for _, entry := range entries {
		file := entry.Name()
		if entry.IsDir() || ignoredFiles[file] || strings.HasPrefix(file, ".") {
			continue
		}
		if strings.HasSuffix(file, ".json") {
			if strings.HasPrefix(file, "index.") || file == syncer.MasterFileName {
				continue
			}
			if !referenced[strings.TrimSuffix(file, ".json")] {
				report.add(filepath.Join(dir, file), "", SeverityWarning, "workflow file is not referenced by the master catalog")
			}
			continue
		}
		if !isThumbnailOf(file, referenced) {
			report.add(filepath.Join(dir, file), "", SeverityWarning, "media file is not referenced by the master catalog")
		}
	}
}

// isThumbnailOf reports whether file is named <template>-<N>.<ext> for a
// referenced template.
func isThumbnailOf(file string, referenced map[string]bool) bool {
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	i := strings.LastIndex(stem, "-")
	if i <= 0 {
		return false
	}
	if _, err := strconv.Atoi(stem[i+1:]); err != nil {
		return false
	}
	return referenced[stem[:i]]
}
