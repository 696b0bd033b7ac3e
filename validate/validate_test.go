package validate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/minios-linux/tmplsync/syncer"
)

const masterJSON = `[
  {
    "moduleName": "default",
    "title": "Image",
    "templates": [
      {
        "name": "flux_dev",
        "title": "Flux Dev",
        "mediaType": "image",
        "mediaSubtype": "webp",
        "models": ["Flux"],
        "date": "2025-03-01"
      },
      {
        "name": "wan_video",
        "title": "Wan video",
        "mediaType": "video",
        "mediaSubtype": "webp",
        "thumbnailVariant": "hoverDissolve",
        "models": ["Wan", "umt5"],
        "date": "2025-04-12"
      }
    ]
  }
]
`

const frJSON = `[
  {
    "title": "Image",
    "moduleName": "default",
    "templates": [
      {
        "title": "Flux Dev FR",
        "name": "flux_dev",
        "mediaSubtype": "webp",
        "mediaType": "image",
        "models": [ "Flux" ],
        "date": "2025-03-01"
      },
      {
        "name": "wan_video",
        "title": "Vidéo Wan",
        "mediaType": "video",
        "mediaSubtype": "webp",
        "thumbnailVariant": "hoverDissolve",
        "models": ["Wan", "umt5"],
        "date": "2025-04-12"
      }
    ]
  }
]
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "templates")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	return dir
}

func run(t *testing.T, opts Options) *Report {
	t.Helper()
	report, err := Run(opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

// summarize renders issues as "file|template|message" for easy matching.
func summarize(r *Report) []string {
	var out []string
	for _, issue := range r.Issues {
		out = append(out, filepath.Base(issue.File)+"|"+issue.Template+"|"+issue.Message)
	}
	sort.Strings(out)
	return out
}

func hasIssue(r *Report, file, template, fragment string) bool {
	for _, issue := range r.Issues {
		if filepath.Base(issue.File) == file && issue.Template == template && strings.Contains(issue.Message, fragment) {
			return true
		}
	}
	return false
}

func TestRunConsistentCatalogs(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"index.json":    masterJSON,
		"index.fr.json": frJSON,
	})

	report := run(t, Options{TemplatesDir: dir, Languages: []string{"fr"}})
	if len(report.Issues) != 0 {
		t.Fatalf("unexpected issues: %v", summarize(report))
	}
	if len(report.Checked) != 2 {
		t.Fatalf("Checked = %v", report.Checked)
	}
}

func TestRunSchemaIssues(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"index.json": `[
  {"title": "Image", "templates": [
    {"name": "flux_dev", "mediaType": "picture"},
    {"title": "no name", "mediaType": "image"},
    {"name": "big", "mediaType": "image", "vram": -1}
  ]},
  {"templates": []}
]`,
	})

	report := run(t, Options{TemplatesDir: dir})
	if !hasIssue(report, "index.json", "flux_dev", "/0/templates/0/mediaType") {
		t.Fatalf("enum violation not reported: %v", summarize(report))
	}
	if !hasIssue(report, "index.json", "", "schema: /0/templates/1: ") {
		t.Fatalf("missing name not reported: %v", summarize(report))
	}
	if !hasIssue(report, "index.json", "big", "/0/templates/2/vram") {
		t.Fatalf("negative vram not reported: %v", summarize(report))
	}
	if !hasIssue(report, "index.json", "", "schema: /1: ") {
		t.Fatalf("category without title not reported: %v", summarize(report))
	}
	if report.Errors() != len(report.Issues) || report.Warnings() != 0 {
		t.Fatalf("severity counts: errors=%d warnings=%d", report.Errors(), report.Warnings())
	}
}

func TestRunUnparsableMaster(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"index.json": `{"not": "a catalog"}`,
	})

	report := run(t, Options{TemplatesDir: dir, Languages: []string{"fr"}})
	if len(report.Issues) != 1 || !hasIssue(report, "index.json", "", "cannot parse catalog") {
		t.Fatalf("issues = %v", summarize(report))
	}
}

func TestRunDuplicateNames(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"index.json": `[
  {"title": "A", "templates": [{"name": "dup", "mediaType": "image"}]},
  {"title": "B", "templates": [{"name": "dup", "mediaType": "image"}]}
]`,
	})

	report := run(t, Options{TemplatesDir: dir})
	if !hasIssue(report, "index.json", "dup", "more than once") {
		t.Fatalf("duplicate not reported: %v", summarize(report))
	}
}

func TestRunLocaleDrift(t *testing.T) {
	fr := `[
  {"title": "Image", "templates": [
    {"name": "flux_dev", "mediaType": "image", "mediaSubtype": "png", "models": ["Flux"]},
    {"name": "orphan", "mediaType": "image"}
  ]}
]`
	dir := writeFiles(t, map[string]string{
		"index.json":    masterJSON,
		"index.fr.json": fr,
	})

	report := run(t, Options{TemplatesDir: dir, Languages: []string{"fr", "ja"}})

	want := []struct {
		file, template, fragment string
	}{
		{"index.fr.json", "wan_video", "missing from locale catalog"},
		{"index.fr.json", "orphan", "not present in master"},
		{"index.fr.json", "flux_dev", "mediaSubtype differs"},
		{"index.fr.json", "flux_dev", "date differs"},
		{"index.ja.json", "", "does not exist"},
	}
	for _, w := range want {
		if !hasIssue(report, w.file, w.template, w.fragment) {
			t.Errorf("missing issue %s [%s] %q in %v", w.file, w.template, w.fragment, summarize(report))
		}
	}
	if hasIssue(report, "index.fr.json", "flux_dev", "models differs") {
		t.Fatalf("equal models reported as drift")
	}
	if report.Warnings() != 1 {
		t.Fatalf("Warnings = %d, want 1", report.Warnings())
	}
}

func TestRunCheckFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"index.json":        masterJSON,
		"flux_dev.json":     "{}",
		"flux_dev-1.webp":   "",
		"flux_dev-2.webp":   "",
		"wan_video-1.webp":  "",
		"stale.json":        "{}",
		"stale-1.webp":      "",
		"README.md":         "",
		"index.schema.json": "{}",
		".tmplsync.lock":    "",
	})

	report := run(t, Options{TemplatesDir: dir, CheckFiles: true})

	got := summarize(report)
	want := []string{
		"stale-1.webp||media file is not referenced by the master catalog",
		"stale.json||workflow file is not referenced by the master catalog",
		"wan_video.json|wan_video|workflow file not found",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("issues:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestRunMissingMaster(t *testing.T) {
	if _, err := Run(Options{TemplatesDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for missing master catalog")
	}
}

func TestCompileSchema(t *testing.T) {
	dir := t.TempDir()

	custom := filepath.Join(dir, "strict.schema.json")
	schema := `{"type": "array", "maxItems": 0}`
	if err := os.WriteFile(custom, []byte(schema), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	tdir := writeFiles(t, map[string]string{"index.json": masterJSON})
	report := run(t, Options{TemplatesDir: tdir, SchemaFile: custom})
	if !hasIssue(report, "index.json", "", "schema:") {
		t.Fatalf("custom schema not applied: %v", summarize(report))
	}

	broken := filepath.Join(dir, "broken.schema.json")
	if err := os.WriteFile(broken, []byte(`{"type": 12}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := CompileSchema(broken); err == nil {
		t.Fatalf("expected error for invalid schema")
	}
	if _, err := CompileSchema(filepath.Join(dir, "absent.json")); err == nil {
		t.Fatalf("expected error for missing schema")
	}
	if _, err := CompileSchema(""); err != nil {
		t.Fatalf("built-in schema: %v", err)
	}
}

func TestSyncedLocalesValidate(t *testing.T) {
	dir := writeFiles(t, map[string]string{"index.json": masterJSON})

	_, err := syncer.Run(syncer.Config{
		TemplatesDir:  dir,
		Languages:     []string{"fr", "ja"},
		SkipMasterFix: true,
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	report := run(t, Options{TemplatesDir: dir, Languages: []string{"fr", "ja"}})
	if len(report.Issues) != 0 {
		t.Fatalf("synced catalogs have issues: %v", summarize(report))
	}
}
