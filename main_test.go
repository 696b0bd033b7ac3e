package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/minios-linux/tmplsync/catalog"
	"github.com/minios-linux/tmplsync/i18n"
	"github.com/minios-linux/tmplsync/i18nstore"
	"github.com/minios-linux/tmplsync/syncer"
)

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]column{leftColumn("Locale"), rightColumn("Added")},
		[][]string{{"fr", "3"}, {"ja"}},
		[]string{"Total", "3"},
	)
	for _, want := range []string{"Locale", "Added", "fr", "ja", "3", "Total", "╭", "╯"} {
		if !strings.Contains(out, want) {
			t.Fatalf("renderTable() output missing %q:\n%s", want, out)
		}
	}
	if got := renderTable(nil, nil, nil); got != "" {
		t.Fatalf("renderTable(no columns) = %q, want empty", got)
	}
}

func TestPadRow(t *testing.T) {
	cols := []column{leftColumn("a"), leftColumn("b"), leftColumn("c")}
	if got := padRow(cols, []string{"x"}, nil); !reflect.DeepEqual(got, table.Row{"x", "", ""}) {
		t.Fatalf("padRow(short) = %v", got)
	}
	got := padRow(cols, nil, func(i int) string { return cols[i].header })
	if !reflect.DeepEqual(got, table.Row{"a", "b", "c"}) {
		t.Fatalf("padRow(header) = %v", got)
	}
}

func TestDescribeLanguages(t *testing.T) {
	if got := describeLanguages([]string{"fr", "ja"}); got != "fr (French), ja (Japanese)" {
		t.Fatalf("describeLanguages() = %q", got)
	}
	if got := describeLanguages([]string{"not a code"}); got != "not a code" {
		t.Fatalf("describeLanguages(invalid) = %q", got)
	}
}

func TestFileState(t *testing.T) {
	i18n.Init("en")

	tests := []struct {
		name   string
		report syncer.LocaleReport
		dryRun bool
		want   string
	}{
		{name: "created", report: syncer.LocaleReport{Created: true, Changed: true}, want: "created"},
		{name: "would create", report: syncer.LocaleReport{Created: true, Changed: true}, dryRun: true, want: "would create"},
		{name: "updated", report: syncer.LocaleReport{Changed: true}, want: "updated"},
		{name: "would update", report: syncer.LocaleReport{Changed: true}, dryRun: true, want: "would update"},
		{name: "unchanged", report: syncer.LocaleReport{}, want: "unchanged"},
	}

	for _, tc := range tests {
		if got := fileState(&tc.report, tc.dryRun); got != tc.want {
			t.Fatalf("%s: fileState() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total int
		want        string
	}{
		{done: 0, total: 0, want: "-"},
		{done: 1, total: 3, want: "33%"},
		{done: 4, total: 4, want: "100%"},
		{done: -2, total: 4, want: "0%"},
	}
	for _, tc := range tests {
		if got := percent(tc.done, tc.total); got != tc.want {
			t.Fatalf("percent(%d, %d) = %q, want %q", tc.done, tc.total, got, tc.want)
		}
	}
}

func TestPendingByLanguage(t *testing.T) {
	ledger := map[string]i18nstore.Pending{
		"a": {MissingFields: []string{"title"}, MissingLanguages: []string{"fr", "ja"}},
		"b": {MissingFields: []string{"description"}, MissingLanguages: []string{"fr"}},
	}
	want := map[string]int{"fr": 2, "ja": 1}
	if got := pendingByLanguage(ledger); !reflect.DeepEqual(got, want) {
		t.Fatalf("pendingByLanguage() = %#v, want %#v", got, want)
	}
}

func TestColorEnabled(t *testing.T) {
	if colorEnabled(os.Stderr, true) {
		t.Fatalf("colorEnabled(disabled) = true, want false")
	}
	t.Setenv("NO_COLOR", "1")
	if colorEnabled(os.Stderr, false) {
		t.Fatalf("colorEnabled with NO_COLOR = true, want false")
	}
}

const cliMaster = `[
  {
    "moduleName": "default",
    "title": "Image",
    "templates": [
      {"name": "flux_dev", "title": "Flux Dev", "mediaType": "image", "size": 80}
    ]
  }
]
`

// execute runs the CLI with args and restores the global flags afterwards.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("LANGUAGE", "en")
	t.Cleanup(func() {
		templatesDir, configPath, noColor = ".", "", false
	})
	root := newRootCmd()
	root.SetArgs(append([]string{"--no-color"}, args...))
	return root.Execute()
}

func TestSyncValidateStatusCommands(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "templates")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte(cliMaster), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := "languages: [fr, ja]\n"
	if err := os.WriteFile(filepath.Join(root, ".tmplsync.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := execute(t, "--templates-dir", dir, "sync", "--dry-run"); err != nil {
		t.Fatalf("sync --dry-run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.fr.json")); !os.IsNotExist(err) {
		t.Fatalf("dry run created a locale catalog (err=%v)", err)
	}

	if err := execute(t, "--templates-dir", dir, "sync", "--lang", "fr"); err != nil {
		t.Fatalf("sync --lang fr: %v", err)
	}
	fr, err := catalog.Load(filepath.Join(dir, "index.fr.json"))
	if err != nil {
		t.Fatalf("Load(fr): %v", err)
	}
	if fr.TemplateCount() != 1 {
		t.Fatalf("fr templates = %d, want 1", fr.TemplateCount())
	}
	if _, err := os.Stat(filepath.Join(dir, "index.ja.json")); !os.IsNotExist(err) {
		t.Fatalf("--lang fr also wrote ja (err=%v)", err)
	}

	if err := execute(t, "--templates-dir", dir, "validate", "--lang", "fr"); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := execute(t, "--templates-dir", dir, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
}

// captureStderr redirects log and table output into a buffer for the test.
func captureStderr(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stderr
	stderr = &buf
	t.Cleanup(func() { stderr = prev })
	return &buf
}

func TestSyncSummaryListsRemovedTemplates(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "templates")
	fr := `[{"moduleName":"default","title":"Image","templates":[
  {"name":"flux_dev","title":"Flux Dev","mediaType":"image"},
  {"name":"old_tpl","title":"Ancien","mediaType":"image"}
]}]`
	files := map[string]string{
		filepath.Join(dir, "index.json"):      cliMaster,
		filepath.Join(dir, "index.fr.json"):   fr,
		filepath.Join(root, ".tmplsync.yaml"): "languages: [fr, ja]\n",
	}
	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	out := captureStderr(t)
	if err := execute(t, "--templates-dir", dir, "sync"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	log := out.String()
	if n := strings.Count(log, "removed template old_tpl"); n != 1 {
		t.Fatalf("removed template entries = %d, want 1:\n%s", n, log)
	}
	for _, want := range []string{"fr: removed template old_tpl", "Synchronization Summary", "Total", "1 removed"} {
		if !strings.Contains(log, want) {
			t.Fatalf("summary missing %q:\n%s", want, log)
		}
	}
	if strings.Contains(log, "ja: removed template") {
		t.Fatalf("ja reported a removal:\n%s", log)
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing master", args: []string{"--templates-dir", dir, "sync"}, want: "index.json"},
		{name: "unknown language", args: []string{"--templates-dir", dir, "sync", "--lang", "xx"}, want: "not configured"},
		{name: "bad policy", args: []string{"--templates-dir", dir, "sync", "--fallback-policy", "stale"}, want: "unknown fallback policy"},
		{name: "missing config", args: []string{"--templates-dir", dir, "--config", filepath.Join(dir, "nope.yaml"), "status"}, want: "not found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := execute(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want containing %q", err, tc.want)
			}
		})
	}
}
