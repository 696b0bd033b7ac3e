package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/minios-linux/tmplsync/reconcile"
)

// newRepo creates <root>/templates and returns (root, templatesDir).
func newRepo(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "templates")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	return root, dir
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("[]"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	root, dir := newRepo(t)

	p, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.ConfigFile != "" {
		t.Fatalf("ConfigFile = %q, want none", p.ConfigFile)
	}
	if p.MasterFile != filepath.Join(dir, "index.json") {
		t.Fatalf("MasterFile = %q", p.MasterFile)
	}
	if p.StoreFile != filepath.Join(root, "scripts", "i18n.json") {
		t.Fatalf("StoreFile = %q", p.StoreFile)
	}
	if p.UsageFile != filepath.Join(root, "temp", "usage.csv") {
		t.Fatalf("UsageFile = %q", p.UsageFile)
	}
	if p.LanguageSource != LanguagesFromDefaults || !reflect.DeepEqual(p.Languages, DefaultLanguages) {
		t.Fatalf("Languages = %v (%s), want defaults", p.Languages, p.LanguageSource)
	}
	if p.FallbackPolicy != reconcile.PolicyEnglishFallback || p.MatchThreshold != 0.5 {
		t.Fatalf("policy/threshold = %q/%v", p.FallbackPolicy, p.MatchThreshold)
	}
}

func TestLoadDetectsLanguagesFromFiles(t *testing.T) {
	_, dir := newRepo(t)
	for _, name := range []string{"index.json", "index.fr.json", "index.zh-TW.json", "index.en.json", "index.schema.json", "other.json"} {
		touch(t, filepath.Join(dir, name))
	}

	p, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.LanguageSource != LanguagesFromFiles {
		t.Fatalf("LanguageSource = %s", p.LanguageSource)
	}
	if want := []string{"fr", "zh-TW"}; !reflect.DeepEqual(p.Languages, want) {
		t.Fatalf("Languages = %v, want %v", p.Languages, want)
	}
	if got := p.LocaleFile("fr"); got != filepath.Join(dir, "index.fr.json") {
		t.Fatalf("LocaleFile = %q", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	root, dir := newRepo(t)
	touch(t, filepath.Join(dir, "index.ko.json"))
	yaml := "languages: [ja, pt-BR]\n" +
		"i18n_file: ../i18n/store.json\n" +
		"master_file: /abs/index.json\n" +
		"language_fields: [title]\n" +
		"match_threshold: 0.75\n" +
		"fallback_policy: preserve\n"
	if err := os.WriteFile(filepath.Join(root, FileName), []byte(yaml), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.ConfigFile == "" {
		t.Fatalf("config file was not picked up")
	}
	if p.LanguageSource != LanguagesFromConfig || !reflect.DeepEqual(p.Languages, []string{"ja", "pt-BR"}) {
		t.Fatalf("Languages = %v (%s)", p.Languages, p.LanguageSource)
	}
	if p.StoreFile != filepath.Join(root, "i18n", "store.json") {
		t.Fatalf("StoreFile = %q", p.StoreFile)
	}
	if p.MasterFile != "/abs/index.json" {
		t.Fatalf("MasterFile = %q", p.MasterFile)
	}
	if !reflect.DeepEqual(p.LanguageFields, []string{"title"}) {
		t.Fatalf("LanguageFields = %v", p.LanguageFields)
	}
	if p.MatchThreshold != 0.75 || p.FallbackPolicy != reconcile.PolicyPreserveTarget {
		t.Fatalf("threshold/policy = %v/%q", p.MatchThreshold, p.FallbackPolicy)
	}

	cfg := p.SyncConfig()
	if cfg.Reconcile.Policy != reconcile.PolicyPreserveTarget || cfg.MatchThreshold != 0.75 {
		t.Fatalf("SyncConfig = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.StoreLanguages, p.Languages) {
		t.Fatalf("StoreLanguages = %v", cfg.StoreLanguages)
	}
}

func TestLoadFileValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "unknown key", yaml: "langs: [fr]\n", want: "field langs not found"},
		{name: "bad language", yaml: "languages: [fr, english]\n", want: "languages"},
		{name: "source language", yaml: "languages: [en]\n", want: "source language"},
		{name: "threshold too high", yaml: "match_threshold: 1.5\n", want: "match_threshold"},
		{name: "unknown policy", yaml: "fallback_policy: stale\n", want: "fallback_policy"},
		{name: "overlapping fields", yaml: "language_fields: [title, models]\n", want: "both auto-synced and translated"},
		{name: "empty field name", yaml: "auto_sync_fields: [size, \"\"]\n", want: "auto_sync_fields"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			if err := os.WriteFile(path, []byte(tc.yaml), 0644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			_, err := LoadFile(path)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err, tc.want)
			}
		})
	}
}

func TestLoadFileMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	f, err := LoadFile(filepath.Join(dir, FileName))
	if err != nil || f != nil {
		t.Fatalf("missing file = %#v, %v", f, err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("# nothing configured\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err = LoadFile(path)
	if err != nil || f == nil {
		t.Fatalf("empty file = %#v, %v", f, err)
	}
}

func TestSelectLanguages(t *testing.T) {
	p := &Project{Languages: []string{"fr", "pt-BR"}}

	got, err := p.SelectLanguages([]string{"pt-br"})
	if err != nil || !reflect.DeepEqual(got, []string{"pt-BR"}) {
		t.Fatalf("SelectLanguages = %v, %v", got, err)
	}
	if all, _ := p.SelectLanguages(nil); !reflect.DeepEqual(all, p.Languages) {
		t.Fatalf("SelectLanguages(nil) = %v", all)
	}
	if _, err := p.SelectLanguages([]string{"de"}); err == nil {
		t.Fatalf("unconfigured language should be rejected")
	}
}
