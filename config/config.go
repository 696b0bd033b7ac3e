package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"github.com/minios-linux/tmplsync/catalog"
	"github.com/minios-linux/tmplsync/i18nstore"
	"github.com/minios-linux/tmplsync/reconcile"
	"github.com/minios-linux/tmplsync/syncer"
)

// DefaultLanguages is used when neither the config file nor the templates
// directory names any locale.
var DefaultLanguages = []string{"zh", "zh-TW", "ja", "ko", "es", "fr", "ru", "tr", "ar", "pt-BR"}

// LanguageSource records where the locale list came from.
type LanguageSource string

const (
	LanguagesFromConfig   LanguageSource = "config"
	LanguagesFromFiles    LanguageSource = "detected"
	LanguagesFromDefaults LanguageSource = "default"
)

// Project holds the resolved settings for one templates directory.
type Project struct {
	TemplatesDir string
	// ConfigFile is the config file that was read, or "" when none exists.
	ConfigFile string

	MasterFile string
	StoreFile  string
	UsageFile  string
	// SchemaFile is "" when the embedded schema should be used.
	SchemaFile string

	Languages      []string
	LanguageSource LanguageSource

	AutoSyncFields []string
	LanguageFields []string
	MatchThreshold float64
	FallbackPolicy reconcile.FallbackPolicy
}

// DefaultConfigPath returns the config path used when none is given: the
// file sits next to the templates directory, at the repository root.
func DefaultConfigPath(templatesDir string) string {
	return filepath.Join(templatesDir, "..", FileName)
}

// Load resolves the project for templatesDir. configPath may be empty to
// use DefaultConfigPath.
func Load(templatesDir, configPath string) (*Project, error) {
	absDir, err := filepath.Abs(templatesDir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", templatesDir, err)
	}
	if configPath == "" {
		configPath = DefaultConfigPath(absDir)
	}

	f, err := LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	p := &Project{
		TemplatesDir:   absDir,
		MasterFile:     filepath.Join(absDir, syncer.MasterFileName),
		StoreFile:      filepath.Join(absDir, "..", "scripts", i18nstore.FileName),
		UsageFile:      filepath.Join(absDir, "..", "temp", "usage.csv"),
		AutoSyncFields: append([]string(nil), reconcile.DefaultAutoSyncFields...),
		LanguageFields: append([]string(nil), reconcile.DefaultLanguageFields...),
		MatchThreshold: catalog.DefaultMatchThreshold,
		FallbackPolicy: reconcile.PolicyEnglishFallback,
	}

	if f != nil {
		p.ConfigFile = configPath
		p.apply(f)
	}

	if len(p.Languages) > 0 {
		p.LanguageSource = LanguagesFromConfig
	} else if langs := DetectLanguages(absDir); len(langs) > 0 {
		p.Languages = langs
		p.LanguageSource = LanguagesFromFiles
	} else {
		p.Languages = append([]string(nil), DefaultLanguages...)
		p.LanguageSource = LanguagesFromDefaults
	}
	return p, nil
}

func (p *Project) apply(f *File) {
	if f.MasterFile != "" {
		p.MasterFile = p.resolve(f.MasterFile)
	}
	if f.I18nFile != "" {
		p.StoreFile = p.resolve(f.I18nFile)
	}
	if f.UsageCSV != "" {
		p.UsageFile = p.resolve(f.UsageCSV)
	}
	if f.SchemaFile != "" {
		p.SchemaFile = p.resolve(f.SchemaFile)
	}
	if len(f.Languages) > 0 {
		p.Languages = append([]string(nil), f.Languages...)
	}
	if len(f.AutoSyncFields) > 0 {
		p.AutoSyncFields = append([]string(nil), f.AutoSyncFields...)
	}
	if len(f.LanguageFields) > 0 {
		p.LanguageFields = append([]string(nil), f.LanguageFields...)
	}
	if f.MatchThreshold > 0 {
		p.MatchThreshold = f.MatchThreshold
	}
	if f.FallbackPolicy != "" {
		p.FallbackPolicy = reconcile.FallbackPolicy(f.FallbackPolicy)
	}
}

func (p *Project) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.TemplatesDir, path)
}

// LocaleFile returns the catalog path for lang.
func (p *Project) LocaleFile(lang string) string {
	return syncer.LocaleFile(p.TemplatesDir, lang)
}

// SyncConfig returns a run configuration covering every configured locale.
// Callers adjust the run flags and the locale subset before use.
func (p *Project) SyncConfig() syncer.Config {
	return syncer.Config{
		TemplatesDir:   p.TemplatesDir,
		MasterFile:     p.MasterFile,
		StoreFile:      p.StoreFile,
		UsageFile:      p.UsageFile,
		Languages:      append([]string(nil), p.Languages...),
		StoreLanguages: append([]string(nil), p.Languages...),
		MatchThreshold: p.MatchThreshold,
		Reconcile: reconcile.Options{
			AutoSyncFields: append([]string(nil), p.AutoSyncFields...),
			LanguageFields: append([]string(nil), p.LanguageFields...),
			Policy:         p.FallbackPolicy,
		},
	}
}

// SelectLanguages narrows the locale list to the requested codes, matched
// case-insensitively. Unknown codes are an error.
func (p *Project) SelectLanguages(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return p.Languages, nil
	}
	var out []string
	for _, req := range requested {
		found := ""
		for _, lang := range p.Languages {
			if strings.EqualFold(lang, req) {
				found = lang
				break
			}
		}
		if found == "" {
			return nil, fmt.Errorf("language %q is not configured (configured: %s)", req, strings.Join(p.Languages, ", "))
		}
		out = append(out, found)
	}
	return out, nil
}

// DetectLanguages finds locale codes from the index.<lang>.json files in dir.
func DetectLanguages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var langs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == "index.json" || !strings.HasPrefix(name, "index.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		lang := strings.TrimSuffix(strings.TrimPrefix(name, "index."), ".json")
		if lang == "" || lang == i18nstore.SourceLang {
			continue
		}
		if _, err := language.Parse(lang); err != nil {
			continue
		}
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
