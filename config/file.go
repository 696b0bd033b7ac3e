// Package config resolves tmplsync settings from .tmplsync.yaml and the templates directory.
//
// The file is optional. When present it overrides the built-in defaults for
// the catalog paths, the locale list and the synchronization rules; command
// line flags override the file in turn.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/tmplsync/i18nstore"
	"github.com/minios-linux/tmplsync/reconcile"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .tmplsync.yaml structure. Relative paths are
// resolved against the templates directory.
type File struct {
	// MasterFile is the English master catalog (default "index.json").
	MasterFile string `yaml:"master_file,omitempty"`
	// I18nFile is the translation store (default "../scripts/i18n.json").
	I18nFile string `yaml:"i18n_file,omitempty"`
	// UsageCSV is the optional usage export (default "../temp/usage.csv").
	UsageCSV string `yaml:"usage_csv,omitempty"`
	// Languages lists the locale codes to keep in sync. Empty means detect
	// from the index.<lang>.json files present.
	Languages []string `yaml:"languages,omitempty"`
	// AutoSyncFields overrides the master-authoritative field list.
	AutoSyncFields []string `yaml:"auto_sync_fields,omitempty"`
	// LanguageFields overrides the translated field list.
	LanguageFields []string `yaml:"language_fields,omitempty"`
	// MatchThreshold is the category overlap threshold in (0, 1].
	MatchThreshold float64 `yaml:"match_threshold,omitempty"`
	// FallbackPolicy is "english" or "preserve".
	FallbackPolicy string `yaml:"fallback_policy,omitempty"`
	// SchemaFile replaces the embedded catalog JSON schema.
	SchemaFile string `yaml:"schema_file,omitempty"`
}

func init() {
	// Report validation errors under the YAML key names.
	validation.ErrorTag = "yaml"
}

// FileName is the default config file name.
const FileName = ".tmplsync.yaml"

// LoadFile reads and validates a config file. Returns nil if the file does
// not exist. Unknown keys are rejected.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Validate checks field values.
func (f File) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Languages, validation.Each(validation.By(checkLanguage))),
		validation.Field(&f.AutoSyncFields, validation.Each(validation.Required)),
		validation.Field(&f.LanguageFields, validation.Each(validation.Required), validation.By(func(any) error {
			return checkDisjoint(f.autoSyncFields(), f.languageFields())
		})),
		validation.Field(&f.MatchThreshold, validation.Min(0.0).Exclusive(), validation.Max(1.0)),
		validation.Field(&f.FallbackPolicy, validation.In(
			string(reconcile.PolicyEnglishFallback),
			string(reconcile.PolicyPreserveTarget),
		)),
	)
}

// checkLanguage accepts BCP 47 tags other than the source language.
func checkLanguage(value any) error {
	code, _ := value.(string)
	if code == "" {
		return validation.NewError("validation_language_empty", "must not be empty")
	}
	if code == i18nstore.SourceLang {
		return validation.NewError("validation_language_source", "the source language cannot be a locale")
	}
	if _, err := language.Parse(code); err != nil {
		return validation.NewError("validation_language_invalid", fmt.Sprintf("%q is not a valid language tag", code))
	}
	return nil
}

func (f File) autoSyncFields() []string {
	if len(f.AutoSyncFields) == 0 {
		return reconcile.DefaultAutoSyncFields
	}
	return f.AutoSyncFields
}

func (f File) languageFields() []string {
	if len(f.LanguageFields) == 0 {
		return reconcile.DefaultLanguageFields
	}
	return f.LanguageFields
}

func checkDisjoint(autoSync, langFields []string) error {
	set := make(map[string]bool, len(autoSync))
	for _, f := range autoSync {
		set[f] = true
	}
	for _, f := range langFields {
		if set[f] {
			return validation.NewError("validation_field_overlap", fmt.Sprintf("%q cannot be both auto-synced and translated", f))
		}
	}
	return nil
}
