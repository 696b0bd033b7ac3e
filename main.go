// tmplsync keeps localized workflow template catalogs in step with the
// English master catalog and a shared translation store.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/minios-linux/tmplsync/catalog"
	"github.com/minios-linux/tmplsync/config"
	"github.com/minios-linux/tmplsync/fileutil"
	"github.com/minios-linux/tmplsync/i18n"
	"github.com/minios-linux/tmplsync/i18nstore"
	"github.com/minios-linux/tmplsync/langmeta"
	"github.com/minios-linux/tmplsync/reconcile"
	"github.com/minios-linux/tmplsync/syncer"
	"github.com/minios-linux/tmplsync/validate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors, cleared by disableColor
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func disableColor() {
	colorReset, colorRed, colorGreen, colorYellow, colorBlue = "", "", "", "", ""
}

// colorEnabled reports whether f is a terminal and color was not turned off.
func colorEnabled(f *os.File, disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// stderr receives every log line, heading and table.
var stderr io.Writer = os.Stderr

func logInfo(format string, args ...any) {
	fmt.Fprintf(stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

func heading(title string) {
	fmt.Fprintf(stderr, "\n%s%s%s\n", colorBlue, title, colorReset)
	fmt.Fprintln(stderr, strings.Repeat("─", 60))
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	templatesDir string
	configPath   string
	noColor      bool
)

// loadProject resolves the templates directory and its config file.
func loadProject() (*config.Project, error) {
	if configPath != "" && !fileutil.Exists(configPath) {
		return nil, fmt.Errorf("config file %s not found", configPath)
	}
	return config.Load(templatesDir, configPath)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tmplsync",
		Short: "Synchronize localized workflow template catalogs",
		Long: `tmplsync keeps index.<lang>.json catalogs in step with the English
master catalog (index.json) and the shared translation store (i18n.json).

Commands:
  sync        Fix the master, collect translations and rebuild every locale
  status      Show locales, store statistics and pending translations
  validate    Check catalogs against the schema and each other

Configuration is read from .tmplsync.yaml next to the templates directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			i18n.Init("")
			if !colorEnabled(os.Stderr, noColor) {
				disableColor()
			}
		},
	}

	root.PersistentFlags().StringVar(&templatesDir, "templates-dir", ".", "Directory holding index.json and the locale catalogs")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <templates-dir>/../"+config.FileName+")")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newSyncCmd(),
		newStatusCmd(),
		newValidateCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tmplsync version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
			fmt.Printf("  locale:    %s\n", i18n.Language())
		},
	}
}

// ---------------------------------------------------------------------------
// sync
// ---------------------------------------------------------------------------

type syncArgs struct {
	dryRun        bool
	force         bool
	policy        string
	langs         []string
	skipMasterFix bool
}

func newSyncCmd() *cobra.Command {
	var a syncArgs

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize locale catalogs with the master catalog",
		Long: `Run one synchronization pass:

  1. derive missing vram values and apply usage counts in index.json
  2. collect hand-entered translations from the locale catalogs into i18n.json
  3. rebuild every index.<lang>.json from the master and the store
  4. refresh the pending-translation ledger in i18n.json

Unchanged files are not rewritten. Use --dry-run to preview.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(a)
		},
	}

	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Compute changes without writing any file")
	cmd.Flags().BoolVar(&a.force, "force-sync-language-fields", false, "Overwrite translated fields with the English master values")
	cmd.Flags().StringVar(&a.policy, "fallback-policy", "", "Value for untranslated fields: english or preserve (default from config)")
	cmd.Flags().StringArrayVar(&a.langs, "lang", nil, "Only synchronize this locale (repeatable)")
	cmd.Flags().BoolVar(&a.skipMasterFix, "skip-master-fix", false, "Leave index.json untouched")

	return cmd
}

func runSync(a syncArgs) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	langs, err := proj.SelectLanguages(a.langs)
	if err != nil {
		return err
	}

	cfg := proj.SyncConfig()
	cfg.Languages = langs
	cfg.DryRun = a.dryRun
	cfg.SkipMasterFix = a.skipMasterFix
	cfg.Reconcile.ForceSyncLanguageFields = a.force
	if a.policy != "" {
		policy, err := reconcile.ParsePolicy(a.policy)
		if err != nil {
			return err
		}
		cfg.Reconcile.Policy = policy
	}
	cfg.OnLog = logInfo

	logInfo("Templates: %s", proj.TemplatesDir)
	logInfo("Languages (%s): %s", proj.LanguageSource, strings.Join(langs, ", "))
	if a.dryRun {
		logWarning("%s", i18n.T("Dry run: no files will be written"))
	}

	report, err := syncer.Run(cfg)
	if errors.Is(err, syncer.ErrLocked) {
		return fmt.Errorf("%w (%s)", err, filepath.Join(proj.TemplatesDir, syncer.LockFileName))
	}
	if err != nil {
		return err
	}

	printSyncReport(report)
	return nil
}

func printSyncReport(r *syncer.Report) {
	for _, s := range r.Skipped {
		logWarning("Skipped %s: %v", filepath.Base(s.File), s.Err)
	}

	if len(r.MasterFixed) > 0 {
		logInfo("vram derived from size for %d template(s): %s", len(r.MasterFixed), strings.Join(r.MasterFixed, ", "))
	}
	if len(r.UsageUpdated) > 0 {
		logInfo("Usage updated for %d template(s)", len(r.UsageUpdated))
	}
	if r.Collected > 0 || r.CollectedCategories > 0 {
		logInfo("Collected %d template and %d category translation(s) from locale catalogs", r.Collected, r.CollectedCategories)
	}

	cols := []column{
		leftColumn(i18n.T("Locale")), leftColumn(i18n.T("File")),
		rightColumn(i18n.T("Added")), rightColumn(i18n.T("Updated")),
		rightColumn(i18n.T("Unchanged")), rightColumn(i18n.T("Removed")),
		rightColumn(i18n.T("Translated")),
	}
	var rows [][]string
	for _, l := range r.Locales {
		rows = append(rows, []string{
			langmeta.Label(l.Lang),
			fileState(l, r.DryRun),
			strconv.Itoa(len(l.Added)),
			strconv.Itoa(len(l.Updated)),
			strconv.Itoa(l.Unchanged),
			strconv.Itoa(len(l.Removed)),
			strconv.Itoa(l.Translated),
		})
	}
	added, updated, removed := r.Totals()
	var footer []string
	if len(r.Locales) > 1 {
		footer = []string{i18n.T("Total"), "", strconv.Itoa(added), strconv.Itoa(updated), "", strconv.Itoa(removed), ""}
	}
	printTable(i18n.T("Synchronization Summary"), cols, rows, footer)

	for _, l := range r.Locales {
		for _, name := range l.Removed {
			logInfo("%s: removed template %s", l.Lang, name)
		}
		if len(l.RemovedCategories) > 0 {
			logInfo("%s: dropped categories %s", l.Lang, strings.Join(l.RemovedCategories, ", "))
		}
	}

	if len(r.NewTags) > 0 {
		logWarning("New tags need translation: %s", strings.Join(r.NewTags, ", "))
	}
	if len(r.NewCategoryTitles) > 0 {
		logWarning("New category titles need translation: %s", strings.Join(r.NewCategoryTitles, ", "))
	}
	if len(r.NewCategoryFields) > 0 {
		logWarning("New category labels need translation: %s", strings.Join(r.NewCategoryFields, ", "))
	}
	if len(r.UnusedTags) > 0 {
		logInfo("Tags no longer used by any template: %s", strings.Join(r.UnusedTags, ", "))
	}
	if len(r.UnusedCategories) > 0 {
		logInfo("Category titles and labels no longer used: %s", strings.Join(r.UnusedCategories, ", "))
	}
	if n := len(r.Pending); n > 0 {
		logWarning(i18n.N("%d template still needs translation", "%d templates still need translation", n), n)
	}

	switch {
	case r.DryRun:
		logSuccess("Dry run complete: %d added, %d updated, %d removed", added, updated, removed)
	case r.StoreChanged:
		logSuccess("Sync complete: %d added, %d updated, %d removed; store saved to %s", added, updated, removed, r.StoreFile)
	default:
		logSuccess("Sync complete: %d added, %d updated, %d removed", added, updated, removed)
	}
}

func fileState(l *syncer.LocaleReport, dryRun bool) string {
	switch {
	case l.Created && dryRun:
		return i18n.T("would create")
	case l.Created:
		return i18n.T("created")
	case l.Changed && dryRun:
		return i18n.T("would update")
	case l.Changed:
		return i18n.T("updated")
	}
	return i18n.T("unchanged")
}

// ---------------------------------------------------------------------------
// status (read-only)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show locales, store statistics and pending translations",
		Long: `Show the resolved project settings, the state of every locale catalog
and the translation store's pending ledger. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	proj, err := loadProject()
	if err != nil {
		return err
	}

	heading(i18n.T("Project"))
	fmt.Fprintf(stderr, "  Templates:  %s\n", proj.TemplatesDir)
	configDesc := proj.ConfigFile
	if configDesc == "" {
		configDesc = "none (defaults)"
	}
	fmt.Fprintf(stderr, "  Config:     %s\n", configDesc)
	fmt.Fprintf(stderr, "  Master:     %s\n", proj.MasterFile)
	fmt.Fprintf(stderr, "  Store:      %s\n", proj.StoreFile)
	if fileutil.Exists(proj.UsageFile) {
		fmt.Fprintf(stderr, "  Usage:      %s\n", proj.UsageFile)
	}
	fmt.Fprintf(stderr, "  Languages:  %s (%s)\n", describeLanguages(proj.Languages), proj.LanguageSource)
	fmt.Fprintf(stderr, "  Fallback:   %s\n", proj.FallbackPolicy)

	master, err := catalog.Load(proj.MasterFile)
	if err != nil {
		return err
	}
	store, err := i18nstore.Load(proj.StoreFile, proj.Languages)
	if err != nil {
		return err
	}

	total := master.TemplateCount()
	pending := pendingByLanguage(store.Pending())

	cols := []column{
		leftColumn(i18n.T("Locale")), leftColumn(i18n.T("File")),
		rightColumn(i18n.T("Templates")), rightColumn(i18n.T("Pending")), rightColumn(i18n.T("Complete")),
	}
	var rows [][]string
	needsSync := false
	for _, lang := range proj.Languages {
		loc, exists, err := catalog.LoadOptional(proj.LocaleFile(lang))
		state := i18n.T("ok")
		switch {
		case err != nil:
			state = i18n.T("invalid")
			needsSync = true
		case !exists:
			state = i18n.T("missing")
			needsSync = true
		case loc.TemplateCount() != total:
			needsSync = true
		}
		rows = append(rows, []string{
			langmeta.Label(lang),
			state,
			fmt.Sprintf("%d/%d", loc.TemplateCount(), total),
			strconv.Itoa(pending[lang]),
			percent(total-pending[lang], total),
		})
	}
	printTable(i18n.T("Locale Catalogs"), cols, rows, nil)

	templates, tags, categories := store.Stats()
	heading(i18n.T("Translation Store"))
	fmt.Fprintf(stderr, "  Templates:  %d\n", templates)
	fmt.Fprintf(stderr, "  Tags:       %d\n", tags)
	fmt.Fprintf(stderr, "  Categories: %d\n", categories)
	fmt.Fprintf(stderr, "  Pending:    %d\n", len(store.Pending()))
	fmt.Fprintf(stderr, "  vram<-size: %d\n", len(store.VRAMSizeUpdates()))
	fmt.Fprintln(stderr)

	if needsSync {
		logInfo("Run 'tmplsync sync' to bring the locale catalogs up to date.")
	}
	if len(store.Pending()) > 0 {
		logInfo("Fill the pending entries in %s, then run 'tmplsync sync'.", filepath.Base(proj.StoreFile))
	}
	return nil
}

// describeLanguages lists locale codes with their English names:
// "fr (French), ja (Japanese)".
func describeLanguages(langs []string) string {
	parts := make([]string, 0, len(langs))
	for _, lang := range langs {
		if name := langmeta.Resolve(lang).English; name != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", lang, name))
		} else {
			parts = append(parts, lang)
		}
	}
	return strings.Join(parts, ", ")
}

// pendingByLanguage counts pending templates per locale.
func pendingByLanguage(ledger map[string]i18nstore.Pending) map[string]int {
	counts := make(map[string]int)
	for _, p := range ledger {
		for _, lang := range p.MissingLanguages {
			counts[lang]++
		}
	}
	return counts
}

func percent(done, total int) string {
	if total <= 0 {
		return "-"
	}
	if done < 0 {
		done = 0
	}
	return fmt.Sprintf("%d%%", done*100/total)
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

type validateArgs struct {
	langs      []string
	checkFiles bool
}

func newValidateCmd() *cobra.Command {
	var a validateArgs

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate master and locale catalogs",
		Long: `Check index.json and every locale catalog against the catalog schema,
report duplicate template names, and compare each locale's template set and
structural fields (mediaType, mediaSubtype, thumbnailVariant, models, date)
with the master. Exits with status 1 when errors are found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(a)
		},
	}

	cmd.Flags().StringArrayVar(&a.langs, "lang", nil, "Only validate this locale (repeatable)")
	cmd.Flags().BoolVar(&a.checkFiles, "files", false, "Also check workflow and thumbnail files")

	return cmd
}

func runValidate(a validateArgs) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	langs, err := proj.SelectLanguages(a.langs)
	if err != nil {
		return err
	}

	report, err := validate.Run(validate.Options{
		TemplatesDir: proj.TemplatesDir,
		MasterFile:   proj.MasterFile,
		SchemaFile:   proj.SchemaFile,
		Languages:    langs,
		CheckFiles:   a.checkFiles,
		OnLog:        logInfo,
	})
	if err != nil {
		return err
	}

	if len(report.Issues) == 0 {
		logSuccess("%d catalog(s) valid", len(report.Checked))
		return nil
	}

	cols := []column{
		leftColumn(i18n.T("Severity")), leftColumn(i18n.T("File")),
		leftColumn(i18n.T("Template")), leftColumn(i18n.T("Message")),
	}
	var rows [][]string
	for _, issue := range report.Issues {
		rows = append(rows, []string{
			severityLabel(issue.Severity),
			filepath.Base(issue.File),
			issue.Template,
			issue.Message,
		})
	}
	printTable(i18n.T("Validation Issues"), cols, rows, nil)

	if n := report.Errors(); n > 0 {
		return fmt.Errorf("%d error(s), %d warning(s) in %d catalog(s)", n, report.Warnings(), len(report.Checked))
	}
	logWarning("%d warning(s) in %d catalog(s)", report.Warnings(), len(report.Checked))
	return nil
}

func severityLabel(s validate.Severity) string {
	if s == validate.SeverityError {
		return colorRed + i18n.T("error") + colorReset
	}
	return colorYellow + i18n.T("warning") + colorReset
}
