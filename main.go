// proptrans translates Java .properties files incrementally, keeping their
// layout, with optional per-language glossaries.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/minios-linux/proptrans/cache"
	"github.com/minios-linux/proptrans/config"
	"github.com/minios-linux/proptrans/gcp"
	"github.com/minios-linux/proptrans/glossary"
	"github.com/minios-linux/proptrans/i18n"
	"github.com/minios-linux/proptrans/libre"
	"github.com/minios-linux/proptrans/lockfile"
	"github.com/minios-linux/proptrans/propfile"
	"github.com/minios-linux/proptrans/settings"
	"github.com/minios-linux/proptrans/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.Bold, color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.Bold, color.FgCyan).SprintFunc()
)

// The log helpers translate format before formatting, so every message
// passed to them is a catalogue msgid.

func logInfo(format string, args ...any) {
	if quiet {
		return
	}
	fmt.Fprintf(color.Error, "%s %s\n", blue("[INFO]"), i18n.Tf(format, args...))
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(color.Error, "%s %s\n", green("[OK]"), i18n.Tf(format, args...))
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(color.Error, "%s %s\n", yellow("[WARN]"), i18n.Tf(format, args...))
}

func logError(format string, args ...any) {
	fmt.Fprintf(color.Error, "%s %s\n", red("[ERROR]"), i18n.Tf(format, args...))
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	quiet   bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "proptrans",
		Short: "Incremental translation of Java .properties files",
		Long: `proptrans translates a source .properties file into target languages.

Only entries that changed since the last run are sent to the translation
service; everything else is reused from the per-language cache. Comments,
blank lines, key order and multi-line layout are kept.

Commands:
  init        Create a .proptrans.yaml template
  status      Show per-language state of the translations
  translate   Translate changed entries into all target languages
  glossary    Manage Cloud Translation glossaries
  auth        Manage translator API keys

Providers:
  google          Google Cloud Translation v3 (with glossaries)
  libretranslate  LibreTranslate server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print warnings and errors")

	root.AddCommand(
		newInitCmd(),
		newStatusCmd(),
		newTranslateCmd(),
		newGlossaryCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
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
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("proptrans version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

const projectTemplate = `# proptrans project configuration
provider: google          # google | libretranslate
source_lang: en
input: src/main/resources/messages.properties
output_format: src/main/resources/messages_%s.properties
previous: .proptrans/messages.previous.properties
languages: [fr, de]

google:
  project_id: my-project
  location: global
  bucket: my-glossaries

glossary:
  enabled: true
  file_format: glossary-%s.csv
  name_format: glossary-%s
  timeout: 5m

# libretranslate:
#   url: http://localhost:5000
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a .proptrans.yaml template",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := writeProjectTemplate(rootDir)
			if err != nil {
				return err
			}
			logSuccess("Created %s", path)
			return nil
		},
	}
}

func writeProjectTemplate(dir string) (string, error) {
	path := filepath.Join(dir, config.ProjectFileName)
	if fileExists(path) {
		return "", fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(projectTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	langs          []string
	apiKey         string
	verbose        bool
	deleteGlossary bool
	maxConcurrent  int
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate changed entries into all target languages",
		Long: `Translate the input .properties file into every target language.

Entries whose key and content are unchanged since the previous run are
reused from the cache; the rest are translated. When a glossary for the
language exists, or can be created from the glossary CSV in the bucket,
it is applied. After the run the input is copied to the 'previous' path.

Examples:
  proptrans translate
  proptrans translate --lang fr,de --verbose
  proptrans translate --delete-glossary`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), a)
		},
	}

	cmd.Flags().StringSliceVar(&a.langs, "lang", nil, "Languages to translate (comma-separated, default: all configured)")
	cmd.Flags().StringVar(&a.apiKey, "api-key", "", "API key for HTTP translators (or PROPTRANS_API_KEY)")
	cmd.Flags().BoolVar(&a.verbose, "verbose", false, "Log every entry")
	cmd.Flags().BoolVar(&a.deleteGlossary, "delete-glossary", false, "Delete the glossaries of the selected languages and exit")
	cmd.Flags().IntVar(&a.maxConcurrent, "max-concurrent", 0, "Languages translated at once (default: max_concurrent from config)")

	return cmd
}

func runTranslate(ctx context.Context, a translateArgs) error {
	pf, err := config.Load(rootDir)
	if err != nil {
		return err
	}

	langs, err := selectLanguages(pf, a.langs)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	b, err := openBackends(ctx, pf, a.apiKey)
	if err != nil {
		return err
	}
	defer b.Close()

	if a.deleteGlossary {
		return deleteGlossaries(ctx, b, langs)
	}

	input, err := propfile.ParseFile(pf.InputPath())
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	var previous *propfile.Document
	if pf.Previous != "" && fileExists(pf.PreviousPath()) {
		if previous, err = propfile.ParseFile(pf.PreviousPath()); err != nil {
			return fmt.Errorf("reading previous input: %w", err)
		}
	} else {
		logInfo("No previous copy of the input, every entry counts as changed")
	}

	lock, err := lockfile.Load(pf.Root())
	if err != nil {
		return err
	}

	tasks := make([]translate.Task, 0, len(langs))
	for _, lang := range langs {
		task := translate.Task{
			Lang:       lang,
			LangName:   langName(lang),
			Input:      input,
			Previous:   previous,
			OutputPath: pf.OutputPath(lang),
		}
		if fileExists(task.OutputPath) {
			if task.Existing, err = propfile.ParseFile(task.OutputPath); err != nil {
				logWarning("Ignoring unreadable output %s: %v", task.OutputPath, err)
			}
		}
		tasks = append(tasks, task)
	}

	logInfo("Translating: %s", strings.Join(langs, ", "))

	_, props, _ := input.Stats()
	bar := newProgressBar(props*len(tasks), !quiet && !a.verbose)

	maxConcurrent := pf.MaxConcurrent
	if a.maxConcurrent > 0 {
		maxConcurrent = a.maxConcurrent
	}
	opts := translate.Options{
		SourceLang:    pf.SourceLang,
		MaxConcurrent: maxConcurrent,
		Verbose:       a.verbose,
		OnProgress: func(lang string, done, total int) {
			if bar != nil {
				bar.Add(1)
			}
		},
		OnLog:   func(format string, args ...any) { logInfo(format, args...) },
		OnError: func(format string, args ...any) { logError(format, args...) },
	}
	if bar != nil {
		opts.OnLog = nil
		b.muted.Store(true)
	}

	var resolver translate.GlossaryResolver
	if b.glossaries != nil {
		resolver = b.glossaries
	}
	orch := translate.New(b.translator, resolver, cache.NewFileStore(pf.CachePath()), lock, opts)
	results, runErr := orch.RunAll(ctx, tasks)
	if bar != nil {
		bar.Exit()
	}

	if err := lock.Save(); err != nil {
		logError("Saving %s: %v", lock.Path(), err)
	}

	for _, res := range results {
		if res != nil {
			reportResult(res)
		}
	}

	if ctx.Err() != nil {
		logWarning("Translation interrupted, finished languages were saved")
		return nil
	}

	if pf.Previous != "" {
		if err := rotatePrevious(pf.InputPath(), pf.PreviousPath()); err != nil {
			logError("Updating previous copy: %v", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	logSuccess("Translation complete!")
	return nil
}

// selectLanguages returns the --lang values, or all configured languages.
func selectLanguages(pf *config.ProjectFile, flagLangs []string) ([]string, error) {
	var langs []string
	seen := make(map[string]bool)
	for _, l := range flagLangs {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		if _, err := language.Parse(l); err != nil {
			return nil, fmt.Errorf("invalid language code %q", l)
		}
		seen[l] = true
		langs = append(langs, l)
	}
	if len(langs) > 0 {
		return langs, nil
	}
	langs = pf.AllLanguages()
	if len(langs) == 0 {
		return nil, errors.New("no target languages: set 'languages' in " + config.ProjectFileName + " or pass --lang")
	}
	return langs, nil
}

func newProgressBar(total int, enabled bool) *progressbar.ProgressBar {
	if !enabled || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(color.Error),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]translating[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func reportResult(res *translate.Result) {
	if res.Skipped {
		logWarning("%s: source has no entries, nothing written", res.Lang)
		return
	}
	line := res.Lang + ": " + fmt.Sprintf(i18n.N("%d key translated", "%d keys translated", res.Translated), res.Translated)
	line += ", " + fmt.Sprintf(i18n.N("%d reused", "%d reused", res.Reused), res.Reused)
	if res.Glossary.Name != "" {
		line += ", " + i18n.Tf("glossary %s", strings.ToLower(res.Glossary.State.String()))
	}
	if res.Failed > 0 {
		logWarning("%s, %d failed: %s", line, res.Failed, strings.Join(res.FailedKeys, ", "))
		return
	}
	logSuccess("%s", line)
}

// rotatePrevious copies the input over the previous copy so the next run
// diffs against what was translated now.
func rotatePrevious(input, previous string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(previous), 0755); err != nil {
		return err
	}
	return cache.WriteAtomic(previous, data)
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-language state of the translations",
		Long: `Show, for every target language, whether the output exists, how many
entries are cached, and how many source keys changed since the language
was last translated. Does not modify any files or contact any service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := config.Load(rootDir)
			if err != nil {
				return err
			}
			return showStatus(pf)
		},
	}
}

func showStatus(pf *config.ProjectFile) error {
	input, err := propfile.ParseFile(pf.InputPath())
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	lock, err := lockfile.Load(pf.Root())
	if err != nil {
		return err
	}
	store := cache.NewFileStore(pf.CachePath())
	_, props, _ := input.Stats()

	fmt.Fprintf(color.Error, "%s\n", cyan(i18n.T("Project")))
	fmt.Fprintf(color.Error, "  %-10s %s\n", i18n.T("Provider:"), pf.Provider)
	fmt.Fprintf(color.Error, "  %-10s %s (%s)\n", i18n.T("Input:"), pf.Input, fmt.Sprintf(i18n.N("%d key", "%d keys", props), props))
	if pf.Previous != "" {
		fmt.Fprintf(color.Error, "  %-10s %s (%s)\n", i18n.T("Previous:"), pf.Previous, presence(pf.PreviousPath()))
	}
	fmt.Fprintf(color.Error, "  %-10s %s\n\n", i18n.T("Lock:"), lock.Summary())

	langs := pf.AllLanguages()
	if len(langs) == 0 {
		logInfo("No target languages configured or detected")
		return nil
	}

	w := langColumnWidth(langs)
	fmt.Fprintf(color.Error, "%-*s  %-8s %-8s %-8s %-10s %s\n", w, i18n.T("Lang"), i18n.T("Output"), i18n.T("Cached"), i18n.T("Changed"), i18n.T("Glossary"), i18n.T("Up to date"))
	fmt.Fprintln(color.Error, strings.Repeat("─", w+60))
	for _, lang := range langs {
		output := presence(pf.OutputPath(lang))
		cached, err := store.Count(lang)
		if err != nil {
			cached = 0
		}
		changed := len(lock.ChangedKeys(lang, input))
		gloss := "-"
		if rec, ok := lock.Glossary(lang); ok {
			gloss = strings.ToLower(rec.State)
		}
		percent := 0
		if props > 0 {
			percent = (props - changed) * 100 / props
		}
		fmt.Fprintf(color.Error, "%-*s  %-8s %-8d %-8d %-10s %s\n", w, lang, output, cached, changed, gloss, progressCell(percent, 20))
	}
	fmt.Fprintln(color.Error)
	return nil
}

// progressCell renders a coloured bar followed by the percentage.
func progressCell(percent, width int) string {
	percent = max(0, min(100, percent))
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	paint := red
	switch {
	case percent == 100:
		paint = green
	case percent >= 50:
		paint = yellow
	}
	return fmt.Sprintf("%s %3d%%", paint(bar), percent)
}

// presence describes whether the file at path exists.
func presence(path string) string {
	if fileExists(path) {
		return i18n.T("present")
	}
	return i18n.T("missing")
}

func langColumnWidth(langs []string) int {
	w := len([]rune(i18n.T("Lang")))
	for _, l := range langs {
		w = max(w, len(l))
	}
	return w
}

// langName returns the language's name in itself, or the code.
func langName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return code
}

// ---------------------------------------------------------------------------
// Backends
// ---------------------------------------------------------------------------

type backends struct {
	translator translate.Translator
	// glossaries is nil when glossaries are disabled.
	glossaries *glossary.Lifecycle
	uploader   glossary.Uploader
	closers    []func() error
	// muted silences glossary progress messages while a progress bar owns
	// the terminal line.
	muted atomic.Bool
}

func (b *backends) logGlossary(format string, args ...any) {
	if !b.muted.Load() {
		logInfo(format, args...)
	}
}

func (b *backends) Close() {
	for _, c := range b.closers {
		c()
	}
}

func openBackends(ctx context.Context, pf *config.ProjectFile, apiKey string) (*backends, error) {
	switch pf.Provider {
	case config.ProviderLibreTranslate:
		if apiKey == "" {
			apiKey = pf.LibreTranslate.APIKey
		}
		key := settings.ResolveAPIKey(pf.Provider, apiKey)
		return &backends{translator: libre.New(pf.LibreTranslate.URL, key)}, nil

	case config.ProviderGoogle:
		client, err := gcp.NewClient(ctx, pf.GlossaryParent())
		if err != nil {
			return nil, err
		}
		b := &backends{translator: client, closers: []func() error{client.Close}}
		if !pf.GlossaryEnabled() {
			return b, nil
		}
		bucket, err := gcp.NewBucket(ctx, pf.Google.Bucket)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, bucket.Close)
		b.uploader = bucket

		var lc *glossary.Lifecycle
		inspector := glossary.CSVInspector{Open: bucket.Opener(func(lang string) string { return lc.Object(lang) })}
		lc = glossary.New(client, inspector, glossary.Config{
			Parent:     pf.GlossaryParent(),
			NameFormat: pf.Glossary.NameFormat,
			FileFormat: pf.Glossary.FileFormat,
			Bucket:     pf.Google.Bucket,
			SourceLang: pf.SourceLang,
			Timeout:    pf.Glossary.Timeout,
			OnLog:      b.logGlossary,
			OnError:    func(format string, args ...any) { logError(format, args...) },
		})
		b.glossaries = lc
		return b, nil
	}
	return nil, fmt.Errorf("unknown provider %q", pf.Provider)
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// fileExists reports whether path is an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
