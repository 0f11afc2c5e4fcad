// Package config loads .proptrans.yaml, the project configuration, and
// the optional .env file next to it.
//
// Values from the environment override the file, so credentials and
// per-machine settings can stay out of version control.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// Provider IDs.
const (
	ProviderGoogle         = "google"
	ProviderLibreTranslate = "libretranslate"
)

// ProjectFile is the top-level .proptrans.yaml structure.
type ProjectFile struct {
	// Provider selects the translation backend (default "google").
	Provider string `yaml:"provider,omitempty"`
	// SourceLang is the source language code (default "en").
	SourceLang string `yaml:"source_lang,omitempty"`
	// Languages is the target language list. When empty, languages are
	// detected from existing output files.
	Languages []string `yaml:"languages,omitempty"`
	// Input is the source .properties file relative to the project root.
	Input string `yaml:"input"`
	// OutputFormat names the output file of a language; "%s" is replaced
	// by the language code.
	OutputFormat string `yaml:"output_format"`
	// Previous is where a copy of the input is kept after each run, to
	// detect changes on the next one. Empty disables change detection.
	Previous string `yaml:"previous,omitempty"`
	// CacheDir holds the per-language translation caches
	// (default ".proptrans/cache").
	CacheDir string `yaml:"cache_dir,omitempty"`
	// MaxConcurrent is the number of languages translated at once
	// (default 1).
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	Google         GoogleConfig   `yaml:"google,omitempty"`
	Glossary       GlossaryConfig `yaml:"glossary,omitempty"`
	LibreTranslate LibreConfig    `yaml:"libretranslate,omitempty"`

	root string
}

// GoogleConfig configures Cloud Translation and Cloud Storage.
type GoogleConfig struct {
	ProjectID string `yaml:"project_id,omitempty"`
	// Location is the Translation API location (default "global").
	Location string `yaml:"location,omitempty"`
	// Bucket holds the glossary CSV files.
	Bucket string `yaml:"bucket,omitempty"`
}

// GlossaryConfig configures per-language glossaries.
type GlossaryConfig struct {
	// Enabled turns glossary use on or off (default true).
	Enabled *bool `yaml:"enabled,omitempty"`
	// FileFormat names the CSV object of a language in the bucket
	// (default "glossary-%s.csv").
	FileFormat string `yaml:"file_format,omitempty"`
	// NameFormat names the glossary resource of a language
	// (default "glossary-%s").
	NameFormat string `yaml:"name_format,omitempty"`
	// Timeout bounds the wait for a glossary creation (default 5m).
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LibreConfig configures a LibreTranslate server.
type LibreConfig struct {
	URL string `yaml:"url,omitempty"`
	// APIKey is usually set through PROPTRANS_API_KEY or the auth store
	// rather than in the file.
	APIKey string `yaml:"api_key,omitempty"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// ProjectFileName is the default config file name.
const ProjectFileName = ".proptrans.yaml"

// EnvFileName is the optional dotenv file loaded before the config.
const EnvFileName = ".env"

// ErrNoProjectFile is returned when the project root has no
// .proptrans.yaml.
var ErrNoProjectFile = errors.New("no " + ProjectFileName + " found")

// Load loads .env (when present) and .proptrans.yaml from rootDir, applies
// defaults and environment overrides, and validates the result.
func Load(rootDir string) (*ProjectFile, error) {
	envPath := filepath.Join(rootDir, EnvFileName)
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envPath, err)
		}
	}

	path := filepath.Join(rootDir, ProjectFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoProjectFile, rootDir)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	pf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	pf.root = rootDir
	pf.applyEnv(os.Getenv)

	if err := pf.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pf, nil
}

// Parse decodes .proptrans.yaml content and applies defaults. It does not
// validate.
func Parse(data []byte) (*ProjectFile, error) {
	var pf ProjectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, err
	}
	pf.applyDefaults()
	return &pf, nil
}

func (pf *ProjectFile) applyDefaults() {
	if pf.Provider == "" {
		pf.Provider = ProviderGoogle
	}
	if pf.SourceLang == "" {
		pf.SourceLang = "en"
	}
	if pf.CacheDir == "" {
		pf.CacheDir = filepath.Join(".proptrans", "cache")
	}
	if pf.MaxConcurrent <= 0 {
		pf.MaxConcurrent = 1
	}
	if pf.Google.Location == "" {
		pf.Google.Location = "global"
	}
	if pf.Glossary.FileFormat == "" {
		pf.Glossary.FileFormat = "glossary-%s.csv"
	}
	if pf.Glossary.NameFormat == "" {
		pf.Glossary.NameFormat = "glossary-%s"
	}
	if pf.Glossary.Timeout <= 0 {
		pf.Glossary.Timeout = 5 * time.Minute
	}
}

// Validate checks required fields and language codes.
func (pf *ProjectFile) Validate() error {
	if pf.Input == "" {
		return fmt.Errorf("input is required")
	}
	if !strings.Contains(pf.OutputFormat, "%s") {
		return fmt.Errorf("output_format %q must contain %%s", pf.OutputFormat)
	}
	if _, err := language.Parse(pf.SourceLang); err != nil {
		return fmt.Errorf("source_lang %q: %w", pf.SourceLang, err)
	}
	for _, l := range pf.Languages {
		if _, err := language.Parse(l); err != nil {
			return fmt.Errorf("invalid language code %q: %w", l, err)
		}
	}

	switch pf.Provider {
	case ProviderGoogle:
		if pf.Google.ProjectID == "" {
			return fmt.Errorf("google.project_id is required for provider %q", pf.Provider)
		}
		if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS is not set")
		}
		if pf.GlossaryEnabled() && pf.Google.Bucket == "" {
			return fmt.Errorf("google.bucket is required when glossaries are enabled")
		}
	case ProviderLibreTranslate:
		if pf.LibreTranslate.URL == "" {
			return fmt.Errorf("libretranslate.url is required for provider %q", pf.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q (valid: %s, %s)", pf.Provider, ProviderGoogle, ProviderLibreTranslate)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Root returns the project root the file was loaded from.
func (pf *ProjectFile) Root() string {
	if pf.root == "" {
		return "."
	}
	return pf.root
}

func (pf *ProjectFile) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(pf.Root(), p)
}

// InputPath returns the source file path.
func (pf *ProjectFile) InputPath() string { return pf.abs(pf.Input) }

// PreviousPath returns the backup path, or "" when disabled.
func (pf *ProjectFile) PreviousPath() string { return pf.abs(pf.Previous) }

// CachePath returns the cache directory.
func (pf *ProjectFile) CachePath() string { return pf.abs(pf.CacheDir) }

// OutputPath returns the output file of lang.
func (pf *ProjectFile) OutputPath(lang string) string {
	return pf.abs(fmt.Sprintf(pf.OutputFormat, lang))
}

// GlossaryEnabled reports whether glossaries are used. Only the google
// provider supports them.
func (pf *ProjectFile) GlossaryEnabled() bool {
	if pf.Provider != ProviderGoogle {
		return false
	}
	return pf.Glossary.Enabled == nil || *pf.Glossary.Enabled
}

// GlossaryParent returns the resource prefix glossaries live under.
func (pf *ProjectFile) GlossaryParent() string {
	return fmt.Sprintf("projects/%s/locations/%s", pf.Google.ProjectID, pf.Google.Location)
}

// AllLanguages returns the configured languages, or the languages of
// existing output files when none are configured.
func (pf *ProjectFile) AllLanguages() []string {
	if len(pf.Languages) > 0 {
		return pf.Languages
	}
	return DetectLanguages(pf.abs(pf.OutputFormat))
}
