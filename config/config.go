package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Environment variables that override .proptrans.yaml.
const (
	EnvProjectID = "PROPTRANS_PROJECT_ID"
	EnvLocation  = "PROPTRANS_LOCATION"
	EnvBucket    = "PROPTRANS_BUCKET"
	EnvAPIKey    = "PROPTRANS_API_KEY"
	EnvLibreURL  = "PROPTRANS_LIBRE_URL"
)

// applyEnv overrides file values with non-empty environment variables.
func (pf *ProjectFile) applyEnv(getenv func(string) string) {
	set := func(dst *string, name string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}
	set(&pf.Google.ProjectID, EnvProjectID)
	set(&pf.Google.Location, EnvLocation)
	set(&pf.Google.Bucket, EnvBucket)
	set(&pf.LibreTranslate.APIKey, EnvAPIKey)
	set(&pf.LibreTranslate.URL, EnvLibreURL)
}

// ---------------------------------------------------------------------------
// Language detection
// ---------------------------------------------------------------------------

// DetectLanguages finds language codes from files matching outputFormat,
// a path in which "%s" stands for the language code. Only names that
// parse as BCP 47 tags count. The result is sorted.
func DetectLanguages(outputFormat string) []string {
	i := strings.Index(outputFormat, "%s")
	if i < 0 {
		return nil
	}
	prefix, suffix := outputFormat[:i], outputFormat[i+2:]
	matches, err := filepath.Glob(escapeGlob(prefix) + "*" + escapeGlob(suffix))
	if err != nil {
		return nil
	}

	var langs []string
	for _, m := range matches {
		if info, err := os.Stat(m); err != nil || info.IsDir() {
			continue
		}
		lang := strings.TrimSuffix(strings.TrimPrefix(m, prefix), suffix)
		if isLangCode(lang) {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}

// isLangCode checks if a string is a language code (en, ru, pt_BR, zh-Hant, ...).
func isLangCode(s string) bool {
	if s == "" || strings.ContainsAny(s, `/\`) {
		return false
	}
	_, err := language.Parse(s)
	return err == nil
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
