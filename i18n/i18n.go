// Package i18n translates the messages printed by the proptrans command.
//
// Message ids are the English format strings passed to the log helpers, so
// English needs no catalogue. Other languages are gettext .po files under
// locales/<lang>/LC_MESSAGES/proptrans.po, embedded in the binary. The
// catalogue is chosen by matching the user's locale against the embedded
// languages.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const domain = "proptrans"

var (
	mu  sync.RWMutex
	loc *gotext.Locale
)

// Init loads the catalogue that best matches lang, or the locale
// environment when lang is empty. It returns the catalogue directory in
// use, or "" when messages stay in English.
func Init(lang string) string {
	if lang == "" {
		lang = envLocale()
	}
	dir := match(lang, Available())

	mu.Lock()
	defer mu.Unlock()
	loc = nil
	if dir == "" {
		return ""
	}
	loc = gotext.NewLocaleFSWithPath(dir, locales, "locales")
	loc.AddDomain(domain)
	loc.SetDomain(domain)
	return dir
}

// Available lists the embedded catalogue languages.
func Available() []string {
	entries, err := fs.ReadDir(locales, "locales")
	if err != nil {
		return nil
	}
	var langs []string
	for _, e := range entries {
		if e.IsDir() {
			langs = append(langs, e.Name())
		}
	}
	return langs
}

// T returns the translation of msgid, or msgid itself.
func T(msgid string) string {
	mu.RLock()
	defer mu.RUnlock()
	if loc == nil {
		return msgid
	}
	return loc.Get(msgid)
}

// N picks the plural form of a message for n.
func N(singular, plural string, n int) string {
	mu.RLock()
	defer mu.RUnlock()
	if loc == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return loc.GetN(singular, plural, n)
}

// Tf translates format and formats it with args.
func Tf(format string, args ...any) string {
	if len(args) == 0 {
		return T(format)
	}
	return fmt.Sprintf(T(format), args...)
}

// match returns the entry of available closest to the POSIX or BCP 47
// locale name lang, or "" when English or nothing fits.
func match(lang string, available []string) string {
	lang = strings.ReplaceAll(lang, "_", "-")
	want, err := language.Parse(lang)
	if err != nil || len(available) == 0 {
		return ""
	}
	tags := []language.Tag{language.English}
	for _, a := range available {
		tags = append(tags, language.Make(a))
	}
	_, idx, conf := language.NewMatcher(tags).Match(want)
	if idx == 0 || conf == language.No {
		return ""
	}
	return available[idx-1]
}

// envLocale returns the message locale from the environment, in GNU
// gettext order. Encoding and modifier suffixes are dropped; "C" and
// "POSIX" are ignored.
func envLocale() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		if i := strings.IndexAny(val, ".@"); i >= 0 {
			val = val[:i]
		}
		if val != "" && val != "C" && val != "POSIX" {
			return val
		}
	}
	return "en"
}
