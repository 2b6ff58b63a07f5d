// Package i18n translates the user-facing messages of the doctrans CLI.
//
// Catalogues are gettext PO files embedded in the binary under
// locales/<lang>/LC_MESSAGES/doctrans.po. Messages without a catalogue entry
// are printed as written.
package i18n

import (
	"embed"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "doctrans"

// EnvLang selects the message language ahead of the locale variables.
const EnvLang = "DOCTRANS_LANG"

var (
	po     *gotext.Locale
	active string
)

// noArgs keeps gotext from formatting: messages are format strings that
// callers fill in themselves.
var noArgs []any

// Init loads the catalogue for lang and returns the catalogue actually used
// ("" when messages stay untranslated). With an empty lang the language is
// taken from DOCTRANS_LANG, LANGUAGE, LC_ALL, LC_MESSAGES or LANG.
func Init(lang string) string {
	if lang == "" {
		lang = detectLanguage()
	}
	active = match(lang)
	if active == "" {
		po = nil
		return ""
	}

	po = gotext.NewLocaleFSWithPath(active, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
	return active
}

// Language returns the catalogue selected by the last Init.
func Language() string {
	return active
}

// Available lists the embedded catalogues.
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
	sort.Strings(langs)
	return langs
}

// match picks the embedded catalogue for a locale name: an exact match
// first, then its base language (pl_PL -> pl).
func match(lang string) string {
	lang = strings.ReplaceAll(lang, "-", "_")
	base, _, _ := strings.Cut(lang, "_")
	var fallback string
	for _, l := range Available() {
		if l == lang {
			return l
		}
		if l == base {
			fallback = l
		}
	}
	return fallback
}

// T translates msgid.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid, noArgs...)
}

// N translates a message with plural forms for n.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n, noArgs...)
}

// detectLanguage follows the gettext variable order, with DOCTRANS_LANG
// ahead of it. LANGUAGE may list several languages; the first is used.
func detectLanguage() string {
	for _, env := range []string{EnvLang, "LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		val, _, _ = strings.Cut(val, ".")
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
