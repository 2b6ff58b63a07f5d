package i18n

import (
	"strings"
	"testing"
)

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{EnvLang, "LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		t.Setenv(env, "")
	}
}

func restore(t *testing.T) {
	t.Helper()
	oldPo, oldActive := po, active
	t.Cleanup(func() { po, active = oldPo, oldActive })
}

func TestDetectLanguagePriorityAndNormalization(t *testing.T) {
	t.Run("DOCTRANS_LANG wins", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv(EnvLang, "pl")
		t.Setenv("LANGUAGE", "ru_RU.UTF-8:en_US")
		if got := detectLanguage(); got != "pl" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "pl")
		}
	})

	t.Run("LANGUAGE before LC_ALL", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU.UTF-8:en_US")
		t.Setenv("LC_ALL", "de_DE.UTF-8")
		if got := detectLanguage(); got != "ru_RU" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "ru_RU")
		}
	})

	t.Run("C and POSIX are skipped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "C")
		t.Setenv("LC_ALL", "POSIX")
		t.Setenv("LC_MESSAGES", "fr_FR.UTF-8")
		if got := detectLanguage(); got != "fr_FR" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "fr_FR")
		}
	})

	t.Run("falls back to en", func(t *testing.T) {
		clearLocaleEnv(t)
		if got := detectLanguage(); got != "en" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "en")
		}
	})
}

func TestAvailableAndMatch(t *testing.T) {
	if got := strings.Join(Available(), ","); got != "pl,ru" {
		t.Fatalf("Available() = %q", got)
	}

	cases := map[string]string{
		"pl":    "pl",
		"pl_PL": "pl",
		"ru-RU": "ru",
		"de_DE": "",
		"en":    "",
	}
	for in, want := range cases {
		if got := match(in); got != want {
			t.Errorf("match(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTAndNFallbackWhenUninitialized(t *testing.T) {
	restore(t)
	po = nil

	if got := T("Hello"); got != "Hello" {
		t.Fatalf("T fallback = %q, want %q", got, "Hello")
	}
	if got := N("file", "files", 1); got != "file" {
		t.Fatalf("N singular fallback = %q, want %q", got, "file")
	}
	if got := N("file", "files", 2); got != "files" {
		t.Fatalf("N plural fallback = %q, want %q", got, "files")
	}
}

func TestInitLoadsEmbeddedCatalogue(t *testing.T) {
	restore(t)

	if got := Init("pl_PL"); got != "pl" || Language() != "pl" {
		t.Fatalf("Init(pl_PL) = %q, Language() = %q", got, Language())
	}
	if got := T("Interrupted"); got != "Przerwano" {
		t.Fatalf("T(Interrupted) = %q, want %q", got, "Przerwano")
	}
	if got := N("%d document translated", "%d documents translated", 5); got != "Przetłumaczono %d dokumentów" {
		t.Fatalf("N(5) = %q", got)
	}
	if got := T("no such message"); got != "no such message" {
		t.Fatalf("untranslated passthrough = %q", got)
	}
	if got := T("%d%% of %s"); got != "%d%% of %s" {
		t.Fatalf("format verbs expanded in lookup: %q", got)
	}

	if got := Init("de"); got != "" {
		t.Fatalf("Init(de) = %q, want no catalogue", got)
	}
	if got := T("Interrupted"); got != "Interrupted" {
		t.Fatalf("T without catalogue = %q", got)
	}
}
