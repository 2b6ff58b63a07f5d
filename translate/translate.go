// Package translate sends distinct source strings to a translation service
// and collects the results.
//
// The service is reached through the Client interface. HTTPClient talks to
// LibreTranslate, DeepL, OpenAI-compatible chat endpoints and Google AI;
// CachingClient puts a translation memory in front of any Client. Executor
// runs a fixed pool of workers over the distinct strings of one document.
package translate

import (
	"context"
	"errors"
	"fmt"
)

// Errors reported by this package.
var (
	// ErrService: the translation service failed (network, auth, quota, bad response).
	ErrService = errors.New("translation service error")
	// ErrTranslationFailed: a document's translation was aborted by a client error.
	ErrTranslationFailed = errors.New("translation failed")
)

// LanguagePair is the source and target language of one run. It is passed
// explicitly to every call and never stored globally.
type LanguagePair struct {
	Source string
	Target string
}

func (p LanguagePair) String() string {
	return p.Source + ">" + p.Target
}

// Validate checks that both codes are set and differ.
func (p LanguagePair) Validate() error {
	if p.Source == "" || p.Target == "" {
		return fmt.Errorf("language pair %q: source and target must be set", p.String())
	}
	if p.Source == p.Target {
		return fmt.Errorf("language pair %q: source and target are the same", p.String())
	}
	return nil
}

// Client translates one string. Implementations must be safe for concurrent
// use: the executor calls Translate from several workers at once.
type Client interface {
	Translate(ctx context.Context, text string, pair LanguagePair) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, text string, pair LanguagePair) (string, error)

// Translate calls f.
func (f ClientFunc) Translate(ctx context.Context, text string, pair LanguagePair) (string, error) {
	return f(ctx, text, pair)
}

// Map holds the translation of every distinct source string of a document.
type Map map[string]string

// Distinct returns the distinct non-empty texts of items in first-seen order.
func Distinct[T any](items []T, text func(T) string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		s := text(it)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
