package translate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, id, url string) *HTTPClient {
	t.Helper()
	prov := DefaultProviders()[id]
	prov.BaseURL = url
	prov.APIKey = "secret"
	prov.MaxRetries = 2
	c, err := NewHTTPClient(prov)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	c.backoff = time.Millisecond
	return c
}

func TestLibreTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["source"] != "pl" || req["target"] != "en" || req["api_key"] != "secret" {
			t.Errorf("request = %v", req)
		}
		io.WriteString(w, `{"translatedText":"Hello"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, ProviderLibre, srv.URL)
	got, err := c.Translate(context.Background(), "Cześć", plEn)
	if err != nil || got != "Hello" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
	if c.Calls() != 1 {
		t.Errorf("Calls() = %d", c.Calls())
	}
}

func TestDeepL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/translate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "DeepL-Auth-Key secret" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Text       []string `json:"text"`
			SourceLang string   `json:"source_lang"`
			TargetLang string   `json:"target_lang"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.SourceLang != "PL" || req.TargetLang != "EN" || len(req.Text) != 1 {
			t.Errorf("request = %+v", req)
		}
		io.WriteString(w, `{"translations":[{"text":"World"}]}`)
	}))
	defer srv.Close()

	got, err := newTestClient(t, ProviderDeepL, srv.URL).Translate(context.Background(), "Świat", plEn)
	if err != nil || got != "World" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
}

func TestOpenAIKeepsEdgeWhitespace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "from Polish to English") {
			t.Errorf("prompt does not name the languages: %s", body)
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"  and  "}}]}`)
	}))
	defer srv.Close()

	got, err := newTestClient(t, ProviderOpenAI, srv.URL).Translate(context.Background(), " i ", plEn)
	if err != nil || got != " and " {
		t.Fatalf("Translate = %q, %v", got, err)
	}
}

func TestGemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Good "},{"text":"morning"}]}}]}`)
	}))
	defer srv.Close()

	got, err := newTestClient(t, ProviderGoogle, srv.URL).Translate(context.Background(), "Dzień dobry", plEn)
	if err != nil || got != "Good morning" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
}

func TestRetryOnServerErrorAndRateLimit(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch n.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			io.WriteString(w, `{"translatedText":"ok"}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, ProviderLibre, srv.URL)
	var logs []string
	c.OnLog = func(format string, args ...any) { logs = append(logs, format) }

	got, err := c.Translate(context.Background(), "x", plEn)
	if err != nil || got != "ok" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
	if n.Load() != 3 {
		t.Errorf("server hit %d times, want 3", n.Load())
	}
	if len(logs) != 2 {
		t.Errorf("logged %d retries, want 2", len(logs))
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"bad key"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, ProviderLibre, srv.URL).Translate(context.Background(), "x", plEn)
	if !errors.Is(err, ErrService) {
		t.Fatalf("err = %v, want ErrService", err)
	}
	if n.Load() != 1 {
		t.Errorf("server hit %d times, want 1", n.Load())
	}
}

func TestServerErrorExhaustsRetries(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, ProviderLibre, srv.URL).Translate(context.Background(), "x", plEn)
	if !errors.Is(err, ErrService) {
		t.Fatalf("err = %v, want ErrService", err)
	}
	if n.Load() != 3 {
		t.Errorf("server hit %d times, want 3", n.Load())
	}
}

func TestNewHTTPClientRequiresURL(t *testing.T) {
	if _, err := NewHTTPClient(Provider{ID: ProviderLibre}); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := NewHTTPClient(Provider{ID: ProviderVertex, BaseURL: "x"}); err == nil {
		t.Error("expected error for vertex provider")
	}
}

func TestExtractResponseTextError(t *testing.T) {
	if _, err := extractResponseText([]byte(`{"error":{"message":"quota"}}`)); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Errorf("err = %v", err)
	}
	if _, err := extractResponseText([]byte(`{}`)); err == nil {
		t.Error("expected error for empty response")
	}
}

func TestKeepEdgeSpace(t *testing.T) {
	cases := []struct{ src, out, want string }{
		{"Hello", "Cześć", "Cześć"},
		{" i ", "and", " and "},
		{"x\n", " y ", "y\n"},
		{"   ", "", "   "},
	}
	for _, tc := range cases {
		if got := KeepEdgeSpace(tc.src, tc.out); got != tc.want {
			t.Errorf("KeepEdgeSpace(%q, %q) = %q, want %q", tc.src, tc.out, got, tc.want)
		}
	}
}

func TestResolvedPrompt(t *testing.T) {
	p := ResolvedPrompt(LanguagePair{Source: "de", Target: "fr"})
	if !strings.Contains(p, "from German to French") {
		t.Errorf("prompt = %q", p)
	}
}
