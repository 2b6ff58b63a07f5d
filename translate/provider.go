package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/minios-linux/doctrans/langmeta"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderLibre  = "libretranslate"
	ProviderDeepL  = "deepl"
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	ProviderVertex = "vertex"
)

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for a translation service.
type Provider struct {
	// ID is the provider identifier (libretranslate, deepl, openai, google, vertex).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier for LLM-backed providers.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// MaxRetries is the number of retries on 429/5xx/network errors.
	MaxRetries int
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderLibre: {
			ID:      ProviderLibre,
			Name:    "LibreTranslate",
			BaseURL: "http://localhost:5000",
			Timeout: 60 * time.Second,
		},
		ProviderDeepL: {
			ID:      ProviderDeepL,
			Name:    "DeepL",
			BaseURL: "https://api-free.deepl.com",
			Timeout: 60 * time.Second,
		},
		ProviderOpenAI: {
			ID:      ProviderOpenAI,
			Name:    "OpenAI-compatible",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 120 * time.Second,
		},
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.0-flash",
			Timeout: 120 * time.Second,
		},
		ProviderVertex: {
			ID:      ProviderVertex,
			Name:    "Vertex AI (Gemini)",
			Model:   "gemini-1.5-pro",
			Timeout: 120 * time.Second,
		},
	}
}

func (p Provider) effectiveTimeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return 120 * time.Second
}

func (p Provider) effectiveMaxRetries() int {
	if p.MaxRetries > 0 {
		return p.MaxRetries
	}
	return 3
}

// SystemPrompt is the instruction sent to LLM-backed providers.
// {{sourceLang}} and {{targetLang}} are replaced with language names.
const SystemPrompt = `You are a professional translator working on office documents.
Translate the user's text from {{sourceLang}} to {{targetLang}}.
Reply with the translation only: no quotes, no explanations, no notes.
Keep numbers, placeholders, URLs and punctuation as they are.
If the text is a fragment of a sentence, translate it as a fragment.`

// ResolvedPrompt returns SystemPrompt for a language pair.
func ResolvedPrompt(pair LanguagePair) string {
	return strings.NewReplacer(
		"{{sourceLang}}", langmeta.Name(pair.Source),
		"{{targetLang}}", langmeta.Name(pair.Target),
	).Replace(SystemPrompt)
}

// ---------------------------------------------------------------------------
// Rate limit state (global pause for parallel workers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseEnd = time.Now().Add(duration)
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP client
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// HTTPClient is a Client for HTTP translation services. One HTTPClient is
// shared by all workers of a run so a 429 pauses all of them.
type HTTPClient struct {
	prov  Provider
	http  *http.Client
	rl    *rateLimitState
	calls atomic.Int64

	// OnLog receives retry and rate-limit notices.
	OnLog func(format string, args ...any)
	// backoff is the base delay of the exponential backoff.
	backoff time.Duration
}

// NewHTTPClient creates a client for prov. Unknown provider IDs are treated
// as OpenAI-compatible endpoints.
func NewHTTPClient(prov Provider) (*HTTPClient, error) {
	if prov.BaseURL == "" {
		return nil, fmt.Errorf("provider %s: base URL is not set", prov.ID)
	}
	if prov.ID == ProviderVertex {
		return nil, fmt.Errorf("provider %s is not an HTTP provider", prov.ID)
	}
	return &HTTPClient{
		prov:    prov,
		http:    makeHTTPClient(prov.Proxy, prov.effectiveTimeout()),
		rl:      &rateLimitState{},
		backoff: time.Second,
	}, nil
}

// Calls returns the number of successful service calls made so far.
func (c *HTTPClient) Calls() int64 {
	return c.calls.Load()
}

func (c *HTTPClient) log(format string, args ...any) {
	if c.OnLog != nil {
		c.OnLog(format, args...)
	}
}

// Translate sends one string to the service, retrying 429, 5xx and network
// errors with exponential backoff.
func (c *HTTPClient) Translate(ctx context.Context, text string, pair LanguagePair) (string, error) {
	endpoint, headers, body, err := c.buildRequest(text, pair)
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", ErrService, err)
	}

	maxRetries := c.prov.effectiveMaxRetries()
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.rl.waitIfPaused(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("%w: creating request: %v", ErrService, err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if attempt < maxRetries {
				if err := c.sleep(ctx, c.backoffFor(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("%w: request failed: %v", ErrService, err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := retryAfter(resp.Header.Get("Retry-After"), c.backoffFor(attempt))
			c.log("%s: rate limited, waiting %v (attempt %d/%d)", c.prov.Name, delay, attempt+1, maxRetries)
			c.rl.pause(delay)
			if attempt < maxRetries {
				if err := c.sleep(ctx, delay); err != nil {
					return "", err
				}
				c.rl.unpause()
				continue
			}
			return "", fmt.Errorf("%w: rate limited after %d retries", ErrService, maxRetries)
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < maxRetries && resp.StatusCode >= 500 {
				c.log("%s: status %d, retrying (attempt %d/%d)", c.prov.Name, resp.StatusCode, attempt+1, maxRetries)
				if err := c.sleep(ctx, c.backoffFor(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("%w: %s returned status %d: %s", ErrService, c.prov.Name, resp.StatusCode, truncate(string(respBody), 300))
		}

		out, err := c.parseResponse(respBody)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrService, err)
		}
		c.calls.Add(1)
		return KeepEdgeSpace(text, out), nil
	}

	return "", fmt.Errorf("%w: exhausted all %d retries", ErrService, maxRetries)
}

func (c *HTTPClient) backoffFor(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * c.backoff
}

func (c *HTTPClient) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(header string, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// ---------------------------------------------------------------------------
// Request builders
// ---------------------------------------------------------------------------

func (c *HTTPClient) buildRequest(text string, pair LanguagePair) (string, map[string]string, []byte, error) {
	prov := c.prov
	base := strings.TrimRight(prov.BaseURL, "/")
	headers := map[string]string{"Content-Type": "application/json"}

	var (
		endpoint string
		body     []byte
		err      error
	)
	switch prov.ID {
	case ProviderLibre:
		endpoint = base + "/translate"
		body, err = json.Marshal(struct {
			Q      string `json:"q"`
			Source string `json:"source"`
			Target string `json:"target"`
			Format string `json:"format"`
			APIKey string `json:"api_key,omitempty"`
		}{text, pair.Source, pair.Target, "text", prov.APIKey})

	case ProviderDeepL:
		endpoint = base + "/v2/translate"
		if prov.APIKey != "" {
			headers["Authorization"] = "DeepL-Auth-Key " + prov.APIKey
		}
		req := struct {
			Text       []string `json:"text"`
			SourceLang string   `json:"source_lang,omitempty"`
			TargetLang string   `json:"target_lang"`
		}{Text: []string{text}, TargetLang: strings.ToUpper(pair.Target)}
		if pair.Source != "auto" {
			req.SourceLang = strings.ToUpper(pair.Source)
		}
		body, err = json.Marshal(req)

	case ProviderGoogle:
		endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, prov.Model)
		if prov.APIKey != "" {
			headers["x-goog-api-key"] = prov.APIKey
		}
		body, err = buildGeminiRequest(ResolvedPrompt(pair), text, 0.2)

	default: // ProviderOpenAI and anything OpenAI-compatible
		endpoint = base
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			endpoint += "/chat/completions"
		}
		if prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + prov.APIKey
		}
		body, err = buildOpenAIChatRequest(prov.Model, ResolvedPrompt(pair), text, 0.2)
	}
	if err != nil {
		return "", nil, nil, err
	}
	return endpoint, headers, body, nil
}

func buildOpenAIChatRequest(model, systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}
	return json.Marshal(req)
}

func buildGeminiRequest(systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature float64 `json:"temperature"`
	}
	req := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: userPrompt}}},
		},
		GenerationConfig:  genConfig{Temperature: temperature},
		SystemInstruction: &content{Parts: []part{{Text: systemPrompt}}},
	}
	return json.Marshal(req)
}

// ---------------------------------------------------------------------------
// Response parsers
// ---------------------------------------------------------------------------

func (c *HTTPClient) parseResponse(body []byte) (string, error) {
	switch c.prov.ID {
	case ProviderLibre:
		var resp struct {
			TranslatedText string `json:"translatedText"`
			Error          string `json:"error"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("invalid JSON response: %w", err)
		}
		if resp.Error != "" {
			return "", fmt.Errorf("API error: %s", resp.Error)
		}
		return resp.TranslatedText, nil

	case ProviderDeepL:
		var resp struct {
			Translations []struct {
				Text string `json:"text"`
			} `json:"translations"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("invalid JSON response: %w", err)
		}
		if len(resp.Translations) == 0 {
			return "", fmt.Errorf("response has no translations")
		}
		return resp.Translations[0].Text, nil
	}
	return extractResponseText(body)
}

// extractResponseText reads OpenAI chat and Gemini responses.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	// OpenAI chat format: choices[0].message.content
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return strings.TrimSpace(content), nil
				}
			}
		}
	}

	// Gemini format: candidates[0].content.parts[].text
	if candidates, ok := raw["candidates"].([]any); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]any); ok {
			if content, ok := candidate["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok {
					var b strings.Builder
					for _, p := range parts {
						if part, ok := p.(map[string]any); ok {
							if text, ok := part["text"].(string); ok {
								b.WriteString(text)
							}
						}
					}
					if b.Len() > 0 {
						return strings.TrimSpace(b.String()), nil
					}
				}
			}
		}
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 300))
}

// KeepEdgeSpace restores leading and trailing whitespace of the source that
// the service dropped. Text runs are often sentence fragments whose edge
// spaces separate them from the neighbouring run.
func KeepEdgeSpace(src, out string) string {
	lead := src[:len(src)-len(strings.TrimLeftFunc(src, unicode.IsSpace))]
	trail := src[len(strings.TrimRightFunc(src, unicode.IsSpace)):]
	if lead == src {
		return src
	}
	core := strings.TrimFunc(out, unicode.IsSpace)
	return lead + core + trail
}
