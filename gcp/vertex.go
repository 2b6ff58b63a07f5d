// Package gcp connects doctrans to Google Cloud: Gemini on Vertex AI as a
// translation backend, and Cloud Storage as a destination for finished
// documents.
package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/minios-linux/doctrans/translate"
)

// DefaultRegion is used when no Vertex AI region is configured.
const DefaultRegion = "us-central1"

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-1.5-pro"

// VertexTranslator is a translate.Client backed by Gemini on Vertex AI.
type VertexTranslator struct {
	client *genai.Client
	model  string
}

// NewVertexTranslator creates a Vertex AI client for projectID in region.
func NewVertexTranslator(ctx context.Context, projectID, region, model string) (*VertexTranslator, error) {
	if projectID == "" {
		return nil, fmt.Errorf("vertex: project ID cannot be empty")
	}
	if region == "" {
		region = DefaultRegion
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexTranslator{client: client, model: model}, nil
}

// newModel configures a model for one language pair. Temperature 0 keeps
// repeated runs over the same document stable.
func (v *VertexTranslator) newModel(pair translate.LanguagePair) *genai.GenerativeModel {
	m := v.client.GenerativeModel(v.model)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(translate.ResolvedPrompt(pair))},
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0),
	}
	return m
}

// Translate implements translate.Client.
func (v *VertexTranslator) Translate(ctx context.Context, text string, pair translate.LanguagePair) (string, error) {
	resp, err := v.newModel(pair).GenerateContent(ctx, genai.Text(text))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: vertex: %v", translate.ErrService, err)
	}
	out := extractText(resp)
	if out == "" {
		return "", fmt.Errorf("%w: vertex: empty response", translate.ErrService)
	}
	return translate.KeepEdgeSpace(text, out), nil
}

// Close releases the underlying client.
func (v *VertexTranslator) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// extractText joins the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
