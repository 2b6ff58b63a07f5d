package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"
)

func TestParseURL(t *testing.T) {
	cases := []struct {
		in             string
		bucket, prefix string
		wantErr        bool
	}{
		{in: "gs://docs", bucket: "docs"},
		{in: "gs://docs/", bucket: "docs"},
		{in: "gs://docs/translated/en/", bucket: "docs", prefix: "translated/en"},
		{in: "s3://docs/x", wantErr: true},
		{in: "gs:///x", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		bucket, prefix, err := ParseURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseURL(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || bucket != tc.bucket || prefix != tc.prefix {
			t.Errorf("ParseURL(%q) = %q, %q, %v; want %q, %q", tc.in, bucket, prefix, err, tc.bucket, tc.prefix)
		}
	}
}

func TestObjectName(t *testing.T) {
	p := &Publisher{bucket: "docs", prefix: "out/en"}
	if got := p.objectName("/tmp/work/deck_translated.pptx"); got != "out/en/deck_translated.pptx" {
		t.Errorf("objectName = %q", got)
	}
	p.prefix = ""
	if got := p.objectName("deck.pptx"); got != "deck.pptx" {
		t.Errorf("objectName without prefix = %q", got)
	}
}

func TestAlreadyExists(t *testing.T) {
	if !alreadyExists(&googleapi.Error{Code: 412}) {
		t.Error("412 not recognized")
	}
	if !alreadyExists(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 412})) {
		t.Error("wrapped 412 not recognized")
	}
	if alreadyExists(&googleapi.Error{Code: 403}) {
		t.Error("403 treated as existing object")
	}
	if alreadyExists(errors.New("network")) {
		t.Error("plain error treated as existing object")
	}
}

func TestExtractText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(" Good "), genai.Text("morning\n")}},
		}},
	}
	if got := extractText(resp); got != "Good morning" {
		t.Errorf("extractText = %q", got)
	}
	if got := extractText(nil); got != "" {
		t.Errorf("extractText(nil) = %q", got)
	}
	if got := extractText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}); got != "" {
		t.Errorf("extractText(no content) = %q", got)
	}
}

// newEmulatedPublisher points the storage client at a local server that
// answers every upload with status and body.
func newEmulatedPublisher(t *testing.T, status int, body string) (*Publisher, *[]string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("STORAGE_EMULATOR_HOST", strings.TrimPrefix(srv.URL, "http://"))

	p, err := NewPublisher(context.Background(), "gs://b/en")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	var logs []string
	p.OnLog = func(format string, args ...any) { logs = append(logs, fmt.Sprintf(format, args...)) }
	return p, &logs
}

func writeOutput(t *testing.T) string {
	t.Helper()
	local := filepath.Join(t.TempDir(), "x.docx")
	if err := os.WriteFile(local, []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}
	return local
}

func TestPublishUploads(t *testing.T) {
	p, logs := newEmulatedPublisher(t, http.StatusOK, `{"bucket":"b","name":"en/x.docx"}`)
	url, err := p.Publish(context.Background(), writeOutput(t))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if url != "gs://b/en/x.docx" {
		t.Errorf("url = %q", url)
	}
	if len(*logs) != 0 {
		t.Errorf("unexpected notices: %v", *logs)
	}
}

func TestPublishExistingObjectIsNotReported(t *testing.T) {
	p, logs := newEmulatedPublisher(t, http.StatusPreconditionFailed, `{"error":{"code":412,"message":"conditionNotMet"}}`)
	url, err := p.Publish(context.Background(), writeOutput(t))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if url != "" {
		t.Errorf("url = %q, want none for a skipped upload", url)
	}
	if len(*logs) != 1 || !strings.Contains((*logs)[0], "gs://b/en/x.docx already exists") {
		t.Errorf("notices = %v", *logs)
	}
}
