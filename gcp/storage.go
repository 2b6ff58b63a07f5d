package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// Publisher uploads translated documents to a Cloud Storage prefix.
type Publisher struct {
	client *storage.Client
	bucket string
	prefix string

	// OnLog receives notices such as skipped uploads.
	OnLog func(format string, args ...any)
}

// ParseURL splits gs://bucket/prefix into its bucket and prefix.
func ParseURL(url string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(url, "gs://")
	if !ok {
		return "", "", fmt.Errorf("publish URL %q: must start with gs://", url)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("publish URL %q: bucket is empty", url)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// NewPublisher creates a storage client and a publisher for url.
func NewPublisher(ctx context.Context, url string) (*Publisher, error) {
	bucket, prefix, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Publisher{client: client, bucket: bucket, prefix: prefix}, nil
}

func (p *Publisher) log(format string, args ...any) {
	if p.OnLog != nil {
		p.OnLog(format, args...)
	}
}

// objectName is the object a local file is uploaded to.
func (p *Publisher) objectName(local string) string {
	return path.Join(p.prefix, filepath.Base(local))
}

// Publish uploads the file at local and returns its gs:// URL. An object
// that already exists is left alone: the upload is logged as skipped and
// the returned URL is empty.
func (p *Publisher) Publish(ctx context.Context, local string) (string, error) {
	f, err := os.Open(local)
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := p.objectName(local)
	url := fmt.Sprintf("gs://%s/%s", p.bucket, name)
	skipped, err := saveAtomically(ctx, p.client.Bucket(p.bucket), name, f)
	if err != nil {
		return "", err
	}
	if skipped {
		p.log("object %s already exists, not uploaded", url)
		return "", nil
	}
	return url, nil
}

// Close releases the storage client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// saveAtomically writes content to an object only if it doesn't already
// exist. It reports whether the write was skipped for that reason.
func saveAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName string, content io.Reader) (bool, error) {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(writer, content); err != nil {
		_ = writer.Close()
		if alreadyExists(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		if alreadyExists(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return false, nil
}

// alreadyExists reports whether err is the precondition failure returned
// for a DoesNotExist write to an existing object.
func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
