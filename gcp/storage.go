package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/minios-linux/proptrans/glossary"
)

// Bucket stores glossary source files in a Cloud Storage bucket. It
// implements glossary.Uploader and provides a glossary.OpenFunc.
type Bucket struct {
	client *storage.Client
	name   string
}

// NewBucket connects to the named bucket with application default
// credentials.
func NewBucket(ctx context.Context, name string) (*Bucket, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &Bucket{client: client, name: name}, nil
}

// Close releases the underlying client.
func (b *Bucket) Close() error {
	return b.client.Close()
}

// Upload implements glossary.Uploader.
func (b *Bucket) Upload(ctx context.Context, object string, data []byte) error {
	w := b.client.Bucket(b.name).Object(object).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", b.name, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("writing gs://%s/%s: %w", b.name, object, err)
	}
	return nil
}

// Opener returns a glossary.OpenFunc reading objectFor(lang). A missing
// object reads as empty, so the language is reported as not covered.
func (b *Bucket) Opener(objectFor func(lang string) string) glossary.OpenFunc {
	return func(ctx context.Context, lang string) (io.ReadCloser, error) {
		object := objectFor(lang)
		r, err := b.client.Bucket(b.name).Object(object).NewReader(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return io.NopCloser(strings.NewReader("")), nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading gs://%s/%s: %w", b.name, object, err)
		}
		return r, nil
	}
}
