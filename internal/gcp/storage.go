package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// BlobStore implements store.BlobStore on Google Cloud Storage.
type BlobStore struct {
	client *storage.Client
}

// NewBlobStore creates a Cloud Storage backed blob store.
func NewBlobStore(ctx context.Context) (*BlobStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return &BlobStore{client: client}, nil
}

// Put writes data to bucket/object, retrying transient failures with
// exponential backoff. Each attempt gets its own write deadline so a wedged
// stream cannot stall the pipeline indefinitely.
func (b *BlobStore) Put(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	const maxRetries = 4
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, time.Second*50)
			defer cancel()

			writer := b.client.Bucket(bucket).Object(object).NewWriter(writeCtx)
			writer.ContentType = contentType

			if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
				_ = writer.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := writer.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		}()

		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", object,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", object, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", object, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", object, lastErr)
}

// Delete removes objects from a bucket. Missing objects are not an error so
// deletion cascades stay idempotent.
func (b *BlobStore) Delete(ctx context.Context, bucket string, objects []string) error {
	for _, object := range objects {
		err := b.client.Bucket(bucket).Object(object).Delete(ctx)
		if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
			continue
		}
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 404 {
			continue
		}
		return fmt.Errorf("failed to delete gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

// List returns the names of all objects under prefix.
func (b *BlobStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var names []string
	it := b.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// PublicURL returns the public retrieval URL for an object.
func (b *BlobStore) PublicURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object)
}

// Close releases the underlying client.
func (b *BlobStore) Close() error {
	return b.client.Close()
}
