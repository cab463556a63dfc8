// Package store defines the storage contracts the processing pipeline runs
// against: a blob store for binary artifacts (source PDFs, page images) and a
// record store for structured metadata (documents, pages, progress
// checkpoints). Production uses the GCP implementations in internal/gcp; the
// in-memory implementation in this package backs tests and local runs.
package store

import (
	"context"
	"errors"

	"github.com/Lllllllleong/docraster/internal/models"
)

// ErrNotFound is returned when a requested record or blob does not exist.
var ErrNotFound = errors.New("store: not found")

// BlobStore is durable key/blob storage addressed by bucket and object name.
// Writers for different documents never collide: every object name is
// prefixed by its document id.
type BlobStore interface {
	Put(ctx context.Context, bucket, object string, data []byte, contentType string) error
	Delete(ctx context.Context, bucket string, objects []string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	PublicURL(bucket, object string) string
}

// RecordStore is structured storage for document metadata, per-page records
// and progress checkpoints. Implementations must be safe for concurrent use;
// each document's writes are scoped by its own identifier.
type RecordStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	// ListDocuments returns all documents ordered by creation time descending.
	ListDocuments(ctx context.Context) ([]models.Document, error)
	// UpdateDocument applies the given field updates to an existing document.
	// Field names match the firestore struct tags in models.Document.
	UpdateDocument(ctx context.Context, id string, updates map[string]any) error
	DeleteDocument(ctx context.Context, id string) error

	InsertPage(ctx context.Context, page *models.Page) error
	// ListPages returns a document's pages ordered by page number ascending.
	ListPages(ctx context.Context, documentID string) ([]models.Page, error)
	DeletePages(ctx context.Context, documentID string) error

	// UpsertProgress overwrites the checkpoint for the event's document id.
	UpsertProgress(ctx context.Context, ev *models.ProgressEvent) error
	GetProgress(ctx context.Context, documentID string) (*models.ProgressEvent, error)
	DeleteProgress(ctx context.Context, documentID string) error
}
