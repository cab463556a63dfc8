package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/docraster/internal/models"
	"github.com/Lllllllleong/docraster/internal/store"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collections names the Firestore collections backing the record store.
type Collections struct {
	Documents string
	Pages     string
	Progress  string
}

// RecordStore implements store.RecordStore on Firestore.
type RecordStore struct {
	client      *firestore.Client
	collections Collections
}

// NewRecordStore creates a Firestore backed record store for the given
// project.
func NewRecordStore(ctx context.Context, projectID string, collections Collections) (*RecordStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore record store")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &RecordStore{client: client, collections: collections}, nil
}

func translateNotFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	return err
}

func (r *RecordStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	_, err := r.client.Collection(r.collections.Documents).Doc(doc.ID).Create(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create document record: %w", err)
	}
	return nil
}

func (r *RecordStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	snap, err := r.client.Collection(r.collections.Documents).Doc(id).Get(ctx)
	if err != nil {
		return nil, translateNotFound(err)
	}
	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	doc.ID = snap.Ref.ID
	return &doc, nil
}

func (r *RecordStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	it := r.client.Collection(r.collections.Documents).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer it.Stop()

	var docs []models.Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		var doc models.Document
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
		}
		doc.ID = snap.Ref.ID
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *RecordStore) UpdateDocument(ctx context.Context, id string, updates map[string]any) error {
	fsUpdates := make([]firestore.Update, 0, len(updates))
	for field, value := range updates {
		fsUpdates = append(fsUpdates, firestore.Update{Path: field, Value: value})
	}
	_, err := r.client.Collection(r.collections.Documents).Doc(id).Update(ctx, fsUpdates)
	if err != nil {
		return translateNotFound(err)
	}
	return nil
}

func (r *RecordStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := r.client.Collection(r.collections.Documents).Doc(id).Delete(ctx)
	return err
}

// pageDocID keys page records so one document's pages sort and delete by
// prefix. Re-running a document overwrites its prior pages.
func pageDocID(documentID string, pageNumber int) string {
	return fmt.Sprintf("%s_%05d", documentID, pageNumber)
}

func (r *RecordStore) InsertPage(ctx context.Context, page *models.Page) error {
	_, err := r.client.Collection(r.collections.Pages).Doc(pageDocID(page.DocumentID, page.PageNumber)).Set(ctx, page)
	if err != nil {
		return fmt.Errorf("failed to store page %d record: %w", page.PageNumber, err)
	}
	return nil
}

func (r *RecordStore) ListPages(ctx context.Context, documentID string) ([]models.Page, error) {
	it := r.client.Collection(r.collections.Pages).
		Where("documentId", "==", documentID).
		OrderBy("pageNumber", firestore.Asc).
		Documents(ctx)
	defer it.Stop()

	var pages []models.Page
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list pages for %s: %w", documentID, err)
		}
		var page models.Page
		if err := snap.DataTo(&page); err != nil {
			return nil, fmt.Errorf("failed to decode page %s: %w", snap.Ref.ID, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (r *RecordStore) DeletePages(ctx context.Context, documentID string) error {
	it := r.client.Collection(r.collections.Pages).Where("documentId", "==", documentID).Documents(ctx)
	defer it.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to query pages for %s: %w", documentID, err)
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			return fmt.Errorf("failed to enqueue page delete: %w", err)
		}
	}
	bw.End()
	return nil
}

func (r *RecordStore) UpsertProgress(ctx context.Context, ev *models.ProgressEvent) error {
	_, err := r.client.Collection(r.collections.Progress).Doc(ev.DocumentID).Set(ctx, ev)
	if err != nil {
		return fmt.Errorf("failed to checkpoint progress: %w", err)
	}
	return nil
}

func (r *RecordStore) GetProgress(ctx context.Context, documentID string) (*models.ProgressEvent, error) {
	snap, err := r.client.Collection(r.collections.Progress).Doc(documentID).Get(ctx)
	if err != nil {
		return nil, translateNotFound(err)
	}
	var ev models.ProgressEvent
	if err := snap.DataTo(&ev); err != nil {
		return nil, fmt.Errorf("failed to decode progress checkpoint %s: %w", documentID, err)
	}
	return &ev, nil
}

func (r *RecordStore) DeleteProgress(ctx context.Context, documentID string) error {
	_, err := r.client.Collection(r.collections.Progress).Doc(documentID).Delete(ctx)
	return err
}

// Close releases the underlying client.
func (r *RecordStore) Close() error {
	return r.client.Close()
}
