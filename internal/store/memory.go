package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Lllllllleong/docraster/internal/models"
)

// Memory is an in-memory implementation of both BlobStore and RecordStore.
// It is used by tests and by local runs without GCP credentials.
type Memory struct {
	mu       sync.RWMutex
	blobs    map[string][]byte
	docs     map[string]models.Document
	pages    map[string][]models.Page
	progress map[string]models.ProgressEvent
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		blobs:    make(map[string][]byte),
		docs:     make(map[string]models.Document),
		pages:    make(map[string][]models.Page),
		progress: make(map[string]models.ProgressEvent),
	}
}

func blobKey(bucket, object string) string { return bucket + "/" + object }

func (m *Memory) Put(_ context.Context, bucket, object string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.blobs[blobKey(bucket, object)] = buf
	return nil
}

func (m *Memory) Delete(_ context.Context, bucket string, objects []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, object := range objects {
		delete(m.blobs, blobKey(bucket, object))
	}
	return nil
}

func (m *Memory) List(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	full := blobKey(bucket, prefix)
	for key := range m.blobs {
		if strings.HasPrefix(key, full) {
			names = append(names, strings.TrimPrefix(key, bucket+"/"))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) PublicURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object)
}

// GetBlob returns a stored blob. Test helper, not part of BlobStore.
func (m *Memory) GetBlob(bucket, object string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[blobKey(bucket, object)]
	return data, ok
}

func (m *Memory) CreateDocument(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; exists {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *Memory) GetDocument(_ context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (m *Memory) ListDocuments(_ context.Context) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]models.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

func (m *Memory) UpdateDocument(_ context.Context, id string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	for field, value := range updates {
		switch field {
		case "status":
			doc.Status = value.(string)
		case "pageCount":
			doc.PageCount = value.(int)
		case "processedPages":
			doc.ProcessedPages = value.(int)
		case "errorMessage":
			doc.ErrorMessage = value.(string)
		case "updatedAt":
			doc.UpdatedAt = value.(time.Time)
		default:
			return fmt.Errorf("unknown document field %q", field)
		}
	}
	m.docs[id] = doc
	return nil
}

func (m *Memory) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *Memory) InsertPage(_ context.Context, page *models.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page.DocumentID] = append(m.pages[page.DocumentID], *page)
	return nil
}

func (m *Memory) ListPages(_ context.Context, documentID string) ([]models.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pages := make([]models.Page, len(m.pages[documentID]))
	copy(pages, m.pages[documentID])
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })
	return pages, nil
}

func (m *Memory) DeletePages(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, documentID)
	return nil
}

func (m *Memory) UpsertProgress(_ context.Context, ev *models.ProgressEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[ev.DocumentID] = *ev
	return nil
}

func (m *Memory) GetProgress(_ context.Context, documentID string) (*models.ProgressEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.progress[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &ev, nil
}

func (m *Memory) DeleteProgress(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, documentID)
	return nil
}
