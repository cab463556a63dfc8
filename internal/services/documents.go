package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/docraster/internal/models"
	"github.com/Lllllllleong/docraster/internal/raster"
	"github.com/Lllllllleong/docraster/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PDFMimeType is the only content type accepted for uploads.
const PDFMimeType = "application/pdf"

// deleteConcurrency bounds the fan-out when removing a document's page images.
const deleteConcurrency = 10

// DocumentConfig holds the bucket layout for document artifacts.
type DocumentConfig struct {
	SourceBucket string
	ImagesBucket string
}

// DocumentService owns the document lifecycle outside of a processing run:
// upload intake, listing, detail reads and whole-document deletion.
type DocumentService struct {
	blobs   store.BlobStore
	records store.RecordStore
	config  DocumentConfig
}

// NewDocumentService wires a document service against its stores.
func NewDocumentService(blobs store.BlobStore, records store.RecordStore, config DocumentConfig) *DocumentService {
	return &DocumentService{blobs: blobs, records: records, config: config}
}

// Upload stores a new source PDF under a generated id and inserts its pending
// document record. If the record insert fails, the uploaded blob is removed
// again so no orphan artifact is left behind.
func (s *DocumentService) Upload(ctx context.Context, fileName, mimeType string, data []byte) (*models.Document, error) {
	if mimeType != PDFMimeType {
		return nil, fmt.Errorf("only PDF files are supported, got %q", mimeType)
	}
	if err := raster.ValidatePDF(data); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	path := id + ".pdf"
	if err := s.blobs.Put(ctx, s.config.SourceBucket, path, data, PDFMimeType); err != nil {
		return nil, fmt.Errorf("failed to store source PDF: %w", err)
	}

	now := time.Now()
	doc := &models.Document{
		ID:          id,
		FileName:    fileName,
		FileSize:    int64(len(data)),
		MimeType:    mimeType,
		StoragePath: path,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.records.CreateDocument(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, s.config.SourceBucket, []string{path}); delErr != nil {
			slog.Error("Failed to remove source PDF after record insert failure.", "documentId", id, "error", delErr)
		}
		return nil, fmt.Errorf("failed to record document: %w", err)
	}
	slog.Info("Document uploaded.", "documentId", id, "fileName", fileName, "bytes", len(data))
	return doc, nil
}

// List returns all documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	return s.records.ListDocuments(ctx)
}

// GetWithPages returns a document and its pages ordered by page number.
func (s *DocumentService) GetWithPages(ctx context.Context, id string) (*models.Document, []models.Page, error) {
	doc, err := s.records.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	pages, err := s.records.ListPages(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch document pages: %w", err)
	}
	return doc, pages, nil
}

// Delete removes a document entirely: page images, the source PDF, page
// records, the progress checkpoint and finally the document record itself.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.records.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	objects, err := s.blobs.List(ctx, s.config.ImagesBucket, id+"/")
	if err != nil {
		return fmt.Errorf("failed to list page images: %w", err)
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(deleteConcurrency)
	for _, object := range objects {
		eg.Go(func() error {
			if err := s.blobs.Delete(gctx, s.config.ImagesBucket, []string{object}); err != nil {
				return fmt.Errorf("object %s: %w", object, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("failed to delete page images: %w", err)
	}

	if err := s.blobs.Delete(ctx, s.config.SourceBucket, []string{doc.StoragePath}); err != nil {
		return fmt.Errorf("failed to delete source PDF: %w", err)
	}
	if err := s.records.DeletePages(ctx, id); err != nil {
		return fmt.Errorf("failed to delete page records: %w", err)
	}
	if err := s.records.DeleteProgress(ctx, id); err != nil {
		return fmt.Errorf("failed to delete progress checkpoint: %w", err)
	}
	if err := s.records.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}
	slog.Info("Document deleted.", "documentId", id, "pageImages", len(objects))
	return nil
}
