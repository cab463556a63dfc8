package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/docraster/internal/models"
	"github.com/Lllllllleong/docraster/internal/progress"
	"github.com/Lllllllleong/docraster/internal/raster"
	"github.com/Lllllllleong/docraster/internal/store"
)

// ProcessorConfig holds all configuration for the processing pipeline.
type ProcessorConfig struct {
	ImagesBucket  string
	Scale         float64
	MaxImageWidth int
}

// Processor drives one document conversion run: rasterize each page, optimize
// it, persist the image and its page record, and emit progress. Pages are
// processed strictly in order; page N+1 only begins after page N's side
// effects are initiated. Multiple documents may be processed concurrently by
// independent Process calls.
type Processor struct {
	blobs      store.BlobStore
	records    store.RecordStore
	broker     *progress.Broker
	rasterizer raster.Rasterizer
	config     ProcessorConfig
}

// NewProcessor wires a processor against its storage and progress
// collaborators.
func NewProcessor(blobs store.BlobStore, records store.RecordStore, broker *progress.Broker, rasterizer raster.Rasterizer, config ProcessorConfig) *Processor {
	if config.Scale == 0 {
		config.Scale = 2.0
	}
	if config.MaxImageWidth == 0 {
		config.MaxImageWidth = raster.DefaultMaxWidth
	}
	return &Processor{
		blobs:      blobs,
		records:    records,
		broker:     broker,
		rasterizer: rasterizer,
		config:     config,
	}
}

// Process converts pdfData into page images for documentID. It never fails
// past its own boundary: every outcome, including validation rejection and
// mid-run failure, is returned as a structured ProcessResult, and a terminal
// document status is persisted for every run that got past validation.
func (p *Processor) Process(ctx context.Context, documentID string, pdfData []byte) models.ProcessResult {
	// Validation rejects before any side effect is taken.
	if strings.TrimSpace(documentID) == "" {
		return models.ProcessResult{Success: false, Error: "document ID is required"}
	}
	if err := raster.ValidatePDF(pdfData); err != nil {
		return models.ProcessResult{Success: false, Error: err.Error()}
	}

	logCtx := slog.With("documentId", documentID)
	logCtx.Info("Starting document processing.", "bytes", len(pdfData))

	tempDir, err := os.MkdirTemp("", "docraster-*")
	if err != nil {
		return p.fail(ctx, logCtx, documentID, "failed to create temp dir", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePdfPath := filepath.Join(tempDir, documentID+".pdf")
	if err := os.WriteFile(sourcePdfPath, pdfData, 0o600); err != nil {
		return p.fail(ctx, logCtx, documentID, "failed to write scratch PDF", err)
	}

	p.broker.Publish(ctx, models.ProgressEvent{
		DocumentID: documentID,
		Status:     models.ProgressInitializing,
		Message:    "Initializing PDF processing...",
	})

	stream, err := p.rasterizer.Open(sourcePdfPath, p.config.Scale)
	if err != nil {
		return p.fail(ctx, logCtx, documentID, "failed to open PDF for rasterization", err)
	}
	defer stream.Close()
	pageCount := stream.PageCount()

	updates := map[string]any{
		"status":       models.StatusProcessing,
		"pageCount":    pageCount,
		"errorMessage": "",
		"updatedAt":    time.Now(),
	}
	if err := p.records.UpdateDocument(ctx, documentID, updates); err != nil {
		return p.fail(ctx, logCtx, documentID, "failed to update document status to processing", err)
	}
	logCtx.Info("Rasterization started.", "pageCount", pageCount)

	p.broker.Publish(ctx, models.ProgressEvent{
		DocumentID: documentID,
		Status:     models.ProgressProcessing,
		Message:    "Starting page processing...",
		TotalPages: pageCount,
	})

	imageResults := make([]models.PageResult, 0, pageCount)
	imageURLs := make([]string, 0, pageCount)

	for pageNumber := 1; ; pageNumber++ {
		img, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The stream is not restartable; pages already committed stay
			// committed, the rest of the run is aborted.
			return p.fail(ctx, logCtx, documentID, "failed to rasterize page", err)
		}

		pct := int(math.Round(float64(pageNumber) / float64(pageCount) * 100))
		p.broker.Publish(ctx, models.ProgressEvent{
			DocumentID:  documentID,
			Status:      models.ProgressProcessing,
			Message:     fmt.Sprintf("Processing page %d of %d", pageNumber, pageCount),
			CurrentPage: pageNumber,
			TotalPages:  pageCount,
			Progress:    pct,
		})

		data, width, err := raster.Optimize(img, p.config.MaxImageWidth)
		if err != nil {
			logCtx.Error("Failed to optimize page image. Skipping page.", "pageNumber", pageNumber, "error", err)
			continue
		}

		object := fmt.Sprintf("%s/page%d.png", documentID, pageNumber)
		if err := p.blobs.Put(ctx, p.config.ImagesBucket, object, data, "image/png"); err != nil {
			// Deliberate partial-failure policy: one unavailable page must not
			// void an otherwise-successful multi-hundred-page conversion.
			logCtx.Error("Failed to upload page image. Skipping page.", "pageNumber", pageNumber, "error", err)
			continue
		}

		url := p.blobs.PublicURL(p.config.ImagesBucket, object)
		page := &models.Page{
			DocumentID: documentID,
			PageNumber: pageNumber,
			ImagePath:  object,
			ImageURL:   url,
			Metadata:   models.PageMetadata{Size: len(data), Width: width},
			CreatedAt:  time.Now(),
		}
		if err := p.records.InsertPage(ctx, page); err != nil {
			logCtx.Error("Failed to store page record.", "pageNumber", pageNumber, "error", err)
		}

		imageResults = append(imageResults, models.PageResult{Page: pageNumber, Path: object, URL: url})
		imageURLs = append(imageURLs, url)

		if err := p.records.UpdateDocument(ctx, documentID, map[string]any{"processedPages": pageNumber}); err != nil {
			logCtx.Error("Failed to update processed page count.", "pageNumber", pageNumber, "error", err)
		}
	}

	// Completion commit: the progress signal precedes the record update, so
	// partial visibility never shows a completed status without one.
	p.broker.Publish(ctx, models.ProgressEvent{
		DocumentID:  documentID,
		Status:      models.ProgressComplete,
		Message:     "Processing complete!",
		CurrentPage: pageCount,
		TotalPages:  pageCount,
		Progress:    100,
	})
	completed := map[string]any{
		"status":         models.StatusCompleted,
		"pageCount":      pageCount,
		"processedPages": pageCount,
		"updatedAt":      time.Now(),
	}
	if err := p.records.UpdateDocument(ctx, documentID, completed); err != nil {
		return p.fail(ctx, logCtx, documentID, "failed to update document status to completed", err)
	}

	logCtx.Info("Document processing complete.", "pageCount", pageCount, "committedPages", len(imageResults))
	return models.ProcessResult{
		Success:   true,
		PageCount: pageCount,
		Images:    imageResults,
		ImageURLs: imageURLs,
		Message:   fmt.Sprintf("Successfully processed %d pages", pageCount),
	}
}

// fail converts a fatal pipeline error into a terminal error status plus a
// structured result. Secondary failures while reporting the primary one are
// logged and swallowed so the caller always receives a single coherent
// result.
func (p *Processor) fail(ctx context.Context, logCtx *slog.Logger, documentID, message string, cause error) models.ProcessResult {
	fullError := fmt.Sprintf("%s: %v", message, cause)
	logCtx.Error(message, "error", cause)

	p.broker.Publish(ctx, models.ProgressEvent{
		DocumentID: documentID,
		Status:     models.ProgressError,
		Message:    "Processing failed",
		Error:      fullError,
	})

	updates := map[string]any{
		"status":       models.StatusError,
		"errorMessage": fullError,
		"updatedAt":    time.Now(),
	}
	if err := p.records.UpdateDocument(ctx, documentID, updates); err != nil {
		logCtx.Error("CRITICAL: Failed to update document status to error after a processing failure.", "updateError", err)
	}
	return models.ProcessResult{Success: false, Error: fullError}
}
