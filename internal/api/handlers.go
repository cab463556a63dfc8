// Package api exposes the HTTP surface: multipart PDF intake, document
// queries, and the SSE progress stream.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lllllllleong/docraster/internal/models"
	"github.com/Lllllllleong/docraster/internal/progress"
	"github.com/Lllllllleong/docraster/internal/services"
	"github.com/Lllllllleong/docraster/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxUploadBytes bounds multipart memory buffering for intake requests.
const maxUploadBytes = 64 << 20

// Handlers carries the request handlers' dependencies.
type Handlers struct {
	documents *services.DocumentService
	processor *services.Processor
	broker    *progress.Broker
}

// NewHandlers wires the HTTP handlers.
func NewHandlers(documents *services.DocumentService, processor *services.Processor, broker *progress.Broker) *Handlers {
	return &Handlers{documents: documents, processor: processor, broker: broker}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response.", "error", err)
	}
}

// readFilePart pulls the "file" part out of a multipart request.
func readFilePart(r *http.Request) (fileName, mimeType string, data []byte, err error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", "", nil, errors.New("no form data provided")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, errors.New("no file provided")
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return "", "", nil, errors.New("failed to read file data")
	}
	return header.Filename, header.Header.Get("Content-Type"), data, nil
}

// Upload accepts a PDF, stores it under a fresh document id and records the
// pending document.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	fileName, mimeType, data, err := readFilePart(r)
	if err != nil {
		writeJSON(w, models.UploadResponse{Success: false, Error: err.Error()})
		return
	}

	doc, err := h.documents.Upload(r.Context(), fileName, mimeType, data)
	if err != nil {
		writeJSON(w, models.UploadResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, models.UploadResponse{
		Success: true,
		ID:      doc.ID,
		Path:    doc.StoragePath,
		Message: "File uploaded successfully",
	})
}

// Process runs the conversion pipeline for an uploaded document. The request
// carries the document id and the PDF bytes; the response is the structured
// run result.
func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	_, mimeType, data, err := readFilePart(r)
	if err != nil {
		writeJSON(w, models.ProcessResult{Success: false, Error: err.Error()})
		return
	}
	documentID := r.FormValue("documentId")
	if documentID == "" {
		writeJSON(w, models.ProcessResult{Success: false, Error: "document ID is required"})
		return
	}
	if mimeType != services.PDFMimeType {
		writeJSON(w, models.ProcessResult{Success: false, Error: "only PDF files are supported"})
		return
	}

	writeJSON(w, h.processor.Process(r.Context(), documentID, data))
}

// ListDocuments returns all documents, newest first.
func (h *Handlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.List(r.Context())
	if err != nil {
		writeJSON(w, models.ListDocumentsResponse{Success: false, Error: err.Error()})
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, models.ListDocumentsResponse{Success: true, Data: docs})
}

// DocumentImages returns a document and its rendered pages.
func (h *Handlers) DocumentImages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, pages, err := h.documents.GetWithPages(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, models.DocumentImagesResponse{Success: false, Error: "Document not found"})
		return
	}
	if err != nil {
		writeJSON(w, models.DocumentImagesResponse{Success: false, Error: err.Error()})
		return
	}

	images := make([]models.ImageInfo, 0, len(pages))
	for _, page := range pages {
		images = append(images, models.ImageInfo{
			Name:     strings.TrimPrefix(page.ImagePath, id+"/"),
			Path:     page.ImagePath,
			URL:      page.ImageURL,
			Page:     page.PageNumber,
			Size:     page.Metadata.Size,
			Metadata: page.Metadata,
		})
	}
	writeJSON(w, models.DocumentImagesResponse{Success: true, Document: doc, Images: images})
}

// DeleteDocument removes a document and all its artifacts.
func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.documents.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, models.StatusResponse{Success: false, Error: "Document not found"})
			return
		}
		writeJSON(w, models.StatusResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, models.StatusResponse{Success: true})
}

// ProgressCheckpoint returns the last checkpointed progress event for a
// document, for subscribers that connected mid-run.
func (h *Handlers) ProgressCheckpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, err := h.broker.Checkpoint(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, models.StatusResponse{Success: false, Error: "No progress recorded"})
		return
	}
	if err != nil {
		writeJSON(w, models.StatusResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, ev)
}
