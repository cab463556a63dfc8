package models

import "time"

// Document lifecycle statuses. Transitions are monotonic within a run:
// pending -> processing -> completed | error. A terminal state is only left
// by an explicit new processing invocation.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Document is the master record for an uploaded PDF. It tracks overall
// status and conversion metadata for the file.
type Document struct {
	ID             string    `firestore:"-" json:"id"`
	FileName       string    `firestore:"fileName,omitempty" json:"fileName"`
	FileSize       int64     `firestore:"fileSize,omitempty" json:"fileSize"`
	MimeType       string    `firestore:"mimeType,omitempty" json:"mimeType"`
	StoragePath    string    `firestore:"storagePath,omitempty" json:"storagePath"`
	Status         string    `firestore:"status,omitempty" json:"status"`
	PageCount      int       `firestore:"pageCount,omitempty" json:"pageCount"`
	ProcessedPages int       `firestore:"processedPages" json:"processedPages"`
	ErrorMessage   string    `firestore:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt,omitempty" json:"updatedAt"`
}

// PageMetadata describes the stored rendition of a single page.
type PageMetadata struct {
	Size  int `firestore:"size" json:"size"`
	Width int `firestore:"width" json:"width"`
}

// Page is one rendered page image belonging to a Document. Pages are created
// one at a time in rasterization order and never mutated afterwards.
type Page struct {
	DocumentID string       `firestore:"documentId" json:"documentId"`
	PageNumber int          `firestore:"pageNumber" json:"pageNumber"`
	ImagePath  string       `firestore:"imagePath" json:"imagePath"`
	ImageURL   string       `firestore:"imageUrl" json:"imageUrl"`
	Metadata   PageMetadata `firestore:"metadata" json:"metadata"`
	CreatedAt  time.Time    `firestore:"createdAt,omitempty" json:"createdAt"`
}

// Progress event statuses. Per document run the sequence is
// initializing -> processing (0..N times) -> complete | error.
const (
	ProgressInitializing = "initializing"
	ProgressProcessing   = "processing"
	ProgressComplete     = "complete"
	ProgressError        = "error"
)

// ProgressEvent is a single progress update for a document run. Events are
// broadcast to live subscribers and checkpointed (upsert by document id) so
// late subscribers can recover last-known state.
type ProgressEvent struct {
	DocumentID  string    `firestore:"documentId" json:"documentId"`
	Status      string    `firestore:"status" json:"status"`
	Message     string    `firestore:"message" json:"message"`
	CurrentPage int       `firestore:"currentPage" json:"currentPage"`
	TotalPages  int       `firestore:"totalPages" json:"totalPages"`
	Progress    int       `firestore:"progress" json:"progress"`
	Error       string    `firestore:"error,omitempty" json:"error,omitempty"`
	UpdatedAt   time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// Terminal reports whether the event ends a run's progress stream.
func (e ProgressEvent) Terminal() bool {
	return e.Status == ProgressComplete || e.Status == ProgressError
}
