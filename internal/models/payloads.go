package models

// These structs define the JSON payloads exchanged between the HTTP API and
// its clients.

// PageResult is one committed page in a ProcessResult.
type PageResult struct {
	Page int    `json:"page"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ProcessResult is the structured outcome of a document processing run.
// The orchestrator never fails past its own boundary; every run produces
// exactly one of these.
type ProcessResult struct {
	Success   bool         `json:"success"`
	PageCount int          `json:"pageCount,omitempty"`
	Images    []PageResult `json:"images,omitempty"`
	ImageURLs []string     `json:"imageUrls,omitempty"`
	Message   string       `json:"message,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// UploadResponse is the output of the upload endpoint.
type UploadResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListDocumentsResponse is the output of the document listing endpoint.
type ListDocumentsResponse struct {
	Success bool       `json:"success"`
	Data    []Document `json:"data"`
	Error   string     `json:"error,omitempty"`
}

// ImageInfo is one page image in a DocumentImagesResponse.
type ImageInfo struct {
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	URL      string       `json:"url"`
	Page     int          `json:"page"`
	Size     int          `json:"size"`
	Metadata PageMetadata `json:"metadata"`
}

// DocumentImagesResponse is the output of the document detail endpoint.
type DocumentImagesResponse struct {
	Success  bool        `json:"success"`
	Document *Document   `json:"document,omitempty"`
	Images   []ImageInfo `json:"images"`
	Error    string      `json:"error,omitempty"`
}

// StatusResponse is a minimal success/error envelope.
type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
