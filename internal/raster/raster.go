// Package raster converts PDF pages into optimized page images. The
// Rasterizer contract yields pages lazily, one materialized image at a time,
// so multi-hundred-page documents never hold more than a single raster in
// memory.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfSignature is the content signature every well-formed PDF starts with.
var pdfSignature = []byte("%PDF-")

// ValidatePDF rejects input that cannot be a PDF before any side effect is
// taken.
func ValidatePDF(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("file data is empty")
	}
	if !bytes.HasPrefix(data, pdfSignature) {
		return fmt.Errorf("file does not have a PDF signature")
	}
	return nil
}

// PageStream is a forward-only sequence of rendered page images. Next returns
// io.EOF after the last page. The stream is not restartable: a mid-stream
// decode failure aborts the remainder but pages already yielded stay valid.
type PageStream interface {
	PageCount() int
	Next() (image.Image, error)
	Close() error
}

// Rasterizer opens a PDF file and produces its pages as raster images at the
// given scale (1.0 = 72 DPI).
type Rasterizer interface {
	Open(pdfPath string, scale float64) (PageStream, error)
}

// Fitz rasterizes PDFs with MuPDF via go-fitz. Open first rewrites the source
// through pdfcpu's relaxed optimizer, which both validates the file and
// repairs the structural damage MuPDF chokes on.
type Fitz struct{}

// NewFitz returns the MuPDF-backed rasterizer.
func NewFitz() *Fitz {
	return &Fitz{}
}

// Open validates and optimizes pdfPath, then opens the result for page
// rendering. A corrupt or unsupported PDF fails here, before any page is
// produced.
func (f *Fitz) Open(pdfPath string, scale float64) (PageStream, error) {
	optimized := optimizedPath(pdfPath)
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(pdfPath, optimized, cfg); err != nil {
		return nil, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}

	doc, err := fitz.New(optimized)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	pageCount := doc.NumPage()
	if pageCount == 0 {
		doc.Close()
		return nil, fmt.Errorf("PDF has no pages")
	}

	return &fitzStream{doc: doc, pageCount: pageCount, dpi: 72 * scale}, nil
}

func optimizedPath(pdfPath string) string {
	base := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath))
	return base + ".optimized.pdf"
}

type fitzStream struct {
	doc       *fitz.Document
	pageCount int
	dpi       float64
	next      int
	failed    bool
}

func (s *fitzStream) PageCount() int { return s.pageCount }

func (s *fitzStream) Next() (image.Image, error) {
	if s.failed {
		return nil, fmt.Errorf("page stream aborted by earlier decode failure")
	}
	if s.next >= s.pageCount {
		return nil, io.EOF
	}
	img, err := s.doc.ImageDPI(s.next, s.dpi)
	if err != nil {
		s.failed = true
		return nil, fmt.Errorf("failed to render page %d: %w", s.next+1, err)
	}
	s.next++
	return img, nil
}

func (s *fitzStream) Close() error {
	return s.doc.Close()
}
