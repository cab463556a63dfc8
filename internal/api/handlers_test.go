package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/Lllllllleong/docraster/internal/models"
	"github.com/Lllllllleong/docraster/internal/progress"
	"github.com/Lllllllleong/docraster/internal/raster"
	"github.com/Lllllllleong/docraster/internal/services"
	"github.com/Lllllllleong/docraster/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdfStub = []byte("%PDF-1.4\nstub")

type stubRasterizer struct{ pages int }

func (s *stubRasterizer) Open(string, float64) (raster.PageStream, error) {
	return &stubStream{pages: s.pages}, nil
}

type stubStream struct{ pages, next int }

func (s *stubStream) PageCount() int { return s.pages }

func (s *stubStream) Next() (image.Image, error) {
	if s.next >= s.pages {
		return nil, io.EOF
	}
	s.next++
	img := image.NewRGBA(image.Rect(0, 0, 80, 100))
	img.Set(0, 0, color.RGBA{A: 255})
	return img, nil
}

func (s *stubStream) Close() error { return nil }

type testApp struct {
	router http.Handler
	memory *store.Memory
	broker *progress.Broker
}

func newTestApp(pages int) *testApp {
	memory := store.NewMemory()
	broker := progress.NewBroker(memory)
	documents := services.NewDocumentService(memory, memory, services.DocumentConfig{
		SourceBucket: "documents",
		ImagesBucket: "document-images",
	})
	processor := services.NewProcessor(memory, memory, broker, &stubRasterizer{pages: pages}, services.ProcessorConfig{
		ImagesBucket: "document-images",
	})
	return &testApp{
		router: NewRouter(NewHandlers(documents, processor, broker)),
		memory: memory,
		broker: broker,
	}
}

func multipartPDF(t *testing.T, contentType string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="test.pdf"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(pdfStub)
	require.NoError(t, err)

	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doJSON(t *testing.T, router http.Handler, req *http.Request, out any) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestUploadProcessAndDeleteRoundtrip(t *testing.T) {
	app := newTestApp(2)

	// Upload.
	body, contentType := multipartPDF(t, "application/pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	var uploaded models.UploadResponse
	doJSON(t, app.router, req, &uploaded)
	require.True(t, uploaded.Success, uploaded.Error)
	require.NotEmpty(t, uploaded.ID)
	assert.Equal(t, uploaded.ID+".pdf", uploaded.Path)

	// Listing shows the pending document.
	var list models.ListDocumentsResponse
	doJSON(t, app.router, httptest.NewRequest(http.MethodGet, "/api/documents", nil), &list)
	require.True(t, list.Success)
	require.Len(t, list.Data, 1)
	assert.Equal(t, models.StatusPending, list.Data[0].Status)

	// Process.
	body, contentType = multipartPDF(t, "application/pdf", map[string]string{"documentId": uploaded.ID})
	req = httptest.NewRequest(http.MethodPost, "/api/pdf/process", body)
	req.Header.Set("Content-Type", contentType)
	var result models.ProcessResult
	doJSON(t, app.router, req, &result)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 2, result.PageCount)
	require.Len(t, result.Images, 2)

	// Detail returns the document and its ordered images.
	var detail models.DocumentImagesResponse
	doJSON(t, app.router, httptest.NewRequest(http.MethodGet, "/api/documents/"+uploaded.ID+"/images", nil), &detail)
	require.True(t, detail.Success, detail.Error)
	assert.Equal(t, models.StatusCompleted, detail.Document.Status)
	require.Len(t, detail.Images, 2)
	assert.Equal(t, "page1.png", detail.Images[0].Name)
	assert.Equal(t, 1, detail.Images[0].Page)
	assert.Positive(t, detail.Images[0].Size)

	// Checkpoint holds the terminal event.
	var checkpoint models.ProgressEvent
	doJSON(t, app.router, httptest.NewRequest(http.MethodGet, "/api/pdf/progress/"+uploaded.ID+"/checkpoint", nil), &checkpoint)
	assert.Equal(t, models.ProgressComplete, checkpoint.Status)
	assert.Equal(t, 100, checkpoint.Progress)

	// Delete removes everything.
	var deleted models.StatusResponse
	doJSON(t, app.router, httptest.NewRequest(http.MethodDelete, "/api/documents/"+uploaded.ID, nil), &deleted)
	require.True(t, deleted.Success, deleted.Error)

	var gone models.DocumentImagesResponse
	doJSON(t, app.router, httptest.NewRequest(http.MethodGet, "/api/documents/"+uploaded.ID+"/images", nil), &gone)
	assert.False(t, gone.Success)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	app := newTestApp(1)
	body, contentType := multipartPDF(t, "text/plain", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	var resp models.UploadResponse
	doJSON(t, app.router, req, &resp)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "PDF")
}

func TestProcessRequiresDocumentID(t *testing.T) {
	app := newTestApp(1)
	body, contentType := multipartPDF(t, "application/pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/pdf/process", body)
	req.Header.Set("Content-Type", contentType)

	var resp models.ProcessResult
	doJSON(t, app.router, req, &resp)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "document ID")
}

func TestProgressStreamDeliversEvents(t *testing.T) {
	app := newTestApp(1)
	server := httptest.NewServer(app.router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/pdf/progress/doc-sse")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Wait until the handler has registered its subscription.
	require.Eventually(t, func() bool {
		return app.broker.SubscriberCount("doc-sse") == 1
	}, time.Second, 5*time.Millisecond)

	app.broker.Publish(context.Background(), models.ProgressEvent{
		DocumentID: "doc-sse",
		Status:     models.ProgressProcessing,
		Progress:   50,
	})
	app.broker.Publish(context.Background(), models.ProgressEvent{
		DocumentID: "doc-sse",
		Status:     models.ProgressComplete,
		Progress:   100,
	})

	// Terminal event ends the stream, so the body reads to EOF.
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var events []models.ProgressEvent
	for _, line := range bytes.Split(raw, []byte("\n")) {
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		var ev models.ProgressEvent
		require.NoError(t, json.Unmarshal(bytes.TrimPrefix(line, []byte("data: ")), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, models.ProgressProcessing, events[0].Status)
	assert.Equal(t, 50, events[0].Progress)
	assert.Equal(t, models.ProgressComplete, events[1].Status)
}
