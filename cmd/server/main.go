package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Lllllllleong/docraster/internal/api"
	"github.com/Lllllllleong/docraster/internal/gcp"
	"github.com/Lllllllleong/docraster/internal/progress"
	"github.com/Lllllllleong/docraster/internal/raster"
	"github.com/Lllllllleong/docraster/internal/services"
	"github.com/Lllllllleong/docraster/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("Server exited with error.", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sourceBucket := gcp.GetEnv("SOURCE_BUCKET", "documents")
	imagesBucket := gcp.GetEnv("IMAGES_BUCKET", "document-images")
	listenAddr := gcp.GetEnv("LISTEN_ADDR", ":8080")
	scale := envFloat("RASTER_SCALE", 2.0)
	maxWidth := envInt("MAX_IMAGE_WIDTH", raster.DefaultMaxWidth)

	var blobs store.BlobStore
	var records store.RecordStore

	projectID := gcp.GetEnv("GCP_PROJECT", "")
	if projectID != "" {
		gcsStore, err := gcp.NewBlobStore(ctx)
		if err != nil {
			return err
		}
		defer gcsStore.Close()

		fsStore, err := gcp.NewRecordStore(ctx, projectID, gcp.Collections{
			Documents: gcp.GetEnv("FIRESTORE_DOCUMENTS", "documents"),
			Pages:     gcp.GetEnv("FIRESTORE_PAGES", "document_pages"),
			Progress:  gcp.GetEnv("FIRESTORE_PROGRESS", "document_progress"),
		})
		if err != nil {
			return err
		}
		defer fsStore.Close()

		blobs, records = gcsStore, fsStore
		slog.Info("Using GCP storage.", "projectId", projectID, "sourceBucket", sourceBucket, "imagesBucket", imagesBucket)
	} else {
		memory := store.NewMemory()
		blobs, records = memory, memory
		slog.Warn("GCP_PROJECT not set. Using in-memory storage; all data is lost on restart.")
	}

	broker := progress.NewBroker(records)
	documents := services.NewDocumentService(blobs, records, services.DocumentConfig{
		SourceBucket: sourceBucket,
		ImagesBucket: imagesBucket,
	})
	processor := services.NewProcessor(blobs, records, broker, raster.NewFitz(), services.ProcessorConfig{
		ImagesBucket:  imagesBucket,
		Scale:         scale,
		MaxImageWidth: maxWidth,
	})

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           api.NewRouter(api.NewHandlers(documents, processor, broker)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening.", "addr", listenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func envFloat(key string, fallback float64) float64 {
	raw := gcp.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("Invalid numeric environment value. Using fallback.", "key", key, "value", raw)
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	raw := gcp.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid numeric environment value. Using fallback.", "key", key, "value", raw)
		return fallback
	}
	return value
}
