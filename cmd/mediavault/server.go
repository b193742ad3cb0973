package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediavault/mediavault/internal/logger"
	"github.com/mediavault/mediavault/internal/ratelimiter"
	"github.com/mediavault/mediavault/pkg/config"
	"github.com/mediavault/mediavault/pkg/media"
	"github.com/mediavault/mediavault/pkg/metrics"
)

// server is the HTTP surface over the media storage coordinator.
//
// It is deliberately thin: request parsing and transport concerns live
// here, everything about where bytes end up lives in pkg/media.
type server struct {
	cfg           config.ServerConfig
	storage       *media.MediaStorage
	uploadLimiter *ratelimiter.RateLimiter
}

func newServer(cfg config.ServerConfig, storage *media.MediaStorage, uploadLimiter *ratelimiter.RateLimiter) *server {
	return &server{
		cfg:           cfg,
		storage:       storage,
		uploadLimiter: uploadLimiter,
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *server) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /media/{server}/{mediaID}", s.handleDownload)
	mux.HandleFunc("GET /media/{server}/{mediaID}/thumbnail", s.handleThumbnail)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if metrics.IsEnabled() {
		mux.Handle("GET /metrics", promhttp.HandlerFor(
			metrics.GetRegistry(),
			promhttp.HandlerOpts{},
		))
	}

	httpSrv := &http.Server{
		Addr:    net.JoinHostPort(s.cfg.BindAddress, strconv.Itoa(s.cfg.Port)),
		Handler: mux,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleUpload stores the request body as a new local media object and
// returns its generated media ID.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.uploadLimiter.Allow() {
		http.Error(w, "upload rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var body io.Reader = r.Body
	if s.cfg.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	info := &media.FileInfo{FileID: uuid.New().String()}

	start := time.Now()
	_, err := s.storage.StoreInto(r.Context(), info, func(f io.Writer) error {
		_, cerr := io.Copy(f, body)
		return cerr
	})
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}

	logger.Info("stored upload %s (%v)", info.FileID, time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"media_id":%q}`+"\n", info.FileID)
}

// handleDownload streams a stored media object. The server path element
// "local" selects locally-originated media.
func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	info := &media.FileInfo{FileID: r.PathValue("mediaID")}
	if origin := r.PathValue("server"); origin != "local" {
		info.ServerName = origin
	}

	s.respondWithMedia(w, r, info)
}

// handleThumbnail streams a stored thumbnail, selected by the width,
// height, type and method query parameters.
func (s *server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	width, werr := strconv.Atoi(r.URL.Query().Get("width"))
	height, herr := strconv.Atoi(r.URL.Query().Get("height"))
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		http.Error(w, "invalid thumbnail dimensions", http.StatusBadRequest)
		return
	}

	contentType := r.URL.Query().Get("type")
	method := r.URL.Query().Get("method")
	if method == "" {
		method = "scale"
	}

	info := &media.FileInfo{
		FileID: r.PathValue("mediaID"),
		Thumbnail: &media.ThumbnailInfo{
			Width:       width,
			Height:      height,
			ContentType: contentType,
			Method:      method,
		},
	}
	if origin := r.PathValue("server"); origin != "local" {
		info.ServerName = origin
	}

	s.respondWithMedia(w, r, info)
}

func (s *server) respondWithMedia(w http.ResponseWriter, r *http.Request, info *media.FileInfo) {
	res, err := s.storage.FetchMedia(r.Context(), info)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	defer res.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if err := res.WriteTo(r.Context(), w); err != nil {
		// Headers are gone; all we can do is log and drop the connection.
		logger.Warn("failed streaming %s to client: %v", info, err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *server) writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, media.ErrMediaNotFound):
		// Spam rejections surface here too; they are indistinguishable
		// from missing media on purpose.
		http.Error(w, "media not found", http.StatusNotFound)
	case errors.Is(err, context.Canceled):
		logger.Debug("request aborted by client: %s", r.URL.Path)
	default:
		logger.Error("storage error on %s: %v", r.URL.Path, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
