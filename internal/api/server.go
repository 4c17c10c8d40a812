// Package api exposes the HTTP interface for the media gateway.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/genmedia-gateway/internal/combine"
	"github.com/JakeFAU/genmedia-gateway/internal/config"
	"github.com/JakeFAU/genmedia-gateway/internal/credential"
	"github.com/JakeFAU/genmedia-gateway/internal/dispatch"
	"github.com/JakeFAU/genmedia-gateway/internal/relay"
	"github.com/JakeFAU/genmedia-gateway/internal/telemetry"
)

// multipartMemory bounds what ParseMultipartForm keeps in memory before
// spooling parts to disk.
const multipartMemory = 64 << 20

// Server wires HTTP handlers to the dispatcher, relay, and combiner.
type Server struct {
	router   chi.Router
	dispatch *dispatch.Dispatcher
	relay    *relay.Relay
	combiner *combine.Pipeline
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	dispatcher *dispatch.Dispatcher,
	mediaRelay *relay.Relay,
	combiner *combine.Pipeline,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		dispatch: dispatcher,
		relay:    mediaRelay,
		combiner: combiner,
		cfg:      cfg,
		logger:   logger,
	}

	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(telemetry.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/video/combine", s.combineVideos)
		// The relay streams and must not sit behind a buffering
		// timeout handler.
		r.Get("/{service}/download-video", s.downloadVideo)
		r.With(timeoutMiddleware(timeout)).Post("/{service}/{action}", s.dispatchAction)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// dispatchAction forwards one provider call: POST /api/{service}/{action}.
func (s *Server) dispatchAction(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	action := chi.URLParam(r, "action")

	var payload map[string]any
	if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable request body")
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON")
				return
			}
		}
	}

	result, err := s.dispatch.Dispatch(r.Context(), dispatch.Request{
		Service: service,
		Action:  action,
		Path:    "/api/" + service + "/" + action,
		Kind:    actionKind(action),
		Payload: payload,
		Token:   bearerToken(r),
	})
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	if result.Class == dispatch.ClassBadUpstream {
		writeError(w, http.StatusBadGateway, result.RawBody)
		return
	}
	if result.Retriable {
		w.Header().Set("X-Retriable", "true")
	}
	writeJSON(w, result.StatusCode, result.Body)
}

func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	var transport *dispatch.TransportError
	switch {
	case errors.Is(err, credential.ErrAuthMissing):
		writeError(w, http.StatusUnauthorized, "no credential available")
	case errors.As(err, &transport):
		writeError(w, http.StatusBadGateway, "provider unreachable")
	default:
		s.logger.Error("dispatch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// downloadVideo relays remote media bytes: GET /api/{service}/download-video?url=.
func (s *Server) downloadVideo(w http.ResponseWriter, r *http.Request) {
	remoteURL := r.URL.Query().Get("url")
	if remoteURL == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	if !strings.HasPrefix(remoteURL, "http://") && !strings.HasPrefix(remoteURL, "https://") {
		writeError(w, http.StatusBadRequest, "url must be absolute http(s)")
		return
	}
	s.relay.Stream(w, r, remoteURL)
}

// combineVideos joins uploaded clips: POST /api/video/combine, multipart
// field "videos".
func (s *Server) combineVideos(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	headers := r.MultipartForm.File["videos"]
	if len(headers) < 2 {
		writeError(w, http.StatusBadRequest, "at least two video files required")
		return
	}
	maxFiles := s.cfg.Combine.MaxFiles
	if maxFiles > 0 && len(headers) > maxFiles {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("at most %d video files allowed", maxFiles))
		return
	}
	maxBytes := s.cfg.Combine.MaxFileBytes
	for _, fh := range headers {
		if maxBytes > 0 && fh.Size > maxBytes {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file %q exceeds the %d byte limit", fh.Filename, maxBytes))
			return
		}
	}

	inputs, closeAll, err := openUploads(headers)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable upload")
		return
	}
	defer closeAll()

	result, err := s.combiner.Combine(r.Context(), inputs)
	if err != nil {
		s.writeCombineError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Name+`"`)
	if _, err := w.Write(result.Data); err != nil {
		s.logger.Warn("combined artifact write failed", zap.Error(err))
	}
}

func (s *Server) writeCombineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, combine.ErrEncoderUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":      "media encoder unavailable",
			"suggestion": "install ffmpeg and ensure it is on PATH",
		})
	case errors.Is(err, combine.ErrTooFewInputs), errors.Is(err, combine.ErrTooManyInputs):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("combine failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to combine videos")
	}
}

func openUploads(headers []*multipart.FileHeader) ([]combine.Input, func(), error) {
	inputs := make([]combine.Input, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
		}
		files = append(files, f)
		inputs = append(inputs, combine.Input{Name: fh.Filename, Data: f})
	}
	return inputs, closeAll, nil
}

// actionKind maps the action segment onto a dispatch kind.
func actionKind(action string) dispatch.ActionKind {
	switch {
	case action == "status" || strings.HasSuffix(action, "-status"):
		return dispatch.KindStatus
	case action == "upload" || strings.HasSuffix(action, "-upload"):
		return dispatch.KindUpload
	case action == "health" || action == "ping":
		return dispatch.KindHealth
	default:
		return dispatch.KindGeneration
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
