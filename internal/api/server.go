package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"karebot/internal/chat"
	"karebot/internal/observability"
	"karebot/internal/storage"
	"karebot/internal/voice"
)

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server exposes the chat pipeline, conversation history, settings and
// voice control over HTTP.
type Server struct {
	mux     *http.ServeMux
	store   storage.Store
	chat    *chat.Service
	voice   *voice.Controller
	logger  observability.Logger
	metrics *observability.Metrics
}

// NewServer creates a new HTTP server with the given dependencies.
// If logger is nil, a default logger will be used.
// If metrics is nil, metrics collection is disabled.
// The voice controller may be nil when no speech backend is configured.
func NewServer(mux *http.ServeMux, store storage.Store, svc *chat.Service, vc *voice.Controller, logger observability.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &Server{mux: mux, store: store, chat: svc, voice: vc, logger: logger, metrics: metrics}
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	fields = appendRequestID(ctx, fields)
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		sentry.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

// writeStoreErr maps a storage-layer error to the appropriate HTTP status code
// and writes the error response. It uses errors.Is() to detect sentinel errors
// from the storage package, falling back to 500 Internal Server Error for
// unknown errors. A pipeline busy error maps to 409 Conflict so clients can
// retry once the in-flight message finishes.
func (s *Server) writeStoreErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrBusy):
		s.writeErr(ctx, w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, storage.ErrNotFound):
		s.writeErr(ctx, w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, storage.ErrConflict):
		s.writeErr(ctx, w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, storage.ErrValidation):
		s.writeErr(ctx, w, http.StatusBadRequest, err.Error(), "")
	default:
		s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }

// RegisterRoutes registers all HTTP routes on the server's mux.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/openapi.yaml", s.handleOpenAPISpec)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
	s.mux.Handle("/", s.handleIndex())

	s.mux.HandleFunc("POST /api/v1/chat", s.handleChatSend)
	s.mux.HandleFunc("POST /api/v1/voice/transcript", s.handleVoiceTranscript)
	s.mux.HandleFunc("GET /api/v1/chat/last", s.handleChatLast)
	s.mux.HandleFunc("POST /api/v1/chat/replay", s.handleChatReplay)

	s.mux.HandleFunc("GET /api/v1/conversations", s.handleConversationsList)
	s.mux.HandleFunc("POST /api/v1/conversations", s.handleConversationCreate)
	s.mux.HandleFunc("DELETE /api/v1/conversations", s.handleConversationsClear)
	s.mux.HandleFunc("GET /api/v1/conversations/active", s.handleConversationActive)
	s.mux.HandleFunc("GET /api/v1/conversations/active/export", s.handleConversationExport)
	s.mux.HandleFunc("POST /api/v1/conversations/{id}/activate", s.handleConversationActivate)

	s.mux.HandleFunc("GET /api/v1/settings", s.handleSettingsGet)
	s.mux.HandleFunc("PUT /api/v1/settings/{key}", s.handleSettingUpdate)
}
