package api

import (
	"context"
	"net/http"
	"os"

	apidocs "karebot/docs"
	webui "karebot/web"
)

func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(apidocs.OpenAPISpec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       os.Getenv("APP_VERSION"),
		"voice_enabled": s.voice != nil,
	})
}

// ReadinessResponse represents the JSON response for the readiness check endpoint.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady checks if the application is ready to accept traffic.
// Unlike /healthz (liveness), this endpoint verifies that dependencies are
// accessible. Returns 200 OK if all checks pass, 503 Service Unavailable
// otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	ctx := r.Context()
	checks := make(map[string]string)
	status := "ok"

	// Storage check: use Ping if the store supports it, otherwise fall back
	// to listing conversations.
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if hc, ok := s.store.(pinger); ok {
		if err := hc.Ping(ctx); err != nil {
			checks["storage"] = "error"
			status = "unhealthy"
			s.logger.ErrorContext(ctx, "readiness check failed", appendRequestID(ctx, []any{
				"check", "storage",
				"error", err.Error(),
			})...)
		} else {
			checks["storage"] = "ok"
		}
	} else {
		_, err := s.store.ListConversations(ctx)
		if err != nil {
			checks["storage"] = "error"
			status = "unhealthy"
			s.logger.ErrorContext(ctx, "readiness check failed", appendRequestID(ctx, []any{
				"check", "storage",
				"error", err.Error(),
			})...)
		} else {
			checks["storage"] = "ok"
		}
	}

	resp := ReadinessResponse{
		Status: status,
		Checks: checks,
	}

	if status == "ok" {
		writeJSON(w, http.StatusOK, resp)
	} else {
		writeJSON(w, http.StatusServiceUnavailable, resp)
	}
}

// handleIndex serves the chat widget page at the root route.
func (s *Server) handleIndex() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(webui.Index)
	})
}
