package api

import (
	"encoding/json"
	"io"
	"net/http"
)

// maxSettingValueBytes bounds a single preference payload.
const maxSettingValueBytes = 4 << 10

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.Settings(r.Context())
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleSettingUpdate sets one preference. The request body is the raw JSON
// value for the key, e.g. `true` for voiceOutput or `"dark"` for theme.
func (s *Server) handleSettingUpdate(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "setting key is required", "")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingValueBytes))
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "failed to read request body", err.Error())
		return
	}
	if !json.Valid(body) {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid JSON value", "")
		return
	}

	settings, err := s.store.SetSetting(r.Context(), key, json.RawMessage(body))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
