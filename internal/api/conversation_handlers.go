package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// conversationSummary is the list-view projection of a conversation.
type conversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Turns       int       `json:"turns"`
	LastUpdated time.Time `json:"last_updated"`
	Active      bool      `json:"active"`
}

func (s *Server) handleConversationsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convs, err := s.store.ListConversations(ctx)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	active, err := s.store.ActiveConversation(ctx)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}

	out := make([]conversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationSummary{
			ID:          c.ID,
			Title:       c.Title,
			Turns:       len(c.Turns),
			LastUpdated: c.LastUpdated,
			Active:      c.ID == active.ID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConversationCreate(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.CreateConversation(r.Context())
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleConversationActive(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.ActiveConversation(r.Context())
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleConversationActivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "conversation id is required", "")
		return
	}
	conv, err := s.store.SwitchActive(r.Context(), id)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// handleConversationExport streams the active conversation as a JSON file
// download.
func (s *Server) handleConversationExport(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.ActiveConversation(r.Context())
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}

	filename := fmt.Sprintf("kare-chat-%d.json", time.Now().UnixMilli())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(conv)
}

func (s *Server) handleConversationsClear(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.ClearAll(r.Context())
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}
