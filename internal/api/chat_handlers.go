package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"karebot/internal/domain"
	"karebot/internal/language"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply          domain.Turn `json:"reply"`
	ConversationID string      `json:"conversation_id"`
	Language       string      `json:"language"`
	// LanguageName is the display name shown by the widget's language
	// indicator.
	LanguageName string `json:"language_name"`
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var input chatRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	s.processMessage(w, r, input.Message)
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

// handleVoiceTranscript feeds a finalized speech transcript through the same
// pipeline as a typed message.
func (s *Server) handleVoiceTranscript(w http.ResponseWriter, r *http.Request) {
	var input transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	s.processMessage(w, r, input.Transcript)
}

func (s *Server) processMessage(w http.ResponseWriter, r *http.Request, message string) {
	ctx := r.Context()
	if strings.TrimSpace(message) == "" {
		s.writeErr(ctx, w, http.StatusBadRequest, "message is required", "")
		return
	}

	reply, err := s.chat.Send(ctx, message)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}

	conv, err := s.store.ActiveConversation(ctx)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}

	tag := s.chat.Language()
	writeJSON(w, http.StatusOK, chatResponse{
		Reply:          reply,
		ConversationID: conv.ID,
		Language:       string(tag),
		LanguageName:   language.Name(tag),
	})
}

type lastMessageResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (s *Server) handleChatLast(w http.ResponseWriter, r *http.Request) {
	last, ok := s.chat.Last()
	if !ok {
		s.writeErr(r.Context(), w, http.StatusNotFound, "no reply yet", "")
		return
	}
	writeJSON(w, http.StatusOK, lastMessageResponse{
		Text:     last.Text,
		Language: string(last.Language),
	})
}

func (s *Server) handleChatReplay(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.ReplayLast(r.Context()); err != nil {
		s.writeErr(r.Context(), w, http.StatusInternalServerError, "replay failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
