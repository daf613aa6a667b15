// ABOUTME: Request handlers for the v2 backend API
// ABOUTME: The conversation handler replays client history, the progress handler only observes
package web

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danruili/archlogic/internal/models"
)

// conversationRequest mirrors the payload the chat page posts per turn.
// The conversation history lives client-side and is replayed on every turn.
type conversationRequest struct {
	ConversationID string `json:"conversation_id"`
	Action         string `json:"action"`
	Meta           struct {
		ID      string `json:"id"`
		Content struct {
			Conversation []models.Turn `json:"conversation"`
			Parts        []models.Turn `json:"parts"`
		} `json:"content"`
	} `json:"meta"`
}

type conversationResponse struct {
	Content          string   `json:"content"`
	Status           string   `json:"status"`
	ProgressLogs     []string `json:"progress_logs"`
	ProcessingTimeMS int64    `json:"processing_time_ms"`
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Meta.Content.Parts) == 0 || req.Meta.Content.Parts[0].Content == "" {
		s.respondError(w, http.StatusBadRequest, "message is required")
		return
	}
	userMessage := req.Meta.Content.Parts[0].Content

	token := req.Meta.ID
	if token == "" {
		token = req.ConversationID
	}
	progress := s.registry.Start(token)
	// The page generates a fresh token per turn; without this the registry
	// grows for the life of the process.
	defer s.registry.Drop(token)

	s.logger.Debug("conversation turn",
		zap.String("conversation", req.ConversationID),
		zap.Int("history", len(req.Meta.Content.Conversation)))

	// r.Context() ends when the client disconnects, aborting the turn
	result := s.bot.Converse(r.Context(), req.Meta.Content.Conversation, userMessage, progress)

	s.respondJSON(w, http.StatusOK, conversationResponse{
		Content:          result.Content,
		Status:           string(result.Status),
		ProgressLogs:     result.ProgressLogs,
		ProcessingTimeMS: result.Elapsed.Milliseconds(),
	})
}

type progressResponse struct {
	ProgressLogs []string `json:"progress_logs"`
	Done         bool     `json:"done"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	progress := s.registry.Get(token)
	if progress == nil {
		s.respondError(w, http.StatusNotFound, "unknown token")
		return
	}
	s.respondJSON(w, http.StatusOK, progressResponse{
		ProgressLogs: progress.Lines(),
		Done:         progress.Done(),
	})
}

// handleImage serves project images from the dataset directory. The path is
// tried as-is and under raw/, so either the dataset root or the raw directory
// works as sourceDir.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	subpath := chi.URLParam(r, "*")
	cleaned := filepath.Clean("/" + subpath)
	if cleaned == "/" {
		s.respondError(w, http.StatusNotFound, "image not found")
		return
	}

	root, err := filepath.Abs(s.sourceDir)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "bad source directory")
		return
	}
	candidates := []string{
		filepath.Join(root, cleaned),
		filepath.Join(root, "raw", cleaned),
	}
	for _, full := range candidates {
		if !strings.HasPrefix(full, root+string(os.PathSeparator)) {
			continue
		}
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			http.ServeFile(w, r, full)
			return
		}
	}
	s.respondError(w, http.StatusNotFound, "image not found")
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/chat/", http.StatusFound)
}

func (s *Server) handleChatNew(w http.ResponseWriter, r *http.Request) {
	s.renderChat(w, uuid.NewString())
}

func (s *Server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	if !strings.Contains(id, "-") {
		http.Redirect(w, r, "/chat/", http.StatusFound)
		return
	}
	s.renderChat(w, id)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
