// ABOUTME: Renders the embedded single-page chat client
// ABOUTME: The page keeps conversation history in the browser and replays it per turn
package web

import (
	_ "embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/index.html
var chatPageHTML string

var chatPage = template.Must(template.New("chat").Parse(chatPageHTML))

func (s *Server) renderChat(w http.ResponseWriter, chatID string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chatPage.Execute(w, struct{ ChatID string }{ChatID: chatID}); err != nil {
		s.logger.Error("rendering chat page", zap.Error(err))
	}
}
