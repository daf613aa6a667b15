// ABOUTME: HTTP server exposing the chatbot over the v2 backend API
// ABOUTME: Serves the chat page, conversation turns, progress polling and project images
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/danruili/archlogic/internal/agent"
	"github.com/danruili/archlogic/internal/models"
)

// turnTimeout bounds one conversation turn end to end
const turnTimeout = 5 * time.Minute

// Agent is the conversational surface the server drives. Converse replays
// the client-side history and answers one message as a single operation, so
// concurrent conversations never see each other's state.
type Agent interface {
	Converse(ctx context.Context, history []models.Turn, userMessage string, progress *agent.Progress) models.TurnResult
}

// Server is the HTTP front end for the chatbot
type Server struct {
	bot       Agent
	registry  *agent.Registry
	sourceDir string
	host      string
	port      int
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies
func NewServer(bot Agent, sourceDir, host string, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		bot:       bot,
		registry:  agent.NewRegistry(),
		sourceDir: sourceDir,
		host:      host,
		port:      port,
		logger:    logger,
	}
}

// Routes builds the chi router with all handlers mounted
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(turnTimeout))

	r.Get("/", s.handleRoot)
	r.Get("/chat/", s.handleChatNew)
	r.Get("/chat/{conversationID}", s.handleChatPage)

	r.Post("/backend-api/v2/conversation", s.handleConversation)
	r.Get("/backend-api/v2/progress/{token}", s.handleProgress)
	r.Get("/backend-api/v2/img/*", s.handleImage)

	return r
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}
	s.logger.Info("starting web server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
