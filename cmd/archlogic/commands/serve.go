// ABOUTME: CLI command to serve the web chat front end
// ABOUTME: Runs the chi server until interrupted, then shuts down gracefully
package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danruili/archlogic/internal/web"
)

var (
	serveHost string
	servePort int
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web chat interface",
		Long: `Start the HTTP server: the chat page, the conversation API, turn
progress polling and project image serving.

Examples:
  archlogic serve
  archlogic serve --host 0.0.0.0 --port 8080`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Listen address")
	cmd.Flags().IntVar(&servePort, "port", 1338, "Listen port")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	bot, err := newChatbot(cfg, logger)
	if err != nil {
		return err
	}

	srv := web.NewServer(bot, cfg.DataRoot, serveHost, servePort, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
