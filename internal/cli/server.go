package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	transport "timed-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}
	logger := newLogger(cfg)
	warnInsecureDefaults(cfg, logger)

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.WithError(err).Warn("closing backends failed")
		}
	}()

	accounts := app.NewAccountService(b.store)
	quizzes := app.NewQuizService(b.store, b.locker, b.cache, app.NewHub(), logger)
	sessions := transport.NewSessionManager(cfg.Server.SessionSecret,
		config.TTLDuration(cfg.Server.SessionTTL, 24*time.Hour), cfg.Server.SecureCookies)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           transport.NewServer(accounts, quizzes, sessions, logger).Router(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).WithField("driver", cfg.Database.Driver).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server...")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
