package cli

import (
	"os"

	"github.com/sirupsen/logrus"

	"timed-quiz-service/internal/config"
)

// newLogger builds the process logger from the log section.
func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithField("level", cfg.Log.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// warnInsecureDefaults flags settings that are only safe in development.
func warnInsecureDefaults(cfg config.Config, logger logrus.FieldLogger) {
	if cfg.UsesDefaultSecret() {
		logger.Warn("session_secret is the built-in development key; set SECRET_KEY before deploying")
	}
}
