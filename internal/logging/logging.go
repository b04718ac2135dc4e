// Package logging builds the node logger and supplies a silent fallback for
// components constructed without one.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New creates a text logger at the named level ("info" when empty).
func New(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	return logger, nil
}

// OrDiscard returns log, or a logger that drops everything when log is nil.
func OrDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log != nil {
		return log
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
