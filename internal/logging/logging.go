// Package logging configures the process logger and carries request-scoped
// entries through contexts.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type contextKey string

const entryKey contextKey = "logger"

// Setup configures the standard logrus logger and returns it.
func Setup(level, format string) (*logrus.Logger, error) {
	return setup(logrus.StandardLogger(), os.Stdout, level, format)
}

func setup(logger *logrus.Logger, out io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	logger.SetOutput(out)
	logger.SetLevel(lvl)
	return logger, nil
}

// WithContext stores entry in ctx.
func WithContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, entryKey, entry)
}

// FromContext returns the request-scoped entry, or one on the standard logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(entryKey).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
