// Package common provides the structured-logging helpers shared by
// the provider's components and the HTTP boundary.
package common

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"eve.evalgo.org/version"
)

// Logger is the package-level default every ContextLogger falls back
// to when constructed without an explicit logrus instance.
var Logger = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})
	if level, err := logrus.ParseLevel(os.Getenv("ENTITYSTORED_LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}
	if os.Getenv("ENTITYSTORED_LOG_FORMAT") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}
	return logger
}

// ContextLogger carries a set of base fields attached to every line
// it emits. With* methods return a derived logger; the receiver is
// never mutated, so a component can hand out scoped children freely.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewContextLogger creates a context logger over logger (nil means
// the package default) with the given base fields.
func NewContextLogger(logger *logrus.Logger, fields map[string]any) *ContextLogger {
	if logger == nil {
		logger = Logger
	}
	base := make(logrus.Fields, len(fields))
	for k, v := range fields {
		base[k] = v
	}
	return &ContextLogger{logger: logger, fields: base}
}

func (cl *ContextLogger) derive(extra map[string]any) *ContextLogger {
	fields := make(logrus.Fields, len(cl.fields)+len(extra))
	for k, v := range cl.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &ContextLogger{logger: cl.logger, fields: fields}
}

// WithField returns a child logger with one extra field.
func (cl *ContextLogger) WithField(key string, value any) *ContextLogger {
	return cl.derive(map[string]any{key: value})
}

// WithFields returns a child logger with the extra fields.
func (cl *ContextLogger) WithFields(fields map[string]any) *ContextLogger {
	return cl.derive(fields)
}

// WithError returns a child logger carrying the error message.
func (cl *ContextLogger) WithError(err error) *ContextLogger {
	return cl.WithField("error", err.Error())
}

// WithContext returns a child logger carrying the request id, if the
// context has one.
func (cl *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	if requestID := ctx.Value("request_id"); requestID != nil {
		return cl.WithField("request_id", requestID)
	}
	return cl
}

func (cl *ContextLogger) Debug(msg string) { cl.logger.WithFields(cl.fields).Debug(msg) }
func (cl *ContextLogger) Info(msg string)  { cl.logger.WithFields(cl.fields).Info(msg) }
func (cl *ContextLogger) Warn(msg string)  { cl.logger.WithFields(cl.fields).Warn(msg) }
func (cl *ContextLogger) Error(msg string) { cl.logger.WithFields(cl.fields).Error(msg) }

func (cl *ContextLogger) Debugf(format string, args ...any) {
	cl.logger.WithFields(cl.fields).Debugf(format, args...)
}

func (cl *ContextLogger) Infof(format string, args ...any) {
	cl.logger.WithFields(cl.fields).Infof(format, args...)
}

func (cl *ContextLogger) Warnf(format string, args ...any) {
	cl.logger.WithFields(cl.fields).Warnf(format, args...)
}

func (cl *ContextLogger) Errorf(format string, args ...any) {
	cl.logger.WithFields(cl.fields).Errorf(format, args...)
}

// ServiceLogger creates a logger pre-stamped with a component name,
// its version, and the module build version.
func ServiceLogger(serviceName, serviceVersion string) *ContextLogger {
	return NewContextLogger(Logger, map[string]any{
		"service":       serviceName,
		"version":       serviceVersion,
		"build_version": version.GetVersion(),
	})
}

// LogDuration stamps the start of an operation and returns a func to
// defer; the deferred call logs the elapsed time.
func LogDuration(logger *ContextLogger, operation string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		logger.WithFields(map[string]any{
			"operation":   operation,
			"duration_ms": elapsed.Milliseconds(),
		}).Info("operation completed")
	}
}
