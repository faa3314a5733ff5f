package logging

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields represents structured logging key/value pairs.
type LogFields map[string]any

// ServiceLogger is the logging contract used by the router and its transports.
// It is a superset of what Watermill needs so the channel host can share the
// same logger through NewWatermillAdapter.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// LevelTrace sits below slog.LevelDebug, matching Watermill's trace level.
const LevelTrace = slog.LevelDebug - 4

// NewSlogServiceLogger wraps a slog.Logger so it satisfies ServiceLogger.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("bmc: slog logger cannot be nil")
	}
	return &slogServiceLogger{inner: log}
}

// NewWatermillServiceLogger wraps an existing Watermill LoggerAdapter.
// Watermill has no warning level, so Warn is emitted at info with a
// "level" field set to "warn".
func NewWatermillServiceLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("bmc: watermill logger cannot be nil")
	}
	return &watermillServiceLogger{inner: logger}
}

// NopLogger returns a ServiceLogger that discards everything.
func NopLogger() ServiceLogger {
	return NewWatermillServiceLogger(watermill.NopLogger{})
}

type slogServiceLogger struct {
	inner *slog.Logger
}

func (s *slogServiceLogger) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return s
	}
	return &slogServiceLogger{inner: s.inner.With(toSlogArgs(fields)...)}
}

func (s *slogServiceLogger) Debug(msg string, fields LogFields) {
	s.inner.Debug(msg, toSlogArgs(fields)...)
}

func (s *slogServiceLogger) Info(msg string, fields LogFields) {
	s.inner.Info(msg, toSlogArgs(fields)...)
}

func (s *slogServiceLogger) Warn(msg string, fields LogFields) {
	s.inner.Warn(msg, toSlogArgs(fields)...)
}

func (s *slogServiceLogger) Error(msg string, err error, fields LogFields) {
	args := toSlogArgs(fields)
	if err != nil {
		args = append(args, "error", err)
	}
	s.inner.Error(msg, args...)
}

func (s *slogServiceLogger) Trace(msg string, fields LogFields) {
	s.inner.Log(context.Background(), LevelTrace, msg, toSlogArgs(fields)...)
}

type watermillServiceLogger struct {
	inner watermill.LoggerAdapter
}

func (w *watermillServiceLogger) With(fields LogFields) ServiceLogger {
	return &watermillServiceLogger{inner: w.inner.With(toWatermillFields(fields))}
}

func (w *watermillServiceLogger) Debug(msg string, fields LogFields) {
	w.inner.Debug(msg, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Info(msg string, fields LogFields) {
	w.inner.Info(msg, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Warn(msg string, fields LogFields) {
	wf := toWatermillFields(fields)
	w.inner.Info(msg, wf.Add(watermill.LogFields{"level": "warn"}))
}

func (w *watermillServiceLogger) Error(msg string, err error, fields LogFields) {
	w.inner.Error(msg, err, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Trace(msg string, fields LogFields) {
	w.inner.Trace(msg, toWatermillFields(fields))
}

type serviceLoggerAdapter struct {
	base ServiceLogger
}

// NewWatermillAdapter converts a ServiceLogger into a Watermill LoggerAdapter so
// the channel host's pub/sub reuses the router logger.
func NewWatermillAdapter(log ServiceLogger) watermill.LoggerAdapter {
	if log == nil {
		panic("bmc: ServiceLogger cannot be nil")
	}
	return &serviceLoggerAdapter{base: log}
}

func (s *serviceLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	s.base.Error(msg, err, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	s.base.Info(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	s.base.Debug(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	s.base.Trace(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &serviceLoggerAdapter{base: s.base.With(fromWatermillFields(fields))}
}

func toWatermillFields(fields LogFields) watermill.LogFields {
	if len(fields) == 0 {
		return nil
	}
	return watermill.LogFields(fields)
}

func fromWatermillFields(fields watermill.LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	return LogFields(fields)
}

func toSlogArgs(fields LogFields) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
