// Package rlog is a thin leveled wrapper around the standard log
// package. The teacher repo never reaches for zap/zerolog/logrus — every
// log call in bike-map-backend goes through log.Printf/log.Fatal — so
// the core does the same, just injected as a value instead of the bare
// package-level logger the teacher calls directly.
package rlog

import (
	"log"
	"os"
)

// Logger is a leveled logger backed by a *log.Logger.
type Logger struct {
	std *log.Logger
}

// New returns a Logger writing to stderr with the standard flags.
func New() *Logger {
	return &Logger{std: log.New(os.Stderr, "", log.LstdFlags)}
}

// Discard returns a Logger that drops everything, for tests.
func Discard() *Logger {
	return &Logger{std: log.New(discardWriter{}, "", 0)}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (l *Logger) Info(format string, args ...any) {
	l.std.Printf("INFO  "+format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.std.Printf("WARN  "+format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.std.Printf("ERROR "+format, args...)
}
