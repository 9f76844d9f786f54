package logging

import "log/slog"

// Adapter wraps an *slog.Logger to satisfy the small Debug/Info/Warn/
// Error Logger interfaces used across this codebase (chunkserver.Logger,
// client.Logger).
type Adapter struct {
	l *slog.Logger
}

// NewAdapter builds an Adapter around l.
func NewAdapter(l *slog.Logger) *Adapter {
	return &Adapter{l: l}
}

func (a *Adapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *Adapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
