// Package logging builds the process logger.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New creates a text slog logger writing to the file at path and, when
// console is non-nil, to console as well. The returned writer is the same
// destination, for access logs. An empty path logs to console only, or
// nowhere when console is nil.
func New(path, level string, console io.Writer) (*slog.Logger, io.Writer, func(), error) {
	var writers []io.Writer
	cleanup := func() {}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, cleanup, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, cleanup, err
		}
		writers = append(writers, f)
		cleanup = func() {
			_ = f.Sync()
			_ = f.Close()
		}
	}
	if console != nil {
		writers = append(writers, console)
	}

	var w io.Writer = io.Discard
	if len(writers) > 0 {
		w = io.MultiWriter(writers...)
	}
	lg := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	log.SetOutput(w)
	return lg, w, cleanup, nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
