package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "greencampus.log")
	var console bytes.Buffer
	lg, w, cleanup, err := New(path, "debug", &console)
	if err != nil {
		t.Fatal(err)
	}
	lg.Debug("hello", "k", "v")
	w.Write([]byte("access line\n"))
	cleanup()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, out := range []string{string(b), console.String()} {
		if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "k=v") {
			t.Fatalf("missing log record in %q", out)
		}
		if !strings.Contains(out, "access line") {
			t.Fatalf("missing access line in %q", out)
		}
	}
}

func TestLevelFilters(t *testing.T) {
	var console bytes.Buffer
	lg, _, cleanup, err := New("", "warn", &console)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	lg.Info("quiet")
	lg.Warn("loud")
	if strings.Contains(console.String(), "quiet") {
		t.Fatal("info should be filtered at warn level")
	}
	if !strings.Contains(console.String(), "loud") {
		t.Fatal("warn should be logged")
	}
}

func TestNoDestination(t *testing.T) {
	lg, w, cleanup, err := New("", "info", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	lg.Info("dropped")
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"other": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}
