package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		" WARN": zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"bogus": zapcore.InfoLevel,
	}
	for name, want := range cases {
		if got := ParseLevel(name); got != want {
			t.Fatalf("level %q: expected %v, got %v", name, want, got)
		}
	}
}

func TestInitLoggingWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tlpwhere.log")
	sync := InitLogging(LogOptions{Level: "info", File: path, MaxSizeMB: 1})
	defer InitLogging(LogOptions{Level: "info"})
	Infof("cycle %d done", 42)
	Detailf("hidden detail")
	sync()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "cycle 42 done") || !strings.Contains(text, "[INFO]") {
		t.Fatalf("unexpected log content: %s", text)
	}
	if strings.Contains(text, "hidden detail") {
		t.Fatalf("debug line written at info level: %s", text)
	}
}
