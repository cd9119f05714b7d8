package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "x.log")
	logger, err := Build(Options{Level: "info", Format: "json", File: path})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	logger.Info("session_start")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"session_start"`) {
		t.Fatalf("unexpected log output: %s", raw)
	}
}
