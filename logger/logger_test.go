package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWithOptionsWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	log, err := InitWithOptions(path, false)
	if err != nil {
		t.Fatalf("InitWithOptions failed: %v", err)
	}
	log.Info().Str("key", "value").Msg("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "hello") {
		t.Errorf("Expected log output in file, got %q", content)
	}
	if !strings.Contains(content, `"key":"value"`) {
		t.Errorf("Expected structured field in file, got %q", content)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLogLevel(tc.input); got != tc.expected {
			t.Errorf("parseLogLevel(%q): expected %v, got %v", tc.input, tc.expected, got)
		}
	}
}
