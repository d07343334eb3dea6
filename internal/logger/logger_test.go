package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitWithWriterFiltersLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	l := InitWithWriter(&buf, "warn")
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	if bytes.Contains([]byte(out), []byte("hidden")) {
		t.Fatalf("info message written at warn level: %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("shown")) {
		t.Fatalf("warn message missing: %q", out)
	}
}
