package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWriterLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, "registry")

	l.Warn().Str("channel", "get-config").Msg("handler failed")

	out := buf.String()
	for _, want := range []string{"handler failed", "component=registry", "channel=get-config"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestComponentChild(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWriterLogger(&buf, "")
	child := parent.Component("shell")

	child.Info().Msg("opened")

	if !strings.Contains(buf.String(), "component=shell") {
		t.Errorf("child output missing component: %q", buf.String())
	}
	if child.Mode() != ModeDaemon {
		t.Errorf("child mode = %q, want %q", child.Mode(), ModeDaemon)
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		verbose, quiet bool
		want           zerolog.Level
	}{
		{false, false, zerolog.InfoLevel},
		{true, false, zerolog.DebugLevel},
		{false, true, zerolog.WarnLevel},
		{true, true, zerolog.DebugLevel},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.verbose, tt.quiet); got != tt.want {
			t.Errorf("LevelFor(%v, %v) = %v, want %v", tt.verbose, tt.quiet, got, tt.want)
		}
	}
}

func TestNewLoggerMode(t *testing.T) {
	if got := NewDefaultCLILogger().Mode(); got != ModeCLI {
		t.Errorf("default CLI logger mode = %q", got)
	}
	if got := NewLogger(ModeDaemon).Mode(); got != ModeDaemon {
		t.Errorf("daemon logger mode = %q", got)
	}
}
