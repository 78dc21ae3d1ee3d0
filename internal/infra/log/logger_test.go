package log

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zerolog.Level
	}{
		{env: "dev", level: "", want: zerolog.DebugLevel},
		{env: "prod", level: "", want: zerolog.InfoLevel},
		{env: "dev", level: "warn", want: zerolog.WarnLevel},
		{env: "prod", level: "DEBUG", want: zerolog.DebugLevel},
		{env: "prod", level: "nonsense", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := NewLogger(tt.env, tt.level).GetLevel(); got != tt.want {
			t.Fatalf("NewLogger(%q, %q) = %s, ожидали %s", tt.env, tt.level, got, tt.want)
		}
	}
}
