package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		development bool
		level       string
		want        zapcore.Level
	}{
		{"production info", false, "info", zapcore.InfoLevel},
		{"development debug", true, "debug", zapcore.DebugLevel},
		{"unknown level", false, "loud", zapcore.InfoLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := New(tc.development, tc.level)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !l.Core().Enabled(tc.want) {
				t.Errorf("level %v not enabled", tc.want)
			}
			if tc.want > zapcore.DebugLevel && l.Core().Enabled(tc.want-1) {
				t.Errorf("level below %v should be disabled", tc.want)
			}
		})
	}
}
