package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_IsNop(t *testing.T) {
	l := New()
	if l.Log == nil {
		t.Fatal("expected a logger")
	}
	if l.Log.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("nop logger must not enable any level")
	}
}

func TestInit(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
		enabled zapcore.Level
	}{
		{name: "mixed case", level: "Info", enabled: zapcore.InfoLevel},
		{name: "upper case", level: "WARN", enabled: zapcore.WarnLevel},
		{name: "debug", level: "debug", enabled: zapcore.DebugLevel},
		{name: "unknown", level: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			err := l.Init(tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Init(%q): %v", tt.level, err)
			}
			if !l.Log.Core().Enabled(tt.enabled) {
				t.Errorf("level %s not enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && l.Log.Core().Enabled(tt.enabled-1) {
				t.Errorf("level below %s should be disabled", tt.enabled)
			}
		})
	}
}
