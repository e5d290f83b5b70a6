package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestLogging(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{"ok", http.StatusOK, zap.InfoLevel, "request"},
		{"implicit ok", 0, zap.InfoLevel, "request"},
		{"conflict", http.StatusConflict, zap.InfoLevel, "request"},
		{"server error", http.StatusInternalServerError, zap.ErrorLevel, "request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			h := WithRequestLogging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte("body"))
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rest/v1/defects", nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected 1 log entry, got %d", len(entries))
			}
			e := entries[0]
			if e.Level != tt.wantLevel || e.Message != tt.wantMsg {
				t.Errorf("got %s %q, want %s %q", e.Level, e.Message, tt.wantLevel, tt.wantMsg)
			}
			ctx := e.ContextMap()
			if ctx["uri"] != "/rest/v1/defects" {
				t.Errorf("unexpected uri field: %v", ctx["uri"])
			}
			if ctx["size"] != int64(4) {
				t.Errorf("unexpected size field: %v", ctx["size"])
			}
		})
	}
}
