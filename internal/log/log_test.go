package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spesesync/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Handler: slog.NewJSONHandler(&buf, nil), Component: ComponentSync})

	fields := NewFields().
		WithAction(core.DeleteAction("r1")).
		WithError(errors.New("boom"))
	l.Info("Sync aborted", fields.ToSlice()...)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != ComponentSync || entry[FieldRecordID] != "r1" ||
		entry[FieldActionKind] != "delete" || entry[FieldError] != "boom" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewHandlerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	h, closer := NewHandler(Config{Level: slog.LevelInfo, Format: "json", File: path, MaxSizeMB: 1, MaxBackups: 1})
	slog.New(h).Info("hello", "k", "v")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file content %q", data)
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	l := New(Config{Component: ComponentHTTP})
	var got *Logger
	h := Middleware(l, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != l {
		t.Error("logger not propagated through context")
	}
	if FromContext(context.Background()).Component() != ComponentApp {
		t.Error("fallback logger should use the app component")
	}
}

func TestMiddlewareTagsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentHTTP, Format: "json", Output: &buf})

	type key struct{}
	requestID := func(ctx context.Context) string {
		id, _ := ctx.Value(key{}).(string)
		return id
	}
	h := Middleware(l, requestID)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(context.WithValue(req.Context(), key{}, "req_1")))
	if !strings.Contains(buf.String(), `"request_id":"req_1"`) {
		t.Errorf("log line missing request id: %s", buf.String())
	}

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("request id logged without one in context: %s", buf.String())
	}
}
