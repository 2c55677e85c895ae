package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	var buf bytes.Buffer
	oldLogger := defaultLogger
	defaultLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f()
	defaultLogger = oldLogger
	return buf.String()
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"warn":    LevelWarn,
		" error ": LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("text") != FormatText {
		t.Error("expected text format")
	}
	if ParseFormat("json") != FormatJSON || ParseFormat("") != FormatJSON {
		t.Error("expected json format by default")
	}
}

func TestInitLoggerWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		SetOutput(nil)
		InitLogger(LevelInfo, FormatJSON)
	}()

	InitLogger(LevelWarn, FormatJSON)
	Info("hidden")
	Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("failed to decode record: %v (%q)", err, out)
	}
	if rec["msg"] != "shown" || rec["key"] != "value" {
		t.Errorf("unexpected record: %v", rec)
	}
	if ts, ok := rec["time"].(string); !ok || !strings.Contains(ts, "T") {
		t.Errorf("expected RFC3339 time, got %v", rec["time"])
	}
}

func TestLoggerFromContext(t *testing.T) {
	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-9")
	if GetRequestID(ctx) != "req-1" {
		t.Error("request id not stored")
	}
	if GetRunID(ctx) != "run-9" {
		t.Error("run id not stored")
	}
	if GetRunID(context.Background()) != "" {
		t.Error("expected empty run id")
	}

	out := captureLogOutput(func() {
		InfoContext(ctx, "hello")
	})
	if !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, `"run_id":"run-9"`) {
		t.Errorf("expected context fields in %q", out)
	}
}

func TestDomainEventHelpers(t *testing.T) {
	out := captureLogOutput(func() {
		TrainingEvent("launched", "run-1", "max_complexity", 1000)
		TrainingError("run-1", "train", errors.New("boom"))
		CacheEvent("saved", "ult_nt_tit")
		TreeImport("source", "tit", 10, 2)
		WebSocketEvent("client_connected", 1)
		ServerStartup("status_api", "http", 8080)
		SecurityEvent("unauthorized_request", "auth", "path", "/training")
	})

	for _, want := range []string{
		`"msg":"training_event"`, `"event":"launched"`, `"max_complexity":1000`,
		`"msg":"training_error"`, `"error":"boom"`,
		`"msg":"cache_event"`, `"key":"ult_nt_tit"`,
		`"msg":"tree_import"`, `"dropped":2`,
		`"msg":"websocket_event"`, `"msg":"server_startup"`,
		`"msg":"security_event"`, `"component":"auth"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output", want)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if seen == "" || w.Header().Get("X-Request-ID") != seen {
		t.Errorf("expected generated request id, got %q / %q", seen, w.Header().Get("X-Request-ID"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "given" {
		t.Errorf("expected inbound id to be kept, got %q", seen)
	}
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	out := captureLogOutput(func() {
		handler := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/training", nil))
	})
	if !strings.Contains(out, `"status_code":418`) || !strings.Contains(out, `"path":"/training"`) {
		t.Errorf("unexpected log output: %q", out)
	}
}
