package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestWithCall(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	base := slog.New(handler)

	logger := WithCall(base, "call-123", "/predict", 4)
	logger.Info("test message")

	output := buf.String()
	for _, want := range []string{"call_id=call-123", "endpoint=/predict", "fn_index=4", "test message"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}
}

func TestWithCall_NilLogger(t *testing.T) {
	if logger := WithCall(nil, "call", "/x", 0); logger != nil {
		t.Error("WithCall(nil, ...) should return nil")
	}
}

func TestWithApp(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger := WithApp(base, "https://demo.hf.space", "abc123")
	logger.Info("connected")

	output := buf.String()
	if !strings.Contains(output, "app=https://demo.hf.space") {
		t.Errorf("Expected app in output, got: %s", output)
	}
	if !strings.Contains(output, "session_hash=abc123") {
		t.Errorf("Expected session_hash in output, got: %s", output)
	}
}

func TestWithApp_NilLogger(t *testing.T) {
	if logger := WithApp(nil, "x", "y"); logger != nil {
		t.Error("WithApp(nil, ...) should return nil")
	}
}

func TestWithCall_MultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger := WithCall(base, "persistent-call", "/chat", 1)
	logger.Info("first message")
	logger.Debug("second message")
	logger.Warn("third message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 log lines, got %d", len(lines))
	}
	for i, line := range lines {
		if !strings.Contains(line, "call_id=persistent-call") {
			t.Errorf("Line %d missing call_id: %s", i+1, line)
		}
	}
}

func TestInitialize_ComponentFilter(t *testing.T) {
	var buf bytes.Buffer
	if err := Initialize(Config{
		Level:      "debug",
		Components: []string{ComponentTransport},
		Output:     &buf,
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() {
		_ = Initialize(Config{Level: "info", Output: &bytes.Buffer{}})
	})

	Client().Info("hidden")
	Transport().Info("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("client component should be filtered, got: %s", output)
	}
	if !strings.Contains(output, "component=transport") || !strings.Contains(output, "shown") {
		t.Errorf("Expected transport record, got: %s", output)
	}
}

func TestInitialize_Level(t *testing.T) {
	var buf bytes.Buffer
	if err := Initialize(Config{Level: "warn", Output: &buf}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() {
		_ = Initialize(Config{Level: "info", Output: &bytes.Buffer{}})
	})

	Get().Info("quiet")
	Get().Warn("loud")

	output := buf.String()
	if strings.Contains(output, "quiet") {
		t.Errorf("info record should be dropped at warn level: %s", output)
	}
	if !strings.Contains(output, "loud") {
		t.Errorf("Expected warn record, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGet(t *testing.T) {
	globalMu.Lock()
	saved := globalLogger
	globalLogger = nil
	globalMu.Unlock()
	t.Cleanup(func() {
		globalMu.Lock()
		globalLogger = saved
		globalMu.Unlock()
	})

	if Get() != slog.Default() {
		t.Error("Get() before Initialize should return slog.Default()")
	}

	var buf bytes.Buffer
	if err := Initialize(Config{Level: "info", Output: &buf}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	Get().Info("through get")
	if !strings.Contains(buf.String(), "through get") {
		t.Errorf("Get() did not return the initialized logger, output: %s", buf.String())
	}
}
