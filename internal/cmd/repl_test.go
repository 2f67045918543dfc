package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inercia/spaceclient/client"
	"github.com/inercia/spaceclient/internal/logging"
)

func TestMatchCompletions(t *testing.T) {
	endpoints := []string{"/predict", "/generate", "/pretty"}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "slash only shows commands and endpoints",
			text: "/",
			want: []string{"/help", "/h", "/?", "/quit", "/exit", "/q", "/cancel", "/endpoints", "/predict", "/generate", "/pretty"},
		},
		{
			name: "partial /h matches help and h",
			text: "/h",
			want: []string{"/help", "/h"},
		},
		{
			name: "partial /pre matches endpoints",
			text: "/pre",
			want: []string{"/predict", "/pretty"},
		},
		{
			name: "partial /e matches exit and endpoints",
			text: "/e",
			want: []string{"/exit", "/endpoints"},
		},
		{
			name: "unknown prefix",
			text: "/xyz",
			want: nil,
		},
		{
			name: "index is not completed",
			text: "0",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs := matchCompletions(tt.text, endpoints)
			if len(pairs)%2 != 0 {
				t.Fatalf("pairs = %v, want value/description pairs", pairs)
			}
			var got []string
			for i := 0; i < len(pairs); i += 2 {
				got = append(got, pairs[i])
				if pairs[i+1] == "" {
					t.Errorf("%s has no description", pairs[i])
				}
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompleteInput_NoPanic(t *testing.T) {
	for _, tc := range []struct {
		line   string
		cursor int
	}{
		{"", 0},
		{"/h", 100},
		{"/help extra", 2},
		{"/predict 1", 10},
	} {
		_ = completeInput(tc.line, tc.cursor, []string{"/predict"})
	}
}

func TestSlashCommandsDefinition(t *testing.T) {
	expected := map[string]bool{
		"/help": false, "/h": false, "/?": false,
		"/quit": false, "/exit": false, "/q": false,
		"/cancel": false, "/endpoints": false,
	}
	for _, cmd := range slashCommands {
		if _, ok := expected[cmd.name]; !ok {
			t.Errorf("unexpected command in slashCommands: %s", cmd.name)
		}
		expected[cmd.name] = true
		if cmd.description == "" {
			t.Errorf("command %s has empty description", cmd.name)
		}
	}
	for cmd, found := range expected {
		if !found {
			t.Errorf("expected command %s not found in slashCommands", cmd)
		}
	}
}

// syncBuffer is a strings.Builder safe for the listener goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func newREPLTestClient(t *testing.T, url string) *client.Client {
	t.Helper()
	cfg := &client.Config{
		Dependencies: []client.Dependency{{APIName: "predict", Inputs: []int{1}}},
		Components:   []client.Component{{ID: 1, Type: "textbox", Props: map[string]any{"label": "Text"}}},
	}
	c, err := client.Connect(context.Background(), url,
		client.WithEmbeddedConfig(&client.EmbeddedConfig{Config: cfg}),
		client.WithLogger(logging.Discard()),
	)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestREPLSession_Commands(t *testing.T) {
	c := newREPLTestClient(t, "http://127.0.0.1:1")
	var out syncBuffer
	r := newREPLSession(c, &out)
	ctx := context.Background()

	if r.handleLine(ctx, "   ") {
		t.Error("blank line quit the shell")
	}
	if r.handleLine(ctx, "/endpoints") {
		t.Error("/endpoints quit the shell")
	}
	if !strings.Contains(out.String(), "/predict") || !strings.Contains(out.String(), "Text") {
		t.Errorf("/endpoints output = %q", out.String())
	}
	r.handleLine(ctx, "/cancel")
	if !strings.Contains(out.String(), "Nothing to cancel") {
		t.Errorf("/cancel output = %q", out.String())
	}
	r.handleLine(ctx, "/bogus")
	if !strings.Contains(out.String(), "Unknown command: bogus") {
		t.Errorf("unknown command output = %q", out.String())
	}
	if !r.handleLine(ctx, "/QUIT") {
		t.Error("/QUIT did not quit the shell")
	}
}

func TestREPLSession_Submit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/run/predict" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data":["hello world"]}`))
	}))
	defer srv.Close()

	c := newREPLTestClient(t, srv.URL)
	var out syncBuffer
	r := newREPLSession(c, &out)

	r.handleLine(context.Background(), `/predict "hello world"`)

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "✅ /predict done") {
		if time.Now().After(deadline) {
			t.Fatalf("output = %q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(out.String(), `"hello world"`) {
		t.Errorf("output = %q, want the data", out.String())
	}
}

func TestREPLSession_BadQuoting(t *testing.T) {
	c := newREPLTestClient(t, "http://127.0.0.1:1")
	var out syncBuffer
	r := newREPLSession(c, &out)

	r.handleLine(context.Background(), `/predict "unterminated`)
	if !strings.Contains(out.String(), "❌") {
		t.Errorf("output = %q, want an error", out.String())
	}
}
