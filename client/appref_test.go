package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveAppRef(t *testing.T) {
	tests := []struct {
		ref  string
		want AppRef
	}{
		{"http://localhost:7860/", AppRef{Endpoint: "http://localhost:7860"}},
		{"https://abidlabs-whisper.hf.space", AppRef{Endpoint: "https://abidlabs-whisper.hf.space", SpaceID: "abidlabs-whisper"}},
		{"https://example.com/demo/", AppRef{Endpoint: "https://example.com/demo"}},
		{"localhost:7860", AppRef{Endpoint: "http://localhost:7860"}},
		{"abidlabs-whisper.hf.space", AppRef{Endpoint: "https://abidlabs-whisper.hf.space", SpaceID: "abidlabs-whisper"}},
		{"file:./saved.json", AppRef{ConfigFile: "./saved.json"}},
		{"file:///tmp/saved.json", AppRef{ConfigFile: "/tmp/saved.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ResolveAppRef(context.Background(), nil, "", tt.ref, "")
			if err != nil {
				t.Fatalf("ResolveAppRef: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveAppRef = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveAppRef_SpaceName(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/spaces/abidlabs/whisper/host" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"subdomain":"abidlabs-whisper","host":"https://abidlabs-whisper.hf.space/"}`))
	}))
	defer hub.Close()

	got, err := ResolveAppRef(context.Background(), hub.Client(), hub.URL, "abidlabs/whisper", "")
	if err != nil {
		t.Fatalf("ResolveAppRef: %v", err)
	}
	want := AppRef{Endpoint: "https://abidlabs-whisper.hf.space", SpaceID: "abidlabs/whisper"}
	if got != want {
		t.Errorf("ResolveAppRef = %+v, want %+v", got, want)
	}
	if !got.spaceIDIsName() {
		t.Error("spaceIDIsName = false for an org/space id")
	}
}

func TestResolveAppRef_Errors(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Repository not found", http.StatusNotFound)
	}))
	defer hub.Close()

	if _, err := ResolveAppRef(context.Background(), hub.Client(), hub.URL, "org/missing", ""); err == nil {
		t.Error("expected error for unknown space")
	}
	if _, err := ResolveAppRef(context.Background(), nil, "", "   ", ""); err == nil {
		t.Error("expected error for empty reference")
	}
}
