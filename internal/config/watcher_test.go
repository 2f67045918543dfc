package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileWatcher_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(path, []byte(`[1]`), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 10)
	fw, err := NewFileWatcher(path, nil, func(p string) { changed <- p })
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer fw.Close()
	fw.SetDebounceDelay(20 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`[2]`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-changed:
		if filepath.Base(p) != "payload.json" {
			t.Errorf("changed path = %q", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestFileWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	fw, err := NewFileWatcher(path, nil, func(string) { calls.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Close()
	fw.SetDebounceDelay(10 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("callback called %d times for a sibling file", n)
	}
}

func TestFileWatcher_Debounces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	fw, err := NewFileWatcher(path, nil, func(string) { calls.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Close()
	fw.SetDebounceDelay(150 * time.Millisecond)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(`[1]`), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("callback called %d times, want 1", n)
	}
}

func TestFileWatcher_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	fw, err := NewFileWatcher(path, nil, func(string) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
