package fileutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

type savedApp struct {
	Root  string `json:"root"`
	Title string `json:"title"`
}

func TestWriteJSONAtomic_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.json")

	in := savedApp{Root: "http://127.0.0.1:7860", Title: "Echo"}
	if err := WriteJSONAtomic(path, in, 0o600); err != nil {
		t.Fatalf("WriteJSONAtomic: %v", err)
	}

	var out savedApp
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if out != in {
		t.Errorf("ReadJSON = %+v, want %+v", out, in)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("perm = %v, want 0600", info.Mode().Perm())
		}
	}
}

func TestWriteAtomic_ReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")

	if err := WriteAtomic(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteAtomic(path, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("content = %q, want new", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the target", len(entries))
	}
}

func TestReadJSON_Errors(t *testing.T) {
	dir := t.TempDir()

	var v savedApp
	if err := ReadJSON(filepath.Join(dir, "missing.json"), &v); !os.IsNotExist(err) {
		t.Errorf("missing file error = %v, want not-exist", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"root":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ReadJSON(bad, &v); err == nil {
		t.Error("expected a parse error")
	}
}
