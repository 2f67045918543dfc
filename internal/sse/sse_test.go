package sse

import (
	"errors"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	stream := ": comment\n" +
		"event: message\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		"data:{\"b\":\n" +
		"data: 2}\n" +
		"id: 7\n" +
		"\n" +
		"\n" +
		"data: {\"c\":3}"

	var got []string
	if err := Read(strings.NewReader(stream), func(data []byte) bool {
		got = append(got, string(data))
		return true
	}); err != nil {
		t.Fatalf("Read: %v", err)
	}

	want := []string{`{"a":1}`, "{\"b\":\n2}", `{"c":3}`}
	if len(got) != len(want) {
		t.Fatalf("got %d records %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRead_StopsWhenFnReturnsFalse(t *testing.T) {
	stream := "data: 1\n\ndata: 2\n\ndata: 3\n\n"
	var n int
	if err := Read(strings.NewReader(stream), func([]byte) bool {
		n++
		return n < 2
	}); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 2 {
		t.Errorf("fn called %d times, want 2", n)
	}
}

func TestRead_RecordTooLarge(t *testing.T) {
	stream := "data: " + strings.Repeat("x", MaxEventSize+1) + "\n\n"
	err := Read(strings.NewReader(stream), func([]byte) bool { return true })
	if err == nil {
		t.Fatal("expected an error for an oversized record")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestReadAll(t *testing.T) {
	got, err := ReadAll(strings.NewReader("data: {\"id\":1}\n\ndata: {\"id\":2}\n\n"))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if want := "{\"id\":1}\n{\"id\":2}"; string(got) != want {
		t.Errorf("ReadAll = %q, want %q", got, want)
	}

	if _, err := ReadAll(failingReader{}); err == nil {
		t.Error("ReadAll should report read errors")
	}
}
