package filter

import (
	"strings"
	"testing"

	"github.com/inercia/spaceclient/client"
)

func TestCompile_Errors(t *testing.T) {
	tests := map[string]string{
		"syntax":        `type ==`,
		"unknown var":   `nope == 1`,
		"non-bool":      `endpoint`,
		"type mismatch": `fn_index == "x"`,
	}
	for name, expr := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Compile(expr); err == nil {
				t.Errorf("Compile(%q) succeeded", expr)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	pos := 3
	statusEv := client.Event{
		Type:     client.EventStatus,
		Endpoint: "/predict",
		FnIndex:  2,
		Status:   &client.Status{Stage: client.StagePending, Queue: true, Position: &pos},
	}
	dataEv := client.Event{
		Type:     client.EventData,
		Endpoint: "/predict",
		FnIndex:  2,
		Data:     []any{"hello", map[string]any{"score": 0.9}},
	}
	logEv := client.Event{
		Type: client.EventLog,
		Log:  &client.LogMessage{Log: "warming up", Level: "warning"},
	}

	tests := []struct {
		expr string
		ev   client.Event
		want bool
	}{
		{`type == "status"`, statusEv, true},
		{`type == "status"`, dataEv, false},
		{`stage == "pending" && status.position == 3`, statusEv, true},
		{`status.queue`, statusEv, true},
		{`fn_index == 2 && endpoint == "/predict"`, dataEv, true},
		{`size(data) == 2 && data[0] == "hello"`, dataEv, true},
		{`data[1].score > 0.5`, dataEv, true},
		{`size(data) == 0`, statusEv, true},
		{`level == "warning" && log.contains("warm")`, logEv, true},
		{`stage == ""`, logEv, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			got, err := f.Match(tt.ev)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch_RuntimeError(t *testing.T) {
	f, err := Compile(`status.position == 1`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Match(client.Event{Type: client.EventData})
	if err == nil || !strings.Contains(err.Error(), "evaluate filter") {
		t.Errorf("error = %v", err)
	}
}

func TestNilFilterMatchesAll(t *testing.T) {
	var f *Filter
	ok, err := f.Match(client.Event{Type: client.EventLog})
	if err != nil || !ok {
		t.Errorf("nil filter Match = %v, %v", ok, err)
	}
}
