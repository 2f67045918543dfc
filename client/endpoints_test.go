package client

import (
	"encoding/json"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestMapNamesToIDs(t *testing.T) {
	var cfg Config
	raw := `{"dependencies":[
		{"api_name":null},
		{"api_name":false},
		{"api_name":"go"},
		{},
		{"api_name":"/stop"},
		{"api_name":"stop"}
	]}`
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := MapNamesToIDs(cfg.Dependencies)
	want := map[string]int{"go": 2, "stop": 5}
	if len(got) != len(want) {
		t.Fatalf("MapNamesToIDs = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("MapNamesToIDs[%q] = %d, want %d", k, got[k], v)
		}
	}
}

func TestMapNamesToIDs_Empty(t *testing.T) {
	if got := MapNamesToIDs(nil); len(got) != 0 {
		t.Errorf("MapNamesToIDs(nil) = %v, want empty", got)
	}
}

func TestSkipQueue(t *testing.T) {
	tests := []struct {
		name        string
		enableQueue bool
		queue       *bool
		want        bool
	}{
		{"queue enabled, no override", true, nil, false},
		{"queue disabled, no override", false, nil, true},
		{"queue disabled, dependency queues", false, boolPtr(true), false},
		{"queue enabled, dependency skips", true, boolPtr(false), true},
		{"queue enabled, dependency queues", true, boolPtr(true), false},
		{"queue disabled, dependency skips", false, boolPtr(false), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				EnableQueue:  tt.enableQueue,
				Dependencies: []Dependency{{Queue: tt.queue}},
			}
			if got := SkipQueue(0, cfg); got != tt.want {
				t.Errorf("SkipQueue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSkipQueue_MissingDependency(t *testing.T) {
	cfg := &Config{EnableQueue: true}
	if !SkipQueue(3, cfg) {
		t.Error("SkipQueue for a missing dependency should be true")
	}
	if !SkipQueue(-1, cfg) {
		t.Error("SkipQueue for a negative index should be true")
	}
}

func TestEndpoint_Resolve(t *testing.T) {
	cfg := &Config{Dependencies: []Dependency{{}, {APIName: "predict"}}}
	apiMap := MapNamesToIDs(cfg.Dependencies)

	tests := []struct {
		name      string
		ep        Endpoint
		wantIndex int
		wantLabel string
		wantErr   bool
	}{
		{"name with slash", Named("/predict"), 1, "/predict", false},
		{"name without slash", Named("predict"), 1, "/predict", false},
		{"index of named dependency", Index(1), 1, "/predict", false},
		{"index of unnamed dependency", Index(0), 0, "", false},
		{"unknown name", Named("/missing"), -1, "/missing", true},
		{"index out of range", Index(7), 7, "", true},
		{"parsed number", ParseEndpoint("1"), 1, "/predict", false},
		{"parsed name", ParseEndpoint("/predict"), 1, "/predict", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, label, err := tt.ep.resolve(cfg, apiMap)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolve error = %v, wantErr %v", err, tt.wantErr)
			}
			if idx != tt.wantIndex {
				t.Errorf("index = %d, want %d", idx, tt.wantIndex)
			}
			if label != tt.wantLabel {
				t.Errorf("label = %q, want %q", label, tt.wantLabel)
			}
		})
	}
}

func TestEndpoint_UnknownNameMessage(t *testing.T) {
	_, _, err := Named("nope").resolve(&Config{}, map[string]int{})
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := err.Error(), `there is no endpoint matching "/nope"`; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestDependency_MarshalUnnamed(t *testing.T) {
	data, err := json.Marshal(Dependency{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := fields["api_name"]; !ok || v != nil {
		t.Errorf("api_name = %v (present %v), want null", v, ok)
	}
}
