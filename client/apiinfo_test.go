package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const infoDoc = `{
  "named_endpoints": {
    "/predict": {
      "parameters": [
        {"label": "Prompt", "component": "Textbox", "serializer": "StringSerializable", "type": {"type": "string", "description": "the prompt"}},
        {"label": "Steps", "component": "Slider", "serializer": "NumberSerializable", "type": {"type": "number"}},
        {"label": "Photo", "component": "Image", "serializer": "ImgSerializable", "type": {"type": "string"}}
      ],
      "returns": [
        {"label": "Files", "component": "File", "serializer": "FileSerializable", "type": {"type": "array"}},
        {"label": "Gallery", "component": "Gallery", "serializer": "GallerySerializable", "type": {}}
      ]
    }
  },
  "unnamed_endpoints": {}
}`

func TestViewAPI_Info(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			http.NotFound(w, r)
			return
		}
		requests.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer hf_x" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(infoDoc))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &Config{
		Version: "4.1.0",
		Dependencies: []Dependency{
			{APIName: "predict", Types: DependencyTypes{Generator: true}},
		},
	}, WithToken("hf_x"))

	info, err := c.ViewAPI(context.Background())
	if err != nil {
		t.Fatalf("ViewAPI: %v", err)
	}

	ep, ok := info.Endpoint("/predict")
	if !ok {
		t.Fatalf("no /predict in %+v", info)
	}
	if !ep.Types.Generator {
		t.Error("dependency types were not attached")
	}
	wantParams := []ParamInfo{
		{Label: "Prompt", Component: "Textbox", Type: "string", Description: "the prompt"},
		{Label: "Steps", Component: "Slider", Type: "float64"},
		{Label: "Photo", Component: "Image", Type: "string"},
	}
	if len(ep.Parameters) != len(wantParams) {
		t.Fatalf("parameters = %+v", ep.Parameters)
	}
	for i, want := range wantParams {
		if ep.Parameters[i] != want {
			t.Errorf("parameter %d = %+v, want %+v", i, ep.Parameters[i], want)
		}
	}
	wantReturns := []ParamInfo{
		{Label: "Files", Component: "File", Type: "[]map[string]any", Description: "array of files or single file"},
		{Label: "Gallery", Component: "Gallery", Type: "[][2]any", Description: "array of [file, label] tuples"},
	}
	for i, want := range wantReturns {
		if ep.Returns[i] != want {
			t.Errorf("return %d = %+v, want %+v", i, ep.Returns[i], want)
		}
	}

	// The first endpoint is also reachable by index.
	if _, ok := info.Endpoint("0"); !ok {
		t.Error("/predict was not aliased to unnamed endpoint 0")
	}

	if _, err := c.ViewAPI(context.Background()); err != nil {
		t.Fatalf("second ViewAPI: %v", err)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("/info fetched %d times, want 1", n)
	}
}

func TestViewAPI_OldVersionUsesFetcher(t *testing.T) {
	fetcher := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body struct {
			Serialize *bool  `json:"serialize"`
			Config    string `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Serialize == nil || *body.Serialize {
			t.Errorf("serialize = %v, want false", body.Serialize)
		}
		var cfg map[string]any
		if err := json.Unmarshal([]byte(body.Config), &cfg); err != nil {
			t.Errorf("config is not a JSON document string: %v", err)
		}
		_, _ = w.Write([]byte(`{"api": {"named_endpoints": {}, "unnamed_endpoints": {
			"0": {"parameters": [{"label": "x", "component": "Files", "serializer": "FileSerializable", "type": {"type": "array"}}], "returns": []}
		}}}`))
	}))
	defer fetcher.Close()

	app := httptest.NewServer(http.NotFoundHandler())
	defer app.Close()

	c := newTestClient(t, app.URL, &Config{Version: "3.28.3", Dependencies: []Dependency{{}}}, WithAPIInfoURL(fetcher.URL))
	info, err := c.ViewAPI(context.Background())
	if err != nil {
		t.Fatalf("ViewAPI: %v", err)
	}
	ep, ok := info.Endpoint("0")
	if !ok || len(ep.Parameters) != 1 {
		t.Fatalf("info = %+v", info)
	}
	if got := ep.Parameters[0].Type; got != "[]File" {
		t.Errorf("type = %q, want []File", got)
	}
}

func TestViewAPI_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no info here", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &Config{Version: "4.0.0"})
	if _, err := c.ViewAPI(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestUsesInfoEndpoint(t *testing.T) {
	tests := map[string]bool{
		"":        true,
		"3.28.3":  false,
		"3.30":    true,
		"3.30.0":  true,
		"4.0.0":   true,
		"nightly": true,
	}
	for version, want := range tests {
		if got := usesInfoEndpoint(version); got != want {
			t.Errorf("usesInfoEndpoint(%q) = %v, want %v", version, got, want)
		}
	}
}

func TestParamType(t *testing.T) {
	tests := []struct {
		name       string
		typ        string
		component  string
		serializer string
		isReturn   bool
		want       string
	}{
		{"boolean", "boolean", "Checkbox", "", false, "bool"},
		{"json", "object", "JSON", "JSONSerializable", false, "any"},
		{"list of strings", "array", "CheckboxGroup", "ListStringSerializable", false, "[]string"},
		{"image input", "object", "Image", "ImgSerializable", false, "File"},
		{"image output", "object", "Image", "ImgSerializable", true, "string"},
		{"single file input", "object", "File", "FileSerializable", false, "File"},
		{"single file output", "object", "File", "FileSerializable", true, "map[string]any"},
		{"unknown", "object", "Plot", "PlotSerializable", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paramType(rawType{Type: tt.typ}, tt.component, tt.serializer, tt.isReturn)
			if got != tt.want {
				t.Errorf("paramType = %q, want %q", got, tt.want)
			}
		})
	}
}
