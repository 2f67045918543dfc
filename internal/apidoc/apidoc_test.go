package apidoc

import (
	"strings"
	"testing"

	"github.com/inercia/spaceclient/client"
)

func boolPtr(b bool) *bool { return &b }

func testConfig() *client.Config {
	return &client.Config{
		Root:        "http://app.local",
		Title:       "Demo",
		Version:     "4.1.0",
		Protocol:    client.ProtocolSSEv2,
		EnableQueue: true,
		Description: `<p>Hello <script>alert(1)</script>world</p>`,
		Components: []client.Component{
			{ID: 1, Type: "textbox", Props: map[string]any{"label": "Prompt"}},
			{ID: 2, Type: "image"},
		},
		Dependencies: []client.Dependency{
			{APIName: "generate", Inputs: []int{1}, Outputs: []int{2}, Types: client.DependencyTypes{Generator: true}},
			{APIName: "", Inputs: []int{1}},
			{APIName: "stop", Queue: boolPtr(false), Cancels: []int{0}},
		},
	}
}

func TestDescribe(t *testing.T) {
	api := Describe(testConfig(), false)

	if api.Protocol != "sse_v2" || api.Title != "Demo" {
		t.Errorf("api = %+v", api)
	}
	if len(api.Endpoints) != 2 {
		t.Fatalf("endpoints = %+v, want 2 named", api.Endpoints)
	}
	gen, stop := api.Endpoints[0], api.Endpoints[1]
	if gen.Name != "/generate" || !gen.Queued || !gen.Generator {
		t.Errorf("generate = %+v", gen)
	}
	if len(gen.Inputs) != 1 || gen.Inputs[0].Label != "Prompt" || gen.Inputs[0].Type != "textbox" {
		t.Errorf("generate inputs = %+v", gen.Inputs)
	}
	if len(gen.Outputs) != 1 || gen.Outputs[0].Label != "image_2" {
		t.Errorf("generate outputs = %+v", gen.Outputs)
	}
	if stop.Name != "/stop" || stop.Queued {
		t.Errorf("stop = %+v", stop)
	}
	if len(stop.Cancels) != 1 || stop.Cancels[0] != "/generate" {
		t.Errorf("stop cancels = %v", stop.Cancels)
	}
}

func TestDescribe_Unnamed(t *testing.T) {
	api := Describe(testConfig(), true)
	if len(api.Endpoints) != 3 {
		t.Fatalf("endpoints = %d, want 3", len(api.Endpoints))
	}
	last := api.Endpoints[2]
	if last.Name != "1" || last.Named || last.FnIndex != 1 {
		t.Errorf("unnamed = %+v", last)
	}
	if _, ok := api.Find("1"); !ok {
		t.Error("Find(1) failed")
	}
	if ep, ok := api.Find("stop"); !ok || ep.FnIndex != 2 {
		t.Errorf("Find(stop) = %+v, %v", ep, ok)
	}
}

func TestDescribe_WebSocketProtocol(t *testing.T) {
	api := Describe(&client.Config{}, false)
	if api.Protocol != "ws" {
		t.Errorf("Protocol = %q", api.Protocol)
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(Describe(testConfig(), false), "org/my demo")

	for _, want := range []string{
		"# Demo",
		"| `/generate` | 0 | yes | 1 | 1 |",
		"### `/stop`",
		"1. **Prompt** (`textbox`)",
		"spaceclient --app 'org/my demo' predict /generate '<Prompt>'",
		"```mermaid\ngraph LR\n",
		`n__stop["/stop"] -->|cancels| n__generate["/generate"]`,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestAnnotate(t *testing.T) {
	api := Describe(testConfig(), false)
	api.Annotate(&client.APIInfo{
		NamedEndpoints: map[string]client.EndpointInfo{
			"/generate": {
				Parameters: []client.ParamInfo{{Label: "prompt", Type: "string", Description: "what to draw"}},
				Returns:    []client.ParamInfo{{Label: "Picture", Type: "string"}, {Label: "extra"}},
			},
		},
	})

	gen := api.Endpoints[0]
	in, out := gen.Inputs[0], gen.Outputs[0]
	if in.Label != "Prompt" {
		t.Errorf("config label replaced: %q", in.Label)
	}
	if in.GoType != "string" || in.Description != "what to draw" {
		t.Errorf("input = %+v", in)
	}
	if out.Label != "Picture" {
		t.Errorf("generated label kept: %q", out.Label)
	}
	if stop := api.Endpoints[1]; len(stop.Inputs) != 0 || len(stop.Outputs) != 0 {
		t.Errorf("stop changed: %+v", stop)
	}

	md := Markdown(api, "demo")
	if want := "1. **Prompt** (`textbox`, `string`): what to draw"; !strings.Contains(md, want) {
		t.Errorf("markdown missing %q:\n%s", want, md)
	}
}

func TestMarkdown_NoEndpoints(t *testing.T) {
	md := Markdown(Describe(&client.Config{Root: "http://x"}, false), "x")
	if !strings.Contains(md, "no named endpoints") {
		t.Errorf("markdown = %q", md)
	}
	if strings.Contains(md, "mermaid") {
		t.Error("unexpected cancels graph")
	}
}

func TestRenderer_Page(t *testing.T) {
	api := Describe(testConfig(), false)
	page, err := NewRenderer(WithStyle("")).Page("Demo <api>", Markdown(api, "demo"))
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if strings.Contains(page, "alert(1)") {
		t.Error("script from the description was not removed")
	}
	if !strings.Contains(page, "world") {
		t.Error("description text missing")
	}
	if !strings.Contains(page, "<title>Demo &lt;api&gt;</title>") {
		t.Error("title not escaped")
	}
	if !strings.Contains(page, `class="mermaid"`) {
		t.Errorf("mermaid block not rendered:\n%s", page)
	}
	if !strings.Contains(page, "<table>") {
		t.Error("endpoint table not rendered")
	}
}

func TestRenderer_Highlighting(t *testing.T) {
	out, err := NewRenderer().Fragment("```go\nfunc main() {}\n```\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<pre") || !strings.Contains(out, "main") {
		t.Errorf("fragment = %s", out)
	}
}

func TestRenderer_WithoutSanitizer(t *testing.T) {
	out, err := NewRenderer(WithoutSanitizer(), WithStyle("")).Fragment("<b onclick=\"x()\">hi</b>")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "onclick") {
		t.Errorf("raw HTML was altered: %s", out)
	}

	out, err = NewRenderer(WithStyle("")).Fragment("<b onclick=\"x()\">hi</b>")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "onclick") || !strings.Contains(out, "hi") {
		t.Errorf("sanitized fragment = %s", out)
	}
}
