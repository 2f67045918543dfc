package apidoc

import (
	"bytes"
	"fmt"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/mermaid"
)

// DefaultStyle is the code highlighting style.
const DefaultStyle = "monokai"

// Renderer converts API documentation from Markdown to HTML. Raw HTML in
// the app description passes through goldmark and is cleaned by the
// sanitizer.
type Renderer struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// RenderOption configures a Renderer.
type RenderOption func(*rendererOptions)

type rendererOptions struct {
	style    string
	sanitize bool
}

// WithStyle sets the code highlighting style. An empty style disables
// highlighting.
func WithStyle(style string) RenderOption {
	return func(o *rendererOptions) { o.style = style }
}

// WithoutSanitizer disables sanitization. For trusted input only.
func WithoutSanitizer() RenderOption {
	return func(o *rendererOptions) { o.sanitize = false }
}

// NewRenderer returns a Renderer with highlighting and sanitization on.
func NewRenderer(opts ...RenderOption) *Renderer {
	o := rendererOptions{style: DefaultStyle, sanitize: true}
	for _, opt := range opts {
		opt(&o)
	}

	exts := []goldmark.Extender{
		extension.GFM,
		&mermaid.Extender{RenderMode: mermaid.RenderModeClient, NoScript: true},
	}
	if o.style != "" {
		exts = append(exts, highlighting.NewHighlighting(highlighting.WithStyle(o.style)))
	}

	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(exts...),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithXHTML(), gmhtml.WithUnsafe()),
		),
	}
	if o.sanitize {
		r.sanitizer = Sanitizer()
	}
	return r
}

// Sanitizer returns the policy applied to rendered documentation.
func Sanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span", "div")
	p.AllowAttrs("style").OnElements("pre", "span")
	p.AllowAttrs("id").Matching(bluemonday.Paragraph).OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	return p
}

// Fragment converts markdown to an HTML fragment.
func (r *Renderer) Fragment(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	out := buf.String()
	if r.sanitizer != nil {
		out = r.sanitizer.Sanitize(out)
	}
	return out, nil
}

// Page converts markdown to a standalone HTML page. Mermaid diagrams are
// drawn by the mermaid script loaded from its CDN.
func (r *Renderer) Page(title, markdown string) (string, error) {
	body, err := r.Fragment(markdown)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(pageTemplate, html.EscapeString(title), body), nil
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 60em; margin: 2em auto; padding: 0 1em; }
pre { padding: 0.8em; overflow-x: auto; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.3em 0.6em; }
</style>
<script type="module">
import mermaid from "https://cdn.jsdelivr.net/npm/mermaid/dist/mermaid.esm.min.mjs";
mermaid.initialize({ startOnLoad: true });
</script>
</head>
<body>
%s
</body>
</html>
`
