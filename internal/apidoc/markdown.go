package apidoc

import (
	"fmt"
	"strings"
)

// Markdown renders the API description. Examples are written for the
// spaceclient CLI against app.
func Markdown(api *API, app string) string {
	var b strings.Builder

	title := api.Title
	if title == "" {
		title = api.Root
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Root: `%s`\n", api.Root)
	fmt.Fprintf(&b, "- Protocol: `%s`\n", api.Protocol)
	if api.Version != "" {
		fmt.Fprintf(&b, "- Version: `%s`\n", api.Version)
	}
	b.WriteString("\n")
	if d := strings.TrimSpace(api.Description); d != "" {
		b.WriteString(d + "\n\n")
	}

	if len(api.Endpoints) == 0 {
		b.WriteString("This app has no named endpoints.\n")
		return b.String()
	}

	b.WriteString("## Endpoints\n\n")
	b.WriteString("| Endpoint | fn_index | Queued | Inputs | Outputs |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, ep := range api.Endpoints {
		fmt.Fprintf(&b, "| `%s` | %d | %s | %d | %d |\n",
			ep.Name, ep.FnIndex, yesNo(ep.Queued), len(ep.Inputs), len(ep.Outputs))
	}
	b.WriteString("\n")

	for _, ep := range api.Endpoints {
		writeEndpoint(&b, ep, app)
	}

	if graph := cancelsGraph(api); graph != "" {
		b.WriteString("## Cancellation\n\n")
		b.WriteString("Submitting an endpoint cancels the calls it points to.\n\n")
		b.WriteString("```mermaid\n" + graph + "```\n\n")
	}

	if a := strings.TrimSpace(api.Article); a != "" {
		b.WriteString("---\n\n" + a + "\n")
	}
	return b.String()
}

func writeEndpoint(b *strings.Builder, ep Endpoint, app string) {
	fmt.Fprintf(b, "### `%s`\n\n", ep.Name)
	if ep.Generator {
		b.WriteString("Streams intermediate outputs before completing.\n\n")
	}

	writeParams(b, "Inputs", ep.Inputs)
	writeParams(b, "Outputs", ep.Outputs)

	args := make([]string, len(ep.Inputs))
	for i, p := range ep.Inputs {
		args[i] = "'<" + p.Label + ">'"
	}
	b.WriteString("```sh\n")
	fmt.Fprintf(b, "spaceclient --app %s predict %s", shellQuote(app), ep.Name)
	if len(args) > 0 {
		b.WriteString(" " + strings.Join(args, " "))
	}
	b.WriteString("\n```\n\n")
}

func writeParams(b *strings.Builder, heading string, params []Parameter) {
	if len(params) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n\n", heading)
	for i, p := range params {
		fmt.Fprintf(b, "%d. **%s** (`%s`", i+1, p.Label, p.Type)
		if p.GoType != "" {
			fmt.Fprintf(b, ", `%s`", p.GoType)
		}
		b.WriteString(")")
		if d := strings.TrimSpace(p.Description); d != "" {
			b.WriteString(": " + d)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// cancelsGraph returns a mermaid flowchart of cancels edges, or "" when
// no endpoint cancels another.
func cancelsGraph(api *API) string {
	var b strings.Builder
	for _, ep := range api.Endpoints {
		for _, target := range ep.Cancels {
			fmt.Fprintf(&b, "    %s[\"%s\"] -->|cancels| %s[\"%s\"]\n",
				nodeID(ep.Name), ep.Name, nodeID(target), target)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "graph LR\n" + b.String()
}

func nodeID(name string) string {
	return "n_" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, name)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " '\"$&;|<>`\\") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}
