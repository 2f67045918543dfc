// Package apidoc describes the callable endpoints of an app and renders
// the description as Markdown or sanitized HTML.
package apidoc

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/inercia/spaceclient/client"
)

// Parameter is one input or output of an endpoint. Type is the component
// type from the config; GoType and Description come from the app's typed
// API description when it could be fetched.
type Parameter struct {
	ComponentID int    `json:"component_id"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	GoType      string `json:"go_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Endpoint describes one dependency of the app.
type Endpoint struct {
	// Name is "/api_name" for named endpoints, or the index for unnamed ones.
	Name      string      `json:"name"`
	FnIndex   int         `json:"fn_index"`
	Named     bool        `json:"named"`
	Queued    bool        `json:"queued"`
	Generator bool        `json:"generator,omitempty"`
	Cancels   []string    `json:"cancels,omitempty"`
	Inputs    []Parameter `json:"inputs"`
	Outputs   []Parameter `json:"outputs"`
}

// API is the description of an app.
type API struct {
	Title       string     `json:"title,omitempty"`
	Root        string     `json:"root"`
	Version     string     `json:"version,omitempty"`
	Protocol    string     `json:"protocol"`
	Description string     `json:"description,omitempty"`
	Article     string     `json:"article,omitempty"`
	Endpoints   []Endpoint `json:"endpoints"`
}

// Describe builds the API description of cfg. Named endpoints come first,
// sorted by name; unnamed ones follow in index order. Unnamed endpoints
// are only included when includeUnnamed is set.
func Describe(cfg *client.Config, includeUnnamed bool) *API {
	api := &API{
		Title:       cfg.Title,
		Root:        cfg.Root,
		Version:     cfg.Version,
		Protocol:    protocolName(cfg.Protocol),
		Description: cfg.Description,
		Article:     cfg.Article,
	}

	label := func(i int) string {
		dep, _ := cfg.Dependency(i)
		if dep.APIName != "" {
			return "/" + dep.APIName
		}
		return strconv.Itoa(i)
	}

	var named, unnamed []Endpoint
	for i, dep := range cfg.Dependencies {
		ep := Endpoint{
			Name:      label(i),
			FnIndex:   i,
			Named:     dep.APIName != "",
			Queued:    !client.SkipQueue(i, cfg),
			Generator: dep.Types.Generator,
			Inputs:    parameters(cfg, dep.Inputs),
			Outputs:   parameters(cfg, dep.Outputs),
		}
		for _, c := range dep.Cancels {
			ep.Cancels = append(ep.Cancels, label(c))
		}
		if ep.Named {
			named = append(named, ep)
		} else if includeUnnamed {
			unnamed = append(unnamed, ep)
		}
	}
	sort.Slice(named, func(a, b int) bool { return named[a].Name < named[b].Name })
	api.Endpoints = append(named, unnamed...)
	return api
}

// Find returns the endpoint with the given name or index label.
func (a *API) Find(name string) (Endpoint, bool) {
	for _, ep := range a.Endpoints {
		if ep.Name == name || ep.Name == "/"+name {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// Annotate merges the typed API description into a. Parameters are
// matched by position; labels the config left empty are taken from info.
func (a *API) Annotate(info *client.APIInfo) {
	for i := range a.Endpoints {
		ep := &a.Endpoints[i]
		doc, ok := info.Endpoint(ep.Name)
		if !ok {
			continue
		}
		annotate(ep.Inputs, doc.Parameters)
		annotate(ep.Outputs, doc.Returns)
	}
}

func annotate(params []Parameter, docs []client.ParamInfo) {
	for i := range params {
		if i >= len(docs) {
			return
		}
		p, d := &params[i], docs[i]
		p.GoType = d.Type
		p.Description = d.Description
		// Generated labels look like "textbox_3".
		if d.Label != "" && p.Label == fmt.Sprintf("%s_%d", p.Type, p.ComponentID) {
			p.Label = d.Label
		}
	}
}

func parameters(cfg *client.Config, ids []int) []Parameter {
	params := make([]Parameter, 0, len(ids))
	for _, id := range ids {
		p := Parameter{ComponentID: id, Type: "unknown"}
		if comp, ok := cfg.Component(id); ok {
			p.Type = comp.Type
			if l, ok := comp.Props["label"].(string); ok && l != "" {
				p.Label = l
			}
		}
		if p.Label == "" {
			p.Label = fmt.Sprintf("%s_%d", p.Type, id)
		}
		params = append(params, p)
	}
	return params
}

func protocolName(p client.Protocol) string {
	if p == "" {
		return "ws"
	}
	return string(p)
}
