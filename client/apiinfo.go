package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultAPIInfoURL describes the endpoints of apps older than 3.30,
// which do not serve /info themselves.
const DefaultAPIInfoURL = "https://gradio-space-api-fetcher-v2.hf.space/api"

// infoMinVersion is the first app version serving /info.
var infoMinVersion = semver.MustParse("3.30")

// APIInfo documents the parameters and return values of every endpoint.
// Named endpoints are keyed by api name with a leading "/", unnamed ones
// by dependency index.
type APIInfo struct {
	NamedEndpoints   map[string]EndpointInfo `json:"named_endpoints"`
	UnnamedEndpoints map[string]EndpointInfo `json:"unnamed_endpoints"`
}

// Endpoint returns the documentation of an endpoint label as carried by
// events: "/name" or an index.
func (a *APIInfo) Endpoint(label string) (EndpointInfo, bool) {
	if a == nil {
		return EndpointInfo{}, false
	}
	if info, ok := a.NamedEndpoints[label]; ok {
		return info, true
	}
	info, ok := a.UnnamedEndpoints[label]
	return info, ok
}

// EndpointInfo documents one endpoint.
type EndpointInfo struct {
	Parameters []ParamInfo     `json:"parameters"`
	Returns    []ParamInfo     `json:"returns"`
	Types      DependencyTypes `json:"type"`
}

// ParamInfo documents one input or output of an endpoint. Type is the Go
// value to pass or expect; it is empty when the server gave nothing to
// derive it from.
type ParamInfo struct {
	Label       string `json:"label"`
	Component   string `json:"component"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// WithAPIInfoURL sets the service that describes apps older than 3.30.
// Default is DefaultAPIInfoURL.
func WithAPIInfoURL(u string) Option {
	return func(c *Client) {
		c.apiInfoURL = u
	}
}

// ViewAPI returns the typed description of the app's endpoints. The
// first successful result is cached for the life of the client.
func (c *Client) ViewAPI(ctx context.Context) (*APIInfo, error) {
	c.mu.Lock()
	cached := c.apiInfo
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	raw, err := c.fetchAPIInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("view api: %w", err)
	}
	info := transformAPIInfo(raw, c.config, c.apiMap)

	c.mu.Lock()
	// A concurrent caller may have won; keep the first.
	if c.apiInfo == nil {
		c.apiInfo = info
	}
	info = c.apiInfo
	c.mu.Unlock()
	return info, nil
}

type rawAPIInfo struct {
	NamedEndpoints   map[string]rawEndpoint `json:"named_endpoints"`
	UnnamedEndpoints map[string]rawEndpoint `json:"unnamed_endpoints"`
}

type rawEndpoint struct {
	Parameters []rawParam `json:"parameters"`
	Returns    []rawParam `json:"returns"`
}

type rawParam struct {
	Label      string  `json:"label"`
	Component  string  `json:"component"`
	Serializer string  `json:"serializer"`
	Type       rawType `json:"type"`
}

type rawType struct {
	// Type is usually a JSON schema type name but may be a list of them.
	Type        any    `json:"type"`
	Description string `json:"description"`
}

func (t rawType) name() string {
	s, _ := t.Type.(string)
	return s
}

// usesInfoEndpoint reports whether an app of the given version serves
// /info. Apps that report no version are asked directly rather than
// sending their config to the public fetcher.
func usesInfoEndpoint(version string) bool {
	if version == "" {
		return true
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		// Unparseable versions come from development builds.
		return true
	}
	return !v.LessThan(infoMinVersion)
}

func (c *Client) fetchAPIInfo(ctx context.Context) (*rawAPIInfo, error) {
	var req *http.Request
	var err error
	if usesInfoEndpoint(c.config.Version) {
		req, err = c.newRequest(ctx, http.MethodGet, joinURL(c.config.Root, "/info"), nil)
	} else {
		// The fetcher takes the config as a JSON string, not an object.
		doc, merr := json.Marshal(c.config)
		if merr != nil {
			return nil, merr
		}
		fetcher := c.apiInfoURL
		if fetcher == "" {
			fetcher = DefaultAPIInfoURL
		}
		req, err = c.newRequest(ctx, http.MethodPost, fetcher, map[string]any{
			"serialize": false,
			"config":    string(doc),
		})
	}
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// The fetcher wraps the description in an "api" field.
	var doc struct {
		rawAPIInfo
		API *rawAPIInfo `json:"api"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	raw := &doc.rawAPIInfo
	if doc.API != nil {
		raw = doc.API
	}

	if raw.UnnamedEndpoints == nil {
		raw.UnnamedEndpoints = make(map[string]rawEndpoint)
	}
	// Older apps expose their first endpoint both ways.
	if ep, ok := raw.NamedEndpoints["/predict"]; ok {
		if _, taken := raw.UnnamedEndpoints["0"]; !taken {
			raw.UnnamedEndpoints["0"] = ep
		}
	}
	return raw, nil
}

func transformAPIInfo(raw *rawAPIInfo, cfg *Config, apiMap map[string]int) *APIInfo {
	info := &APIInfo{
		NamedEndpoints:   make(map[string]EndpointInfo, len(raw.NamedEndpoints)),
		UnnamedEndpoints: make(map[string]EndpointInfo, len(raw.UnnamedEndpoints)),
	}
	for key, ep := range raw.NamedEndpoints {
		info.NamedEndpoints[key] = transformEndpoint(ep, dependencyTypes(cfg, apiMap, key))
	}
	for key, ep := range raw.UnnamedEndpoints {
		info.UnnamedEndpoints[key] = transformEndpoint(ep, dependencyTypes(cfg, apiMap, key))
	}
	return info
}

// dependencyTypes finds the dependency behind an endpoint key, either an
// index or a "/name".
func dependencyTypes(cfg *Config, apiMap map[string]int, key string) DependencyTypes {
	idx, err := strconv.Atoi(key)
	if err != nil {
		var ok bool
		if idx, ok = apiMap[trimName(key)]; !ok {
			return DependencyTypes{}
		}
	}
	dep, ok := cfg.Dependency(idx)
	if !ok {
		return DependencyTypes{}
	}
	return dep.Types
}

func transformEndpoint(ep rawEndpoint, types DependencyTypes) EndpointInfo {
	out := EndpointInfo{
		Parameters: make([]ParamInfo, len(ep.Parameters)),
		Returns:    make([]ParamInfo, len(ep.Returns)),
		Types:      types,
	}
	for i, p := range ep.Parameters {
		out.Parameters[i] = ParamInfo{
			Label:       p.Label,
			Component:   p.Component,
			Type:        paramType(p.Type, p.Component, p.Serializer, false),
			Description: paramDescription(p.Type, p.Serializer),
		}
	}
	for i, r := range ep.Returns {
		out.Returns[i] = ParamInfo{
			Label:       r.Label,
			Component:   r.Component,
			Type:        paramType(r.Type, r.Component, r.Serializer, true),
			Description: paramDescription(r.Type, r.Serializer),
		}
	}
	return out
}

// paramType names the Go value a parameter takes, or a return value
// holds. Files go in as File and come back as documents with name, data,
// size, is_file and orig_name keys. Gallery items pair a file with an
// optional caption.
func paramType(t rawType, component, serializer string, isReturn bool) string {
	switch t.name() {
	case "string":
		return "string"
	case "boolean":
		return "bool"
	case "number":
		return "float64"
	case "integer":
		return "int"
	}

	switch {
	case serializer == "JSONSerializable" || serializer == "StringSerializable":
		return "any"
	case serializer == "ListStringSerializable":
		return "[]string"
	case component == "Image":
		if isReturn {
			return "string"
		}
		return "File"
	case serializer == "FileSerializable":
		elem := "File"
		if isReturn {
			elem = "map[string]any"
		}
		if t.name() == "array" {
			return "[]" + elem
		}
		return elem
	case serializer == "GallerySerializable":
		return "[][2]any"
	}
	return ""
}

func paramDescription(t rawType, serializer string) string {
	switch serializer {
	case "GallerySerializable":
		return "array of [file, label] tuples"
	case "ListStringSerializable":
		return "array of strings"
	case "FileSerializable":
		return "array of files or single file"
	}
	return t.Description
}
