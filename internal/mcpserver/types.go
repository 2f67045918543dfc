package mcpserver

import (
	"github.com/inercia/spaceclient/internal/apidoc"
)

// ListEndpointsInput selects which endpoints list_endpoints returns.
type ListEndpointsInput struct {
	IncludeUnnamed bool `json:"include_unnamed,omitempty" jsonschema:"also list endpoints without an api name, addressed by index"`
}

// ListEndpointsOutput wraps the endpoint list for MCP output schema compliance.
type ListEndpointsOutput struct {
	Endpoints []apidoc.Endpoint `json:"endpoints"`
}

// AppConfigInfo summarizes the connected app. Tokens are never included.
type AppConfigInfo struct {
	Root        string `json:"root"`
	Title       string `json:"title,omitempty"`
	Version     string `json:"version,omitempty"`
	Protocol    string `json:"protocol"`
	EnableQueue bool   `json:"enable_queue"`
	SpaceID     string `json:"space_id,omitempty"`
	SessionHash string `json:"session_hash"`
	Endpoints   int    `json:"endpoints"`
	Description string `json:"description,omitempty"`
}

// PredictInput is the argument of the predict tool.
type PredictInput struct {
	Endpoint string `json:"endpoint" jsonschema:"endpoint name such as /predict, or a dependency index"`
	Data     []any  `json:"data" jsonschema:"positional input values"`
}

// PredictOutput is the result of the predict tool.
type PredictOutput struct {
	Endpoint string `json:"endpoint"`
	Data     []any  `json:"data"`
}
