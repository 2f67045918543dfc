package client

import (
	"bytes"
	"encoding/json"
	"time"
)

// Protocol identifies the streaming transport a server speaks for queued calls.
type Protocol string

const (
	// ProtocolWebSocket is the legacy transport used when the config has no protocol.
	ProtocolWebSocket Protocol = ""
	// ProtocolSSE opens one event stream per call.
	ProtocolSSE Protocol = "sse"
	// ProtocolSSEv1 multiplexes every call of a session over one event stream.
	ProtocolSSEv1 Protocol = "sse_v1"
	// ProtocolSSEv2 is ProtocolSSEv1 with diff-encoded generator outputs.
	ProtocolSSEv2 Protocol = "sse_v2"
	// ProtocolSSEv21 behaves like ProtocolSSEv2.
	ProtocolSSEv21 Protocol = "sse_v2.1"
)

// multiplexed reports whether calls share a single session-wide event stream.
func (p Protocol) multiplexed() bool {
	switch p {
	case ProtocolSSEv1, ProtocolSSEv2, ProtocolSSEv21:
		return true
	}
	return false
}

// diffs reports whether generator outputs arrive as diffs against the previous output.
func (p Protocol) diffs() bool {
	return p == ProtocolSSEv2 || p == ProtocolSSEv21
}

// Config is the resolved application descriptor.
// It is immutable once returned by ResolveConfig.
type Config struct {
	// Root is the resolved base URL every request is made against.
	Root string `json:"root"`
	// Path is the root as declared by the server, before resolution.
	Path string `json:"path,omitempty"`

	Dependencies []Dependency `json:"dependencies"`
	EnableQueue  bool         `json:"enable_queue"`
	Protocol     Protocol     `json:"protocol,omitempty"`

	// Display metadata, not used by the submission path.
	Version     string      `json:"version,omitempty"`
	Mode        string      `json:"mode,omitempty"`
	DevMode     bool        `json:"dev_mode,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Article     string      `json:"article,omitempty"`
	IsSpace     bool        `json:"is_space,omitempty"`
	SpaceID     string      `json:"space_id,omitempty"`
	Components  []Component `json:"components,omitempty"`
}

// Dependency returns the dependency at index and whether it exists.
func (c *Config) Dependency(index int) (Dependency, bool) {
	if c == nil || index < 0 || index >= len(c.Dependencies) {
		return Dependency{}, false
	}
	return c.Dependencies[index], true
}

// Component returns the component with the given id.
func (c *Config) Component(id int) (Component, bool) {
	if c == nil {
		return Component{}, false
	}
	for _, comp := range c.Components {
		if comp.ID == id {
			return comp, true
		}
	}
	return Component{}, false
}

// Dependency is one callable entry point declared by the server.
type Dependency struct {
	// APIName is empty for unnamed dependencies.
	APIName      string          `json:"-"`
	Queue        *bool           `json:"queue"`
	Batch        bool            `json:"batch,omitempty"`
	MaxBatchSize int             `json:"max_batch_size,omitempty"`
	Cancels      []int           `json:"cancels,omitempty"`
	TriggerMode  string          `json:"trigger_mode,omitempty"`
	Inputs       []int           `json:"inputs,omitempty"`
	Outputs      []int           `json:"outputs,omitempty"`
	Types        DependencyTypes `json:"types"`
	BackendFn    bool            `json:"backend_fn,omitempty"`
}

// DependencyTypes describes how a dependency produces its outputs.
type DependencyTypes struct {
	Continuous bool `json:"continuous"`
	Generator  bool `json:"generator"`
}

type dependencyJSON Dependency

// UnmarshalJSON accepts api_name as a string, null, or false.
func (d *Dependency) UnmarshalJSON(b []byte) error {
	var aux struct {
		dependencyJSON
		APIName json.RawMessage `json:"api_name"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*d = Dependency(aux.dependencyJSON)
	d.APIName = ""
	if len(aux.APIName) > 0 && aux.APIName[0] == '"' {
		if err := json.Unmarshal(aux.APIName, &d.APIName); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON writes an unnamed dependency's api_name as null.
func (d Dependency) MarshalJSON() ([]byte, error) {
	aux := struct {
		dependencyJSON
		APIName *string `json:"api_name"`
	}{dependencyJSON: dependencyJSON(d)}
	if d.APIName != "" {
		name := d.APIName
		aux.APIName = &name
	}
	return json.Marshal(aux)
}

// Component is a UI component declared in the config.
type Component struct {
	ID    int            `json:"id"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props,omitempty"`
}

// Payload is the outbound description of one call.
type Payload struct {
	Data        []any  `json:"data"`
	FnIndex     int    `json:"fn_index"`
	EventData   any    `json:"event_data"`
	TriggerID   *int   `json:"trigger_id,omitempty"`
	SessionHash string `json:"session_hash"`
	EventID     string `json:"event_id,omitempty"`
}

// Stage is the coarse state of one call as reported by the server.
type Stage string

const (
	StagePending    Stage = "pending"
	StageError      Stage = "error"
	StageComplete   Stage = "complete"
	StageGenerating Stage = "generating"
)

// Terminal reports whether no further events follow a status in this stage.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// ProgressUnit is one progress tracker reported by the server.
type ProgressUnit struct {
	Index    *int     `json:"index,omitempty"`
	Length   *int     `json:"length,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
	Desc     string   `json:"desc,omitempty"`
}

// Status is the last known state of one in-flight call.
type Status struct {
	Stage        Stage          `json:"stage"`
	Queue        bool           `json:"queue"`
	Position     *int           `json:"position,omitempty"`
	ETA          *float64       `json:"eta,omitempty"`
	Size         *int           `json:"size,omitempty"`
	Code         string         `json:"code,omitempty"`
	Message      string         `json:"message,omitempty"`
	ProgressData []ProgressUnit `json:"progress_data,omitempty"`
	Success      *bool          `json:"success,omitempty"`
	// Cancelled marks the status synthesized by Submission.Cancel.
	Cancelled bool      `json:"cancelled,omitempty"`
	Time      time.Time `json:"time"`
}

// EventType discriminates the payload carried by an Event.
type EventType string

const (
	EventData   EventType = "data"
	EventStatus EventType = "status"
	EventLog    EventType = "log"
)

// LogMessage is a log line forwarded by the server.
type LogMessage struct {
	Log   string `json:"log"`
	Level string `json:"level"`
}

// Event is delivered to listeners. Exactly one of Data, Status and Log
// is set, according to Type.
type Event struct {
	Type     EventType   `json:"type"`
	Endpoint string      `json:"endpoint"`
	FnIndex  int         `json:"fn_index"`
	Data     []any       `json:"data,omitempty"`
	Status   *Status     `json:"status,omitempty"`
	Log      *LogMessage `json:"log,omitempty"`
}

// UploadResponse is returned by an Uploader.
type UploadResponse struct {
	Error string   `json:"error,omitempty"`
	Files []string `json:"files,omitempty"`
}

// isNull reports whether raw is absent or the JSON literal null.
func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
