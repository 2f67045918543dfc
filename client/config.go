package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/inercia/spaceclient/internal/fileutil"
)

// LocalDevOrigin is the origin of the front-end development server.
// Configs embedded by pages served from it are never used directly.
const LocalDevOrigin = "http://localhost:9876"

// EmbeddedConfig is a config document available without a network call,
// for example one saved to disk or rendered into a page.
type EmbeddedConfig struct {
	Config *Config
	// Origin is the origin the document was served from, if any.
	Origin string
}

// ConfigError reports a failure to obtain the application config.
type ConfigError struct {
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return "Could not get config."
	}
	return "Could not get config. " + e.Detail
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ResolveConfig returns the config of the app served at endpoint.
//
// A usable embedded config is returned without contacting the server.
// Otherwise GET {endpoint}/config is issued, authorized with token when
// one is given. In both cases Config.Path keeps the root declared by the
// server and Config.Root is resolved against endpoint.
func ResolveConfig(ctx context.Context, httpClient *http.Client, endpoint, token string, embedded *EmbeddedConfig) (*Config, error) {
	endpoint = strings.TrimRight(endpoint, "/")

	if embedded != nil && embedded.Config != nil &&
		embedded.Origin != LocalDevOrigin && !embedded.Config.DevMode {
		cfg := *embedded.Config
		cfg.Path = cfg.Root
		cfg.Root = resolveRoot(endpoint, cfg.Root)
		return &cfg, nil
	}

	if endpoint == "" {
		return nil, &ConfigError{Detail: "No config or app endpoint found."}
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/config", nil)
	if err != nil {
		return nil, &ConfigError{Detail: err.Error(), Err: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &ConfigError{Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ConfigError{Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var cfg Config
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, &ConfigError{Detail: "decode: " + err.Error(), Err: err}
	}
	cfg.Path = cfg.Root
	cfg.Root = resolveRoot(endpoint, cfg.Root)
	return &cfg, nil
}

// LoadConfigFile reads a config document previously saved to disk.
func LoadConfigFile(path string) (*Config, error) {
	var cfg Config
	if err := fileutil.ReadJSON(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return &cfg, nil
}

// resolveRoot keeps absolute roots verbatim and appends relative ones to base.
func resolveRoot(base, root string) string {
	if strings.HasPrefix(root, "http://") || strings.HasPrefix(root, "https://") {
		return root
	}
	if root == "" || root == "/" {
		return base
	}
	return base + "/" + strings.TrimLeft(root, "/")
}

// joinURL appends path to root without doubling slashes.
func joinURL(root, path string) string {
	return strings.TrimRight(root, "/") + "/" + strings.TrimLeft(path, "/")
}
