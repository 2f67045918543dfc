// Package config loads the spaceclient settings file.
//
// Settings are YAML:
//
//	default_app: gradio/hello_world
//	hub_url: https://huggingface.co
//	timeout: 2m
//	token: hf_xxx
//	log:
//	  level: info
//	  file: /tmp/spaceclient.log
//	  json: false
//	  components: [client, transport]
//	apps:
//	  hello: gradio/hello_world
//	  local: http://127.0.0.1:7860
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inercia/spaceclient/internal/appdir"
	"github.com/inercia/spaceclient/internal/fileutil"
)

// RCEnv overrides the settings file path.
const RCEnv = "SPACECLIENTRC"

// DefaultTimeout bounds a single CLI prediction when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

// LogSettings configures logging.
type LogSettings struct {
	Level      string   `yaml:"level,omitempty"`
	File       string   `yaml:"file,omitempty"`
	JSON       bool     `yaml:"json,omitempty"`
	Components []string `yaml:"components,omitempty"`
}

// Settings is the content of the settings file.
type Settings struct {
	// DefaultApp is used when no --app flag is given. It may be an alias.
	DefaultApp string `yaml:"default_app,omitempty"`
	// Token is the plain-text fallback when no keychain token is stored.
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	HubURL  string        `yaml:"hub_url,omitempty"`
	Log     LogSettings   `yaml:"log,omitempty"`
	// Apps maps aliases to app references.
	Apps map[string]string `yaml:"apps,omitempty"`
}

// DefaultConfigPath returns $SPACECLIENTRC or settings.yaml in the data
// directory.
func DefaultConfigPath() string {
	if p := os.Getenv(RCEnv); p != "" {
		return p
	}
	p, err := appdir.SettingsPath()
	if err != nil {
		// No home directory: fall back to the working directory
		return appdir.SettingsFileName
	}
	return p
}

// Load reads the settings at path. A missing file yields empty settings.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML settings.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	// An empty alias would silently resolve to itself
	for alias, ref := range s.Apps {
		if strings.TrimSpace(ref) == "" {
			return nil, fmt.Errorf("app alias %q has no reference", alias)
		}
	}
	return &s, nil
}

// Save writes the settings to path, creating parent directories.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	// The file may hold a token, keep it private
	if err := fileutil.WriteAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", path, err)
	}
	return nil
}

// ResolveApp returns the app reference for name. An empty name selects
// the default app; aliases are expanded; anything else is returned as is.
func (s *Settings) ResolveApp(name string) (string, error) {
	if name == "" {
		name = s.DefaultApp
	}
	if name == "" {
		return "", errors.New("no app given: use --app or set default_app")
	}
	if ref, ok := s.Apps[name]; ok {
		return ref, nil
	}
	// Not an alias: a URL, a space name or a file: reference
	return name, nil
}

// AppAliases returns the configured aliases in sorted order.
func (s *Settings) AppAliases() []string {
	names := make([]string, 0, len(s.Apps))
	for name := range s.Apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EffectiveTimeout returns the configured timeout or DefaultTimeout.
func (s *Settings) EffectiveTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}
