package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inercia/spaceclient/internal/secrets"
)

func TestParse(t *testing.T) {
	data := []byte(`
default_app: hello
hub_url: http://hub.local
timeout: 90s
log:
  level: debug
  components: [client, transport]
apps:
  hello: gradio/hello_world
  local: http://127.0.0.1:7860
`)
	s, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.DefaultApp != "hello" || s.HubURL != "http://hub.local" {
		t.Errorf("settings = %+v", s)
	}
	if s.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v", s.Timeout)
	}
	if s.Log.Level != "debug" || len(s.Log.Components) != 2 {
		t.Errorf("Log = %+v", s.Log)
	}
	if got := s.AppAliases(); len(got) != 2 || got[0] != "hello" || got[1] != "local" {
		t.Errorf("AppAliases = %v", got)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":    "apps: [",
		"empty alias": "apps:\n  x: \"\"\n",
		"bad timeout": "timeout: soon\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.DefaultApp != "" || len(s.Apps) != 0 {
		t.Errorf("expected empty settings, got %+v", s)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	in := &Settings{DefaultApp: "a", Apps: map[string]string{"a": "org/a"}, Timeout: time.Minute}
	if err := in.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	out, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.DefaultApp != "a" || out.Apps["a"] != "org/a" || out.Timeout != time.Minute {
		t.Errorf("round trip = %+v", out)
	}
}

func TestResolveApp(t *testing.T) {
	s := &Settings{DefaultApp: "hello", Apps: map[string]string{"hello": "gradio/hello_world"}}
	tests := []struct {
		name string
		want string
	}{
		{"", "gradio/hello_world"},
		{"hello", "gradio/hello_world"},
		{"org/other", "org/other"},
		{"http://127.0.0.1:7860", "http://127.0.0.1:7860"},
	}
	for _, tt := range tests {
		got, err := s.ResolveApp(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("ResolveApp(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
		}
	}
	if _, err := (&Settings{}).ResolveApp(""); err == nil {
		t.Error("expected error without default app")
	}
}

func TestDefaultConfigPath_Env(t *testing.T) {
	t.Setenv(RCEnv, "/tmp/custom.yaml")
	if got := DefaultConfigPath(); got != "/tmp/custom.yaml" {
		t.Errorf("DefaultConfigPath() = %q", got)
	}
}

func TestEffectiveTimeout(t *testing.T) {
	if got := (&Settings{}).EffectiveTimeout(); got != DefaultTimeout {
		t.Errorf("default = %v", got)
	}
	if got := (&Settings{Timeout: time.Second}).EffectiveTimeout(); got != time.Second {
		t.Errorf("configured = %v", got)
	}
}

func TestResolveToken(t *testing.T) {
	store := &secrets.MemoryStore{}
	prev := secrets.SetDefault(store)
	t.Cleanup(func() { secrets.SetDefault(prev) })

	s := &Settings{Token: "from-settings", HubURL: "http://hub.local"}

	t.Setenv(TokenEnv, "")
	if tok, src := s.ResolveToken(""); tok != "from-settings" || src != TokenFromSettings {
		t.Errorf("settings: %q %s", tok, src)
	}

	if err := secrets.SetToken(s.HubURL, "from-keychain"); err != nil {
		t.Fatal(err)
	}
	if tok, src := s.ResolveToken(""); tok != "from-keychain" || src != TokenFromKeychain {
		t.Errorf("keychain: %q %s", tok, src)
	}

	t.Setenv(TokenEnv, "from-env")
	if tok, src := s.ResolveToken(""); tok != "from-env" || src != TokenFromEnv {
		t.Errorf("env: %q %s", tok, src)
	}

	if tok, src := s.ResolveToken("from-flag"); tok != "from-flag" || src != TokenFromFlag {
		t.Errorf("flag: %q %s", tok, src)
	}

	t.Setenv(TokenEnv, "")
	if tok, src := (&Settings{HubURL: "http://other.local"}).ResolveToken(""); tok != "" || src != TokenNone {
		t.Errorf("none: %q %s", tok, src)
	}
}
